package content

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	appIconSize    = 96
	imagePathSize  = 256
	actionIconSize = 48

	// InlineReplyID is the action id that becomes a text input.
	InlineReplyID = "inline-reply"
	// DefaultActionID is invoked by activating the toast body, never a button.
	DefaultActionID  = "default"
	settingsActionID = "settings"
)

// Request holds the arguments of a Notify call.
type Request struct {
	AppName       string
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string
	Hints         map[string]any
	ExpireTimeout int32
}

// Builder converts requests into toast documents.
type Builder struct {
	icons IconResolver
}

// NewBuilder creates a builder that resolves icon names through icons. A nil
// resolver disables icon lookups.
func NewBuilder(icons IconResolver) *Builder {
	return &Builder{icons: icons}
}

// Build produces the toast document and its attachments. threshold is the
// renderer's message duration: expire timeouts up to it map to a short
// toast, longer or infinite ones to a long toast. Malformed hints degrade the
// result and are logged; they never fail the build.
func (b *Builder) Build(req Request, threshold time.Duration) (*Document, Attachments) {
	doc := newDocument()
	att := make(Attachments)
	binding := &doc.Visual.Binding
	hints := req.Hints

	binding.Texts = append(binding.Texts,
		Text{Value: req.Summary},
		Text{Value: StripMarkup(req.Body)},
		Text{Value: req.AppName, Placement: PlacementAttribution},
	)

	doc.Actions = b.actions(req.Actions, hints, att)

	if logo := b.appLogo(req.AppIcon, hints); logo != nil {
		binding.Images = append(binding.Images, Image{Src: att.Add(logo), Placement: PlacementAppLogo})
	}
	if img := b.image(hints); img != nil {
		binding.Images = append(binding.Images, Image{Src: att.Add(img)})
	}

	doc.Audio = audio(hints)

	if u, ok := hints["urgency"].(uint8); ok && u == 2 {
		doc.Scenario = "urgent"
	}
	doc.Duration = duration(req.ExpireTimeout, threshold)

	return doc, att
}

func (b *Builder) actions(pairs []string, hints map[string]any, att Attachments) *Actions {
	if len(pairs) < 2 {
		return nil
	}
	actionIcons, _ := hints["action-icons"].(bool)

	var out Actions
	inlineReply := false
	for i := 0; i+1 < len(pairs); i += 2 {
		a := Action{Arguments: pairs[i], Content: pairs[i+1]}
		switch a.Arguments {
		case InlineReplyID:
			if inlineReply {
				slog.Warn("Dropping duplicate inline-reply action")
				continue
			}
			inlineReply = true
			placeholder, _ := hints["x-kde-reply-placeholder-text"].(string)
			out.Inputs = append(out.Inputs, Input{ID: InlineReplyID, Type: "text", PlaceHolderContent: placeholder})
			a.HintInputID = InlineReplyID
		case DefaultActionID:
			slog.Info("Default action found, not adding a button")
			continue
		case settingsActionID:
			a.Placement = PlacementContextMenu
		}
		if actionIcons && b.icons != nil {
			if icon, err := b.icons.Icon([]string{a.Arguments}, actionIconSize); err == nil {
				a.ImageURI = att.Add(icon)
				a.Content = ""
			} else {
				slog.Debug("No icon for action", "action", a.Arguments, "error", err)
			}
		}
		out.Actions = append(out.Actions, a)
	}
	if len(out.Inputs) == 0 && len(out.Actions) == 0 {
		return nil
	}
	return &out
}

func (b *Builder) appLogo(appIcon string, hints map[string]any) []byte {
	if appIcon != "" {
		if data := b.imageFromPath(appIcon, appIconSize); data != nil {
			return data
		}
	}
	entry, _ := hints["desktop-entry"].(string)
	if entry == "" || b.icons == nil {
		return nil
	}
	data, err := b.icons.DesktopEntryIcon(entry, appIconSize)
	if err != nil {
		slog.Warn("Failed to load desktop entry icon", "entry", entry, "error", err)
		return nil
	}
	return b.normalize(data, entry)
}

// image applies the hint priority: raw pixels, then a path, then the legacy
// icon_data pixels. The first hint that yields bytes wins.
func (b *Builder) image(hints map[string]any) []byte {
	for _, key := range []string{"image-data", "image_data"} {
		v, ok := hints[key]
		if !ok {
			continue
		}
		if data := pixelsToPNG(key, v); data != nil {
			return data
		}
		break
	}
	for _, key := range []string{"image-path", "image_path"} {
		path, ok := hints[key].(string)
		if !ok {
			continue
		}
		if path != "" {
			if data := b.imageFromPath(path, imagePathSize); data != nil {
				return data
			}
		}
		break
	}
	if v, ok := hints["icon_data"]; ok {
		return pixelsToPNG("icon_data", v)
	}
	return nil
}

func pixelsToPNG(key string, v any) []byte {
	p, ok := pixelDataFromHint(v)
	if !ok {
		slog.Warn("Ignoring malformed image hint", "hint", key)
		return nil
	}
	data, err := p.PNG()
	if err != nil {
		slog.Warn("Ignoring image hint", "hint", key, "error", err)
		return nil
	}
	return data
}

// imageFromPath loads a file URI or absolute path, or looks s up as an icon
// name.
func (b *Builder) imageFromPath(s string, size int) []byte {
	path, local, err := localImagePath(s)
	if err != nil {
		slog.Warn("Ignoring image", "image", s, "error", err)
		return nil
	}
	if local {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Failed to read image", "path", path, "error", err)
			return nil
		}
		return b.normalize(data, path)
	}
	if b.icons == nil {
		return nil
	}
	data, err := b.icons.Icon([]string{s}, size)
	if err != nil {
		slog.Warn("Not a valid file uri, absolute path or icon name", "image", s, "error", err)
		return nil
	}
	return b.normalize(data, s)
}

func (b *Builder) normalize(data []byte, source string) []byte {
	out, err := NormalizePNG(data)
	if err != nil {
		slog.Warn("Ignoring undecodable image", "source", source, "error", err)
		return nil
	}
	return out
}

func audio(hints map[string]any) *Audio {
	var a Audio
	if name, ok := hints["sound-name"].(string); ok {
		if IsSupportedSound(name) {
			a.Src = name
		} else {
			slog.Warn("Sound is not supported", "sound", name)
		}
	}
	if suppress, ok := hints["suppress-sound"].(bool); ok {
		a.Silent = strconv.FormatBool(suppress)
	}
	if a.Src == "" && a.Silent == "" {
		return nil
	}
	return &a
}

// duration maps an expire timeout in milliseconds to the toast duration
// attribute. Negative timeouts leave the choice to the renderer.
func duration(expireMillis int32, threshold time.Duration) string {
	expire := time.Duration(expireMillis) * time.Millisecond
	switch {
	case expireMillis < 0:
		return ""
	case expireMillis > 0 && expire <= threshold:
		return "short"
	default:
		return "long"
	}
}
