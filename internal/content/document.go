// Package content turns the arguments of a desktop Notify call into a toast
// document plus the content-addressed image attachments it references.
package content

import (
	"encoding/xml"
	"fmt"
)

// Placement values used in the toast schema.
const (
	PlacementAttribution = "attribution"
	PlacementAppLogo     = "appLogoOverride"
	PlacementContextMenu = "contextMenu"
)

// Document is a toast document. Image sources and action image URIs hold
// attachment hashes until the renderer rewrites them to local files.
type Document struct {
	XMLName  xml.Name `xml:"toast"`
	Scenario string   `xml:"scenario,attr,omitempty"`
	Duration string   `xml:"duration,attr,omitempty"`
	Visual   Visual   `xml:"visual"`
	Actions  *Actions `xml:"actions,omitempty"`
	Audio    *Audio   `xml:"audio,omitempty"`
}

type Visual struct {
	Binding Binding `xml:"binding"`
}

type Binding struct {
	Template string  `xml:"template,attr"`
	Texts    []Text  `xml:"text"`
	Images   []Image `xml:"image"`
}

type Text struct {
	Placement string `xml:"placement,attr,omitempty"`
	Value     string `xml:",chardata"`
}

type Image struct {
	Src       string `xml:"src,attr"`
	Placement string `xml:"placement,attr,omitempty"`
}

type Actions struct {
	Inputs  []Input  `xml:"input"`
	Actions []Action `xml:"action"`
}

type Input struct {
	ID                 string `xml:"id,attr"`
	Type               string `xml:"type,attr"`
	PlaceHolderContent string `xml:"placeHolderContent,attr"`
}

type Action struct {
	Arguments   string `xml:"arguments,attr"`
	Content     string `xml:"content,attr"`
	ImageURI    string `xml:"imageUri,attr,omitempty"`
	Placement   string `xml:"placement,attr,omitempty"`
	HintInputID string `xml:"hint-inputId,attr,omitempty"`
}

type Audio struct {
	Src    string `xml:"src,attr,omitempty"`
	Silent string `xml:"silent,attr,omitempty"`
}

func newDocument() *Document {
	return &Document{Visual: Visual{Binding: Binding{Template: "ToastGeneric"}}}
}

// Title returns the first text line, the notification summary.
func (d *Document) Title() string {
	return d.text(0)
}

// Body returns the second text line.
func (d *Document) Body() string {
	return d.text(1)
}

// Attribution returns the text placed as attribution, usually the app name.
func (d *Document) Attribution() string {
	for _, t := range d.Visual.Binding.Texts {
		if t.Placement == PlacementAttribution {
			return t.Value
		}
	}
	return ""
}

func (d *Document) text(n int) string {
	i := 0
	for _, t := range d.Visual.Binding.Texts {
		if t.Placement != "" {
			continue
		}
		if i == n {
			return t.Value
		}
		i++
	}
	return ""
}

// Marshal encodes the document as toast XML.
func (d *Document) Marshal() (string, error) {
	b, err := xml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode toast document: %w", err)
	}
	return string(b), nil
}

// ParseDocument decodes toast XML produced by Marshal.
func ParseDocument(s string) (*Document, error) {
	var d Document
	if err := xml.Unmarshal([]byte(s), &d); err != nil {
		return nil, fmt.Errorf("failed to decode toast document: %w", err)
	}
	return &d, nil
}
