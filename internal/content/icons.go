package content

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mblarsen/wsl-notifyd/internal/xdgpath"
	"github.com/nfnt/resize"
)

// ErrIconNotFound is returned when no theme directory holds a usable icon.
var ErrIconNotFound = errors.New("icon not found")

// IconResolver looks up named icons and desktop entry icons. Returned bytes
// are PNG encoded and sized to the requested pixel size.
type IconResolver interface {
	Icon(names []string, size int) ([]byte, error)
	DesktopEntryIcon(entry string, size int) ([]byte, error)
}

// ThemeResolver resolves icons from the XDG icon theme directories.
type ThemeResolver struct {
	DataDirs []string
	Themes   []string
}

// NewThemeResolver searches the XDG data directories of the current user.
func NewThemeResolver() *ThemeResolver {
	return &ThemeResolver{
		DataDirs: xdgpath.DataDirs(),
		Themes:   []string{"hicolor", "Adwaita", "breeze"},
	}
}

// Icon returns the first of names found in any theme.
func (r *ThemeResolver) Icon(names []string, size int) ([]byte, error) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if p := r.find(name, size); p != "" {
			return loadScaled(p, size)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrIconNotFound, strings.Join(names, ", "))
}

// DesktopEntryIcon finds <entry>.desktop in the applications directories,
// matching the file name case-insensitively, and resolves its Icon key.
func (r *ThemeResolver) DesktopEntryIcon(entry string, size int) ([]byte, error) {
	want := strings.ToLower(entry) + ".desktop"
	for _, dir := range r.DataDirs {
		appDir := filepath.Join(dir, "applications")
		files, err := os.ReadDir(appDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if strings.ToLower(f.Name()) != want {
				continue
			}
			icon, err := desktopEntryIconKey(filepath.Join(appDir, f.Name()))
			if err != nil {
				return nil, err
			}
			if filepath.IsAbs(icon) {
				return loadScaled(icon, size)
			}
			return r.Icon([]string{icon}, size)
		}
	}
	return nil, fmt.Errorf("%w: desktop entry %s", ErrIconNotFound, entry)
}

func (r *ThemeResolver) find(name string, size int) string {
	for _, dir := range r.DataDirs {
		for _, theme := range r.Themes {
			for _, sizeDir := range sizeDirs(filepath.Join(dir, "icons", theme), size) {
				matches, _ := filepath.Glob(filepath.Join(sizeDir, "*", name+".png"))
				if len(matches) > 0 {
					return matches[0]
				}
			}
		}
	}
	for _, dir := range r.DataDirs {
		p := filepath.Join(dir, "pixmaps", name+".png")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sizeDirs lists the NxN directories of a theme, the requested size first,
// then larger sizes ascending, then smaller sizes descending.
func sizeDirs(themeDir string, size int) []string {
	entries, err := os.ReadDir(themeDir)
	if err != nil {
		return nil
	}
	type sized struct {
		path string
		n    int
	}
	var dirs []sized
	for _, e := range entries {
		w, h, ok := strings.Cut(e.Name(), "x")
		if !ok || w != h {
			continue
		}
		n, err := strconv.Atoi(w)
		if err != nil {
			continue
		}
		dirs = append(dirs, sized{filepath.Join(themeDir, e.Name()), n})
	}
	rank := func(n int) int {
		switch {
		case n == size:
			return 0
		case n > size:
			return n - size
		default:
			return 1<<20 + size - n
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return rank(dirs[i].n) < rank(dirs[j].n) })
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = d.path
	}
	return out
}

func desktopEntryIconKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	inEntry := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inEntry = line == "[Desktop Entry]"
			continue
		}
		if !inEntry {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok && strings.TrimSpace(key) == "Icon" {
			return strings.TrimSpace(value), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: %s has no Icon key", ErrIconNotFound, path)
}

func loadScaled(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode icon %s: %w", path, err)
	}
	if size > 0 && img.Bounds().Dx() != size {
		img = resize.Resize(uint(size), 0, img, resize.Lanczos3)
	}
	return encodePNG(img)
}

// localImagePath reports whether s names a local file, either a file URI or
// an absolute path, and returns the path.
func localImagePath(s string) (string, bool, error) {
	switch {
	case strings.HasPrefix(s, "file://"):
		u, err := url.Parse(s)
		if err != nil {
			return "", true, fmt.Errorf("malformed uri %q: %w", s, err)
		}
		return u.Path, true, nil
	case strings.HasPrefix(s, "/"):
		return s, true, nil
	}
	return "", false, nil
}
