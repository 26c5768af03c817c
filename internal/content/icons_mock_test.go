package content

import (
	"fmt"
	"image"
	"image/color"
)

// mockIconResolver serves icons from a map keyed by name.
type mockIconResolver struct {
	icons   map[string][]byte
	entries map[string][]byte
	calls   []string
}

func (m *mockIconResolver) Icon(names []string, size int) ([]byte, error) {
	for _, n := range names {
		m.calls = append(m.calls, fmt.Sprintf("%s@%d", n, size))
		if data, ok := m.icons[n]; ok {
			return data, nil
		}
	}
	return nil, ErrIconNotFound
}

func (m *mockIconResolver) DesktopEntryIcon(entry string, size int) ([]byte, error) {
	m.calls = append(m.calls, fmt.Sprintf("entry:%s@%d", entry, size))
	if data, ok := m.entries[entry]; ok {
		return data, nil
	}
	return nil, ErrIconNotFound
}

func testPNG(w, h int, c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	data, err := encodePNG(img)
	if err != nil {
		panic(err)
	}
	return data
}
