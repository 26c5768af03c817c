package renderer

import (
	"net/url"

	"github.com/mblarsen/wsl-notifyd/internal/content"
)

// localize points image sources and action image URIs at spooled files.
// References with no spooled file are removed from the document.
func localize(doc *content.Document, paths map[string]string) {
	b := &doc.Visual.Binding
	images := b.Images[:0]
	for _, img := range b.Images {
		if path, ok := paths[img.Src]; ok {
			img.Src = fileURI(path)
			images = append(images, img)
		}
	}
	b.Images = images

	if doc.Actions == nil {
		return
	}
	actions := doc.Actions.Actions[:0]
	for _, a := range doc.Actions.Actions {
		if a.ImageURI != "" {
			path, ok := paths[a.ImageURI]
			if !ok {
				continue
			}
			a.ImageURI = fileURI(path)
		}
		actions = append(actions, a)
	}
	doc.Actions.Actions = actions
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}

// filePath reverses fileURI. Other values are returned unchanged.
func filePath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return u.Path
}
