package content

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
)

// StripMarkup returns the text content of a body that may contain the small
// markup subset allowed by desktop notifications. If the body cannot be
// tokenized it is returned unchanged.
func StripMarkup(body string) string {
	if !strings.ContainsAny(body, "<&") {
		return body
	}
	z := html.NewTokenizer(strings.NewReader(body))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				slog.Info("Failed to parse notification body, using raw text", "error", err)
				return body
			}
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}
		}
	}
}
