// Package markdown renders user-supplied text to HTML. Raw HTML in the
// source is escaped.
package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Render converts content to HTML. On a conversion failure it returns the
// fallback paragraph rather than an error, as callers only decorate
// responses with it.
func Render(content string) string {
	if content == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return "<p>Error rendering markdown</p>"
	}
	return buf.String()
}
