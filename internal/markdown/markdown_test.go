package markdown

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"emphasis", "**bold**", "<p><strong>bold</strong></p>\n"},
		{"strikethrough", "~~gone~~", "<p><del>gone</del></p>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.in); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderEscapesRawHTML(t *testing.T) {
	got := Render("<script>alert(1)</script>")
	if strings.Contains(got, "<script>") {
		t.Fatalf("raw html leaked: %q", got)
	}
}
