package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a markdown renderer wrapping at width. It never
// returns nil; Markdown falls back to plain text if construction failed.
func NewRenderer(width int) *glamour.TermRenderer {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// Markdown renders text, returning it unchanged when rendering fails.
func Markdown(r *glamour.TermRenderer, text string) string {
	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
