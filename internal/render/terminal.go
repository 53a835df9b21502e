package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"

	"github.com/dshills/contractcheck/internal/schema"
)

// TerminalOptions controls terminal rendering.
type TerminalOptions struct {
	// Width is the word-wrap column. Zero means 80.
	Width int
	// Style is a glamour standard style ("dark", "light", "notty", "ascii").
	// Empty selects a style from the terminal background.
	Style string
}

// RenderTerminal renders the Markdown report for display in a terminal.
func RenderTerminal(env *schema.Envelope, opts TerminalOptions) (string, error) {
	if env == nil {
		return "", fmt.Errorf("render: nil envelope")
	}
	return renderTerminalMarkdown(RenderMarkdown(env), opts)
}

// RenderTerminalText renders arbitrary Markdown, such as a clause
// explanation, with the same styling as reports.
func RenderTerminalText(markdown string, opts TerminalOptions) (string, error) {
	return renderTerminalMarkdown(markdown, opts)
}

func renderTerminalMarkdown(markdown string, opts TerminalOptions) (string, error) {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	style := glamour.WithAutoStyle()
	if opts.Style != "" {
		style = glamour.WithStylePath(opts.Style)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("render: terminal renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render: terminal: %w", err)
	}
	return out, nil
}
