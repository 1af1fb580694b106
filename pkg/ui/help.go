package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

const helpIntro = `# Selectable table

Rows are loaded page by page as you scroll near the bottom. Selected rows
appear as labels above the table; the serialized value is what ` + "`y`" + `
copies.

While a search is active, scrolling does not load more pages. Press
` + "`m`" + ` to load the next page explicitly.

`

// helpMarkdown renders the key map as a markdown table.
func helpMarkdown(k keyMap) string {
	var sb strings.Builder
	sb.WriteString(helpIntro)
	sb.WriteString("| Key | Action |\n|---|---|\n")
	for _, b := range k.all() {
		h := b.Help()
		fmt.Fprintf(&sb, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	return sb.String()
}

// renderHelp renders the help text for width. It falls back to the raw
// markdown when glamour fails.
func renderHelp(width int) string {
	md := helpMarkdown(keys)
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
