package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// truncateRunesHelper truncates s to maxWidth terminal cells, appending
// suffix when it cuts.
func truncateRunesHelper(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	sw := runewidth.StringWidth(suffix)
	if sw > maxWidth {
		return runewidth.Truncate(suffix, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth-sw, "") + suffix
}

func truncate(s string, maxWidth int) string {
	return truncateRunesHelper(s, maxWidth, "…")
}

// padRight pads s with spaces to width cells.
func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// fitCell truncates and pads s to exactly width cells.
func fitCell(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return padRight(truncate(s, width), width)
}

// columnWidths resolves widths for n columns. Fixed widths are kept; the
// remaining space is shared by the auto columns, each at least min.
func columnWidths(fixed []int, total, min int) []int {
	out := make([]int, len(fixed))
	rest, auto := total, 0
	for i, w := range fixed {
		if w > 0 {
			out[i] = w
			rest -= w + 1
		} else {
			auto++
		}
	}
	if auto == 0 {
		return out
	}
	share := (rest - auto) / auto
	if share < min {
		share = min
	}
	for i := range out {
		if out[i] == 0 {
			out[i] = share
		}
	}
	return out
}
