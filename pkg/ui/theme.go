package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/seltable/pkg/viewmodel"
)

// TermProfile is the detected terminal color profile, computed once.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns hex on TrueColor terminals and no color otherwise, so
// lower-depth terminals keep their own background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns hex on ANSI256+ terminals and ANSI white below that.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Theme holds one style per view-model element plus a few row states.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Danger    lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor

	Cursor     lipgloss.Style
	Checked    lipgloss.Style
	ChipActive lipgloss.Style
	Muted      lipgloss.Style

	elems map[viewmodel.Element]lipgloss.Style
}

// DefaultTheme returns the Dracula-like adaptive theme.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer:  r,
		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},
		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Danger:    lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
		Success:   lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
	}

	t.Cursor = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		Bold(true)
	t.Checked = r.NewStyle().Foreground(t.Success)
	t.Muted = r.NewStyle().Foreground(t.Secondary)
	t.ChipActive = r.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Background(t.Primary).
		Padding(0, 1)

	t.elems = map[viewmodel.Element]lipgloss.Style{
		viewmodel.ElemRoot:      r.NewStyle(),
		viewmodel.ElemContainer: r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border),
		viewmodel.ElemToolPanel: r.NewStyle().PaddingBottom(1),
		viewmodel.ElemLabels:    r.NewStyle(),
		viewmodel.ElemLabelClose: r.NewStyle().
			Foreground(t.Primary).
			Background(t.Highlight).
			Padding(0, 1),
		viewmodel.ElemSearch: r.NewStyle().Foreground(t.Subtext),
		viewmodel.ElemHeader: r.NewStyle().
			Background(t.Primary).
			Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
			Bold(true),
		viewmodel.ElemTable:       r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"}),
		viewmodel.ElemCheckboxAll: r.NewStyle().Bold(true),
		viewmodel.ElemCheckboxRow: r.NewStyle().Foreground(t.Secondary),
		viewmodel.ElemIndicator:   r.NewStyle().Foreground(t.Subtext).Italic(true),
	}
	return t
}

// Style returns the style for a view-model element.
func (t Theme) Style(e viewmodel.Element) lipgloss.Style {
	if s, ok := t.elems[e]; ok {
		return s
	}
	return t.Renderer.NewStyle()
}

// IndicatorStyle colors the status line by kind.
func (t Theme) IndicatorStyle(k viewmodel.IndicatorKind) lipgloss.Style {
	s := t.Style(viewmodel.ElemIndicator)
	switch k {
	case viewmodel.IndicatorFailed:
		return s.Foreground(t.Danger)
	case viewmodel.IndicatorLoading:
		return s.Foreground(t.Primary)
	}
	return s
}

// TestTheme returns a theme bound to stdout, for tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
