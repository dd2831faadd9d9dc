package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Result kinds
	App     lipgloss.AdaptiveColor
	Math    lipgloss.AdaptiveColor
	Setting lipgloss.AdaptiveColor
	Contact lipgloss.AdaptiveColor
	File    lipgloss.AdaptiveColor
	Action  lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style

	// Pre-computed row styles, created once instead of per frame.
	MutedText     lipgloss.Style
	SecondaryText lipgloss.Style
	PrimaryBold   lipgloss.Style
	Favorite      lipgloss.Style
	Notice        lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},
		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},

		App:     lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
		Math:    lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		Setting: lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},
		Contact: lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#6699FF"},
		File:    lipgloss.AdaptiveColor{Light: "#008080", Dark: "#00CED1"},
		Action:  lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		PaddingLeft(1).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.SecondaryText = r.NewStyle().Foreground(t.Secondary)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.Favorite = r.NewStyle().Foreground(ThemeFg("#FFD700"))
	t.Notice = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}).Italic(true)

	return t
}

// KindIcon returns a one-cell marker and color for a result kind.
func (t Theme) KindIcon(k model.ResultKind) (string, lipgloss.AdaptiveColor) {
	switch k {
	case model.ResultApp:
		return "A", t.App
	case model.ResultMath:
		return "=", t.Math
	case model.ResultSetting:
		return "S", t.Setting
	case model.ResultContact:
		return "C", t.Contact
	case model.ResultFile:
		return "F", t.File
	case model.ResultAction:
		return ">", t.Action
	default:
		return "·", t.Subtext
	}
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
