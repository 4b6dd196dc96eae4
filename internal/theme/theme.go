// Package theme holds the lipgloss palette and shared styles.
package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the top bar and panel titles.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle frames the sidebar, the message body and overlays.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// FocusedPanelStyle is PanelStyle for the panel holding keyboard focus.
var FocusedPanelStyle = PanelStyle.
	BorderForeground(ColorBlue)

// ListItemStyle is the base style for rows in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the row under the cursor.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// TitleStyle is used for view titles.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	MarginBottom(1)

// MutedStyle is used for secondary text such as previews and timestamps.
var MutedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// HintStyle is used for keyboard hints inside views.
var HintStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// SectionStyle heads a group on the help page.
var SectionStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// KeyStyle renders a key name on the help page.
var KeyStyle = lipgloss.NewStyle().
	Foreground(ColorMagenta)

// UnreadStyle marks unread messages.
var UnreadStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// StarStyle colors the starred marker.
var StarStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// ErrorStyle is used for inline errors.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// SuccessStyle is used for inline confirmations.
var SuccessStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen)

// EmptyStateStyle centers guidance text in an empty area.
func EmptyStateStyle(width, height int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(ColorGray)
}

// NoticeStyle returns the status bar style for a notice. Errors are red,
// everything else green.
func NoticeStyle(isError bool) lipgloss.Style {
	base := StatusBarStyle.Bold(true)
	if isError {
		return base.Background(ColorRed)
	}
	return base.Background(ColorGreen)
}

// BadgeStyle returns a small colored label, used for account flags such
// as "default" and "inactive".
func BadgeStyle(label string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch label {
	case "default":
		return base.Foreground(ColorBlue)
	case "inactive":
		return base.Foreground(ColorGray)
	case "ok":
		return base.Foreground(ColorGreen)
	case "failed":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorMagenta)
	}
}
