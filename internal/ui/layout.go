// Package ui holds the frame shared by every view: header, content area,
// and a status bar that doubles as the notice line.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-client/internal/theme"
)

// SidebarWidth is the folder column width of the mailbox view.
const SidebarWidth = 24

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the active view.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// Columns splits the content width into a sidebar and a main column. The
// sidebar shrinks on narrow terminals.
func (l Layout) Columns() (sidebar, main int) {
	sidebar = min(SidebarWidth, l.Width/3)
	return sidebar, max(l.Width-sidebar, 0)
}

// RenderHeader renders the top bar: title on the left, status on the right.
func (l Layout) RenderHeader(title, status string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Render(status)
	return join(theme.HeaderStyle, l.Width, left, right)
}

// RenderStatusBar renders the bottom bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	return join(theme.StatusBarStyle, l.Width, theme.StatusBarStyle.Render(hints), "")
}

// RenderNotice renders a notice in place of the status bar.
func (l Layout) RenderNotice(message string, isError bool) string {
	style := theme.NoticeStyle(isError)
	return join(style, l.Width, style.Render(message), "")
}

// RenderWithFrame stacks header, content, and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// join places left and right at the edges of a width-wide bar filled with
// style's background.
func join(style lipgloss.Style, width int, left, right string) string {
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}
