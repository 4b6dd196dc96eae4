// Package help renders the keyboard reference page.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-client/internal/keys"
	"github.com/nhle/mail-client/internal/theme"
)

// Model is the help page.
type Model struct {
	keys   *keys.KeyMap
	short  help.Model
	width  int
	height int
}

func New(k *keys.KeyMap, width, height int) Model {
	m := Model{keys: k, short: help.New()}
	m.SetSize(width, height)
	return m
}

// Update is a no-op; the root model closes the page.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View lays the sections out in as many columns as the width allows.
func (m Model) View() string {
	var blocks []string
	for _, s := range m.keys.Sections() {
		blocks = append(blocks, renderSection(s))
	}

	colWidth := 0
	for _, b := range blocks {
		colWidth = max(colWidth, lipgloss.Width(b))
	}
	perRow := max((m.width-4)/(colWidth+3), 1)

	var rows []string
	for i := 0; i < len(blocks); i += perRow {
		row := blocks[i:min(i+perRow, len(blocks))]
		cells := make([]string, len(row))
		for j, b := range row {
			cells[j] = lipgloss.NewStyle().Width(colWidth + 3).Render(b)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.TitleStyle.Render("Keyboard Shortcuts"),
		strings.Join(rows, "\n\n"),
		"",
		m.short.View(m.keys),
		theme.HintStyle.Render("Keys apply to the view they are pressed in. ? or esc closes this page."),
	)

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

func renderSection(s keys.Section) string {
	keyWidth := 0
	for _, b := range s.Bindings {
		keyWidth = max(keyWidth, lipgloss.Width(b.Help().Key))
	}

	lines := []string{theme.SectionStyle.Render(s.Title)}
	for _, b := range s.Bindings {
		h := b.Help()
		lines = append(lines, fmt.Sprintf("%s  %s",
			theme.KeyStyle.Width(keyWidth).Render(h.Key),
			theme.MutedStyle.Render(h.Desc)))
	}
	return strings.Join(lines, "\n")
}

// SetSize updates the page dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.short.Width = max(width-4, 0)
}
