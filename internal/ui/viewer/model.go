// Package viewer shows a single email and the actions on it.
package viewer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-client/internal/api"
	"github.com/nhle/mail-client/internal/keys"
	"github.com/nhle/mail-client/internal/mail"
	"github.com/nhle/mail-client/internal/message"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/query"
	"github.com/nhle/mail-client/internal/theme"
	"github.com/nhle/mail-client/internal/ui"
)

// Service is the data access the viewer needs.
type Service interface {
	Email(ctx context.Context, id int64) query.Result[model.Email]
	UpdateEmail(ctx context.Context, id int64, in model.EmailUpdate) (model.Email, error)
	DeleteEmail(ctx context.Context, id int64) error
}

// BackMsg asks the root model to return to the dashboard.
type BackMsg struct{}

// ExportedMsg reports the outcome of an .eml export.
type ExportedMsg struct {
	Path string
	Err  error
}

type loadedMsg struct {
	id     int64
	result query.Result[model.Email]
}

type updatedMsg struct {
	id    int64
	email model.Email
	err   error
}

type deletedMsg struct {
	id  int64
	err error
}

// Model is the email viewer.
type Model struct {
	svc       Service
	keys      *keys.KeyMap
	exportDir string
	now       func() time.Time

	id       int64
	siblings []int64
	email    *model.Email
	err      error
	loading  bool
	busy     bool

	viewport viewport.Model
	width    int
	height   int
}

// New creates the viewer. Exports are written to exportDir.
func New(svc Service, k *keys.KeyMap, exportDir string, width, height int) Model {
	if exportDir == "" {
		exportDir = "."
	}
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()
	// d and u act on the email.
	vp.KeyMap.HalfPageDown = key.NewBinding(key.WithKeys("ctrl+d"))
	vp.KeyMap.HalfPageUp = key.NewBinding(key.WithKeys("ctrl+u"))
	m := Model{
		svc:       svc,
		keys:      k,
		exportDir: exportDir,
		now:       time.Now,
		viewport:  vp,
	}
	m.SetSize(width, height)
	return m
}

// Open shows the email with id. siblings is the list it was opened from.
func (m *Model) Open(id int64, siblings []int64) tea.Cmd {
	m.id = id
	m.siblings = siblings
	m.email = nil
	m.err = nil
	m.loading = true
	m.busy = false
	m.viewport.SetContent("")
	return m.load()
}

// ID returns the id of the shown email, 0 when none is open.
func (m Model) ID() int64 {
	return m.id
}

// HandleCacheUpdate re-reads the shown email when its entry changed.
func (m Model) HandleCacheUpdate(k query.Key) tea.Cmd {
	if m.id == 0 || k != mail.EmailKey(m.id) {
		return nil
	}
	return m.load()
}

func (m Model) load() tea.Cmd {
	id := m.id
	svc := m.svc
	return func() tea.Msg {
		return loadedMsg{id: id, result: svc.Email(context.Background(), id)}
	}
}

// Update handles messages for the viewer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.id != m.id {
			return m, nil
		}
		m.loading = false
		m.err = msg.result.Err
		if !msg.result.HasData {
			return m, nil
		}
		first := m.email == nil
		email := msg.result.Data
		m.email = &email
		m.viewport.SetContent(m.renderContent())
		if first {
			m.viewport.GotoTop()
			if !email.IsRead {
				return m, m.update(model.EmailUpdate{IsRead: ptr(true)})
			}
		}
		return m, nil

	case updatedMsg:
		m.busy = false
		if msg.err != nil || msg.id != m.id {
			return m, nil
		}
		if msg.email.Folder != "" && m.email != nil && msg.email.Folder != m.email.Folder {
			// Moved out of the folder it was opened from.
			return m, back
		}
		m.email = &msg.email
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case deletedMsg:
		m.busy = false
		if msg.err != nil || msg.id != m.id {
			return m, nil
		}
		if next, ok := m.neighbour(1); ok {
			m.siblings = slices.DeleteFunc(m.siblings, func(id int64) bool { return id == msg.id })
			return m, m.Open(next, m.siblings)
		}
		return m, back

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, back

	case key.Matches(msg, m.keys.Retry):
		if m.err != nil {
			m.loading = m.email == nil
			return m, m.load()
		}
		return m, nil

	case key.Matches(msg, m.keys.NextEmail):
		if next, ok := m.neighbour(1); ok {
			return m, m.Open(next, m.siblings)
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevEmail):
		if prev, ok := m.neighbour(-1); ok {
			return m, m.Open(prev, m.siblings)
		}
		return m, nil
	}

	if m.email == nil || m.busy {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Star):
		return m, m.update(model.EmailUpdate{IsStarred: ptr(!m.email.IsStarred)})

	case key.Matches(msg, m.keys.ToggleRead):
		return m, m.update(model.EmailUpdate{IsRead: ptr(!m.email.IsRead)})

	case key.Matches(msg, m.keys.Archive):
		if m.email.Folder == model.ArchiveFolder {
			return m, nil
		}
		return m, m.update(model.EmailUpdate{Folder: ptr(model.ArchiveFolder)})

	case key.Matches(msg, m.keys.Delete):
		m.busy = true
		id, svc := m.id, m.svc
		return m, func() tea.Msg {
			return deletedMsg{id: id, err: svc.DeleteEmail(context.Background(), id)}
		}

	case key.Matches(msg, m.keys.Export):
		email, dir := *m.email, m.exportDir
		return m, func() tea.Msg {
			path, err := Export(dir, email)
			return ExportedMsg{Path: path, Err: err}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) update(in model.EmailUpdate) tea.Cmd {
	m.busy = true
	id, svc := m.id, m.svc
	return func() tea.Msg {
		email, err := svc.UpdateEmail(context.Background(), id, in)
		return updatedMsg{id: id, email: email, err: err}
	}
}

// neighbour returns the sibling dir steps away from the shown email.
func (m Model) neighbour(dir int) (int64, bool) {
	idx := slices.Index(m.siblings, m.id)
	if idx < 0 {
		return 0, false
	}
	next := idx + dir
	if next < 0 || next >= len(m.siblings) {
		return 0, false
	}
	return m.siblings[next], true
}

func back() tea.Msg { return BackMsg{} }

func ptr[T any](v T) *T { return &v }

// Export writes e as an .eml file into dir and returns its path.
func Export(dir string, e model.Email) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, message.FileName(e))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := message.WriteEML(f, e); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// View renders the viewer.
func (m Model) View() string {
	empty := theme.EmptyStateStyle(m.width, m.height)
	switch {
	case m.email == nil && m.loading:
		return empty.Render("Loading email...")
	case m.email == nil && m.err != nil:
		text := "Could not load this email."
		if detail := api.Detail(m.err); detail != "" {
			text += "\n" + detail
		}
		return empty.Render(text + "\n\nPress R to retry, esc to go back.")
	case m.email == nil:
		return empty.Render("No email selected")
	}
	return m.viewport.View()
}

func (m Model) renderContent() string {
	e := m.email
	if e == nil {
		return ""
	}
	width := max(m.width-2, 10)

	var sections []string
	sections = append(sections, theme.TitleStyle.Render(e.DisplaySubject()))

	var badges []string
	if e.IsStarred {
		badges = append(badges, theme.StarStyle.Render("★ starred"))
	}
	if !e.IsRead {
		badges = append(badges, theme.UnreadStyle.Render("● unread"))
	}
	if e.Folder != "" {
		badges = append(badges, theme.MutedStyle.Render(e.Folder))
	}
	if len(badges) > 0 {
		sections = append(sections, strings.Join(badges, "  "))
	}
	sections = append(sections, "")

	field := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, fmt.Sprintf("%s %s",
			theme.MutedStyle.Render(fmt.Sprintf("%-6s", label)),
			value,
		))
	}
	field("From:", e.Sender())
	field("To:", joinAddresses(e.To))
	field("Cc:", joinAddresses(e.Cc))
	if received := e.Received(); !received.IsZero() {
		field("Date:", fmt.Sprintf("%s (%s)",
			received.Local().Format("Mon, 02 Jan 2006 15:04"),
			ui.Ago(received.Time, m.now()),
		))
	}
	if len(e.Attachments) > 0 {
		names := make([]string, len(e.Attachments))
		for i, a := range e.Attachments {
			names[i] = a.Filename
		}
		field("Files:", strings.Join(names, ", "))
	}

	sections = append(sections, theme.MutedStyle.Render(strings.Repeat("─", width)), "")

	if e.HasBody() {
		sections = append(sections, lipgloss.NewStyle().Width(width).Render(message.Body(*e)))
	} else {
		sections = append(sections, theme.MutedStyle.Render("This email has no content."))
	}

	var nav []string
	if _, ok := m.neighbour(-1); ok {
		nav = append(nav, "p previous")
	}
	if _, ok := m.neighbour(1); ok {
		nav = append(nav, "n next")
	}
	if len(nav) > 0 {
		sections = append(sections, "", theme.HintStyle.Render(strings.Join(nav, " · ")))
	}

	return strings.Join(sections, "\n")
}

func joinAddresses(addrs []model.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// Busy reports whether an action on the email is in flight.
func (m Model) Busy() bool {
	return m.busy
}

// SetSize updates the viewer dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	if m.email != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
