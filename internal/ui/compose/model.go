// Package compose is the new-message form.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-client/internal/mail"
	"github.com/nhle/mail-client/internal/message"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/prefs"
	"github.com/nhle/mail-client/internal/theme"
)

// Sender sends a composed email.
type Sender interface {
	ComposeEmail(ctx context.Context, in model.EmailCompose) error
}

// DoneMsg is emitted when the composer closes. Sent is false when the
// user cancelled.
type DoneMsg struct {
	Sent bool
}

type sentMsg struct {
	err error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	accountID int64
	to        string
	cc        string
	subject   string
	body      string
	send      bool
}

// Model is the compose view.
type Model struct {
	sender   Sender
	prefs    *prefs.Store
	accounts []model.Account

	form    *huh.Form
	fb      *formBindings
	sending bool
	errMsg  string
	spinner spinner.Model

	width, height int
}

// New creates the compose view.
func New(sender Sender, p *prefs.Store, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		sender:  sender,
		prefs:   p,
		fb:      &formBindings{},
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Open starts a new message sent from one of accounts, preselecting
// fromID when it is among them.
func (m *Model) Open(accounts []model.Account, fromID int64) tea.Cmd {
	m.accounts = accounts
	*m.fb = formBindings{accountID: fromID, send: true}
	if len(accounts) > 0 && !hasAccount(accounts, fromID) {
		m.fb.accountID = accounts[0].ID
	}
	m.sending = false
	m.errMsg = ""
	m.prefs.SetComposing(true)
	m.form = m.buildForm()
	return m.form.Init()
}

func hasAccount(accounts []model.Account, id int64) bool {
	for _, a := range accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Sending reports whether the message is being sent.
func (m Model) Sending() bool {
	return m.sending
}

func (m *Model) buildForm() *huh.Form {
	fb := m.fb
	options := make([]huh.Option[int64], len(m.accounts))
	for i, a := range m.accounts {
		options[i] = huh.NewOption(fmt.Sprintf("%s <%s>", a.Label(), a.EmailAddress), a.ID)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int64]().
				Title("From").
				Options(options...).
				Value(&fb.accountID),
			huh.NewInput().
				Title("To").
				Placeholder("ann@example.com, Bob <bob@example.com>").
				Value(&fb.to).
				Validate(validateRecipients(true)),
			huh.NewInput().
				Title("Cc").
				Value(&fb.cc).
				Validate(validateRecipients(false)),
			huh.NewInput().
				Title("Subject").
				Value(&fb.subject),
			huh.NewText().
				Title("Message").
				Lines(10).
				Value(&fb.body),
			huh.NewConfirm().
				Title("Send now?").
				Affirmative("Send").
				Negative("Discard").
				Value(&fb.send),
		),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

func validateRecipients(required bool) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			if required {
				return errors.New("at least one recipient is required")
			}
			return nil
		}
		if _, err := message.ParseAddresses(s); err != nil {
			return errors.New("enter addresses separated by commas")
		}
		return nil
	}
}

// request builds the send request from the form values.
func (fb *formBindings) request() (model.EmailCompose, error) {
	to, err := message.ParseAddresses(fb.to)
	if err != nil {
		return model.EmailCompose{}, err
	}
	cc, err := message.ParseAddresses(fb.cc)
	if err != nil {
		return model.EmailCompose{}, err
	}
	if len(to) == 0 {
		return model.EmailCompose{}, errors.New("at least one recipient is required")
	}
	return model.EmailCompose{
		AccountID: fb.accountID,
		To:        to,
		Cc:        cc,
		Subject:   strings.TrimSpace(fb.subject),
		BodyText:  fb.body,
	}, nil
}

// Update handles messages for the compose view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sentMsg:
		m.sending = false
		if msg.err != nil {
			// Keep the draft; the notice carries the reason.
			m.errMsg = mail.UserMessage(msg.err, "Failed to send email")
			m.fb.send = true
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		m.prefs.SetComposing(false)
		return m, done(true)

	case spinner.TickMsg:
		if !m.sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.form == nil || m.sending {
		return m, nil
	}
	if len(m.accounts) == 0 {
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
			m.prefs.SetComposing(false)
			return m, done(false)
		}
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		if !m.fb.send {
			m.prefs.SetComposing(false)
			return m, done(false)
		}
		in, err := m.fb.request()
		if err != nil {
			m.errMsg = err.Error()
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		m.sending = true
		m.errMsg = ""
		sender := m.sender
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
			return sentMsg{err: sender.ComposeEmail(context.Background(), in)}
		})

	case huh.StateAborted:
		m.prefs.SetComposing(false)
		return m, done(false)
	}
	return m, cmd
}

func done(sent bool) tea.Cmd {
	return func() tea.Msg { return DoneMsg{Sent: sent} }
}

// View renders the compose view.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("New Message"))
	b.WriteString("\n\n")

	switch {
	case len(m.accounts) == 0:
		b.WriteString(theme.MutedStyle.Render(
			"Add an email account before composing.\n\nPress esc to go back.",
		))
	case m.sending:
		b.WriteString(m.spinner.View() + " Sending...")
	default:
		if m.errMsg != "" {
			b.WriteString(theme.ErrorStyle.Render(m.errMsg))
			b.WriteString("\n\n")
		}
		if m.form != nil {
			b.WriteString(m.form.View())
		}
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(b.String())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}
