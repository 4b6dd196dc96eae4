// Package auth is the sign-in and registration gate shown without a session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-client/internal/api"
	"github.com/nhle/mail-client/internal/message"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/theme"
)

// Authenticator starts a session.
type Authenticator interface {
	SignIn(ctx context.Context, creds model.Credentials) (model.User, error)
	Register(ctx context.Context, reg model.Registration) (model.User, error)
}

// Mode selects which form is shown.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

// SignedInMsg is emitted once the session has started.
type SignedInMsg struct {
	User model.User
}

type authResultMsg struct {
	user model.User
	err  error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	username string
	email    string
	fullName string
	password string
	confirm  string
}

// Model is the auth gate view.
type Model struct {
	auth    Authenticator
	mode    Mode
	form    *huh.Form
	fb      *formBindings
	busy    bool
	errMsg  string
	spinner spinner.Model
	width   int
	height  int
}

// New creates the auth view in login mode.
func New(a Authenticator, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		auth:    a,
		fb:      &formBindings{},
		spinner: sp,
		width:   width,
		height:  height,
	}
	m.form = m.buildForm()
	return m
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Reset returns the view to an empty login form, keeping the username.
// errMsg, when set, is shown above the form.
func (m *Model) Reset(errMsg string) tea.Cmd {
	m.mode = ModeLogin
	m.busy = false
	m.errMsg = errMsg
	m.fb.password = ""
	m.fb.confirm = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Mode returns the current form mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Update handles messages for the auth view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case authResultMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = failureMessage(m.mode, msg.err)
			m.fb.password = ""
			m.fb.confirm = ""
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		m.errMsg = ""
		user := msg.user
		return m, func() tea.Msg { return SignedInMsg{User: user} }

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		if msg.String() == "ctrl+n" {
			if m.mode == ModeLogin {
				m.mode = ModeRegister
			} else {
				m.mode = ModeLogin
			}
			m.errMsg = ""
			m.form = m.buildForm()
			return m, m.form.Init()
		}
	}

	if m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.busy = true
		m.errMsg = ""
		return m, tea.Batch(m.spinner.Tick, m.submit())
	case huh.StateAborted:
		m.form = m.buildForm()
		return m, m.form.Init()
	}

	return m, cmd
}

func (m Model) submit() tea.Cmd {
	a := m.auth
	mode := m.mode
	fb := *m.fb
	return func() tea.Msg {
		ctx := context.Background()
		if mode == ModeRegister {
			user, err := a.Register(ctx, model.Registration{
				Username: strings.TrimSpace(fb.username),
				Email:    strings.TrimSpace(fb.email),
				Password: fb.password,
				FullName: strings.TrimSpace(fb.fullName),
			})
			return authResultMsg{user: user, err: err}
		}
		user, err := a.SignIn(ctx, model.Credentials{
			Username: strings.TrimSpace(fb.username),
			Password: fb.password,
		})
		return authResultMsg{user: user, err: err}
	}
}

// failureMessage prefers the backend's explanation.
func failureMessage(mode Mode, err error) string {
	if detail := api.Detail(err); detail != "" {
		return detail
	}
	if mode == ModeRegister {
		return "Registration failed"
	}
	return "Login failed"
}

func (m *Model) buildForm() *huh.Form {
	username := huh.NewInput().
		Title("Username").
		Value(&m.fb.username).
		Validate(validateRequired("Username"))
	password := huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&m.fb.password).
		Validate(validateRequired("Password"))

	if m.mode == ModeLogin {
		return huh.NewForm(huh.NewGroup(username, password)).
			WithShowHelp(false).
			WithWidth(m.formWidth())
	}

	fb := m.fb
	return huh.NewForm(
		huh.NewGroup(
			username,
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.fb.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Full name").
				Placeholder("Optional").
				Value(&m.fb.fullName),
			password,
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.confirm).
				Validate(func(s string) error {
					if s != fb.password {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		),
	).WithShowHelp(false).WithWidth(m.formWidth())
}

// View renders the auth view.
func (m Model) View() string {
	title := "Sign in"
	toggle := "ctrl+n create an account"
	if m.mode == ModeRegister {
		title = "Create account"
		toggle = "ctrl+n back to sign in"
	}

	parts := []string{theme.TitleStyle.Render(title)}
	if m.errMsg != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.errMsg), "")
	}
	if m.busy {
		label := "Signing in..."
		if m.mode == ModeRegister {
			label = "Creating account..."
		}
		parts = append(parts, fmt.Sprintf("%s %s", m.spinner.View(), label))
	} else {
		parts = append(parts, m.form.View(), theme.HintStyle.Render("enter next | "+toggle))
	}

	box := theme.PanelStyle.
		Padding(1, 2).
		Width(m.formWidth() + 6).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-10, 30), 60)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateEmail(s string) error {
	if err := validateRequired("Email")(s); err != nil {
		return err
	}
	addrs, err := message.ParseAddresses(s)
	if err != nil || len(addrs) != 1 {
		return errors.New("enter a single valid email address")
	}
	return nil
}
