// Package settings manages the user's mail accounts: add, edit, test,
// delete, avatar upload and default selection.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-client/internal/api"
	"github.com/nhle/mail-client/internal/keys"
	"github.com/nhle/mail-client/internal/mail"
	"github.com/nhle/mail-client/internal/message"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/query"
	"github.com/nhle/mail-client/internal/theme"
)

// Service is the data access the settings view needs.
type Service interface {
	Accounts(ctx context.Context) query.Result[[]model.Account]
	CreateAccount(ctx context.Context, in model.AccountCreate) (model.Account, error)
	UpdateAccount(ctx context.Context, id int64, in model.AccountUpdate) (model.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	TestAccount(ctx context.Context, id int64) (model.ConnectionTest, error)
	UploadAvatar(ctx context.Context, id int64, filename string, image io.Reader) (model.AvatarUpload, error)
}

// Mode is the current state of the settings view.
type Mode int

const (
	ModeList          Mode = iota // account list
	ModeFormAdd                   // new account form
	ModeFormEdit                  // edit account form
	ModeSaving                    // create or update in flight
	ModeTesting                   // connection test in flight
	ModeTestResult                // connection test outcome
	ModeConfirmDelete             // delete confirmation
	ModeAvatar                    // avatar file picker
)

// DoneMsg asks the root model to leave the settings view.
type DoneMsg struct{}

type accountsLoadedMsg struct {
	result query.Result[[]model.Account]
}

type savedMsg struct {
	account  model.Account
	err      error
	fromForm bool
}

type deletedMsg struct {
	id  int64
	err error
}

type testedMsg struct {
	id     int64
	result model.ConnectionTest
	err    error
}

type avatarMsg struct {
	id  int64
	err error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	name        string
	email       string
	displayName string

	imapHost     string
	imapPort     string
	imapSSL      bool
	imapUsername string
	imapPassword string

	smtpHost     string
	smtpPort     string
	smtpSSL      bool
	smtpUsername string
	smtpPassword string

	pop3Host     string
	pop3Port     string
	pop3SSL      bool
	pop3Username string
	pop3Password string

	active        bool
	deleteConfirm bool
	avatarPath    string
}

func (fb *formBindings) reset() {
	*fb = formBindings{
		imapPort: strconv.Itoa(model.DefaultIMAPPort),
		imapSSL:  true,
		smtpPort: strconv.Itoa(model.DefaultSMTPPort),
		smtpSSL:  true,
		pop3Port: strconv.Itoa(model.DefaultPOP3Port),
		pop3SSL:  true,
		active:   true,
	}
}

// Model is the settings view.
type Model struct {
	svc  Service
	keys *keys.KeyMap

	mode        Mode
	accounts    []model.Account
	loadErr     error
	loaded      bool
	selectedIdx int
	editingID   int64

	form *huh.Form
	fb   *formBindings

	testResult *model.ConnectionTest
	testErr    error
	spinner    spinner.Model

	statusMsg string
	statusErr bool

	width, height int
}

// New creates the settings view.
func New(svc Service, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	fb := &formBindings{}
	fb.reset()
	return Model{
		svc:     svc,
		keys:    k,
		fb:      fb,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Init loads the accounts.
func (m Model) Init() tea.Cmd {
	return m.loadAccounts()
}

// Open returns the view to the account list and reloads it.
func (m *Model) Open() tea.Cmd {
	m.mode = ModeList
	m.statusMsg = ""
	m.form = nil
	return m.loadAccounts()
}

// StartAdd opens the new account form directly.
func (m *Model) StartAdd() tea.Cmd {
	m.fb.reset()
	m.editingID = 0
	m.mode = ModeFormAdd
	m.form = m.buildAddForm()
	return m.form.Init()
}

// HandleCacheUpdate reloads the list when accounts changed.
func (m Model) HandleCacheUpdate(k query.Key) tea.Cmd {
	if k.Entity == mail.EntityAccount && k.Kind == mail.KindList {
		return m.loadAccounts()
	}
	return nil
}

// Mode returns the current mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Inputting reports whether a form has the keyboard.
func (m Model) Inputting() bool {
	switch m.mode {
	case ModeFormAdd, ModeFormEdit, ModeConfirmDelete, ModeAvatar:
		return true
	}
	return false
}

func (m Model) loadAccounts() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		return accountsLoadedMsg{result: svc.Accounts(context.Background())}
	}
}

// Update handles messages and dispatches on the current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case accountsLoadedMsg:
		m.loadErr = msg.result.Err
		if msg.result.HasData {
			m.accounts = msg.result.Data
			m.loaded = true
		}
		if m.selectedIdx >= len(m.accounts) {
			m.selectedIdx = max(len(m.accounts)-1, 0)
		}
		return m, nil

	case savedMsg:
		if msg.err != nil && !msg.fromForm {
			m.mode = ModeList
			m.setStatus(mail.UserMessage(msg.err, "Failed to update account"), true)
			return m, nil
		}
		if msg.err != nil {
			// Back to the form so the input is not lost.
			m.setStatus(mail.UserMessage(msg.err, "Failed to save account"), true)
			if m.editingID == 0 {
				m.mode = ModeFormAdd
				m.form = m.buildAddForm()
			} else {
				m.mode = ModeFormEdit
				m.form = m.buildEditForm()
			}
			return m, m.form.Init()
		}
		m.mode = ModeList
		m.setStatus(fmt.Sprintf("Saved %s", msg.account.Label()), false)
		m.form = nil
		return m, m.loadAccounts()

	case deletedMsg:
		m.mode = ModeList
		if msg.err != nil {
			m.setStatus(mail.UserMessage(msg.err, "Failed to delete account"), true)
			return m, nil
		}
		m.setStatus("Account deleted", false)
		m.accounts = slices.DeleteFunc(m.accounts, func(a model.Account) bool { return a.ID == msg.id })
		if m.selectedIdx >= len(m.accounts) && m.selectedIdx > 0 {
			m.selectedIdx--
		}
		return m, m.loadAccounts()

	case testedMsg:
		if m.mode != ModeTesting {
			return m, nil
		}
		m.mode = ModeTestResult
		m.testErr = msg.err
		if msg.err == nil {
			res := msg.result
			m.testResult = &res
		}
		return m, nil

	case avatarMsg:
		m.mode = ModeList
		if msg.err != nil {
			m.setStatus(mail.UserMessage(msg.err, "Failed to upload avatar"), true)
			return m, nil
		}
		m.setStatus("Avatar updated", false)
		return m, m.loadAccounts()

	case spinner.TickMsg:
		if m.mode == ModeTesting || m.mode == ModeSaving {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m.updateForm(msg)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeList:
		return m.handleListKeys(msg)
	case ModeTestResult:
		return m.handleTestResultKeys(msg)
	case ModeTesting:
		if msg.String() == "esc" {
			m.mode = ModeList
			return m, nil
		}
		return m, nil
	case ModeSaving:
		return m, nil
	}
	return m.updateForm(msg)
}

func (m Model) handleListKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return DoneMsg{} }

	case key.Matches(msg, m.keys.Add):
		return m, m.StartAdd()

	case key.Matches(msg, m.keys.Retry):
		return m, m.loadAccounts()
	}

	acc, ok := m.selected()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		m.selectedIdx = (m.selectedIdx + 1) % len(m.accounts)

	case key.Matches(msg, m.keys.Up):
		m.selectedIdx = (m.selectedIdx - 1 + len(m.accounts)) % len(m.accounts)

	case key.Matches(msg, m.keys.Edit):
		m.fillFromAccount(acc)
		m.editingID = acc.ID
		m.mode = ModeFormEdit
		m.form = m.buildEditForm()
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Delete):
		m.fb.deleteConfirm = false
		m.mode = ModeConfirmDelete
		m.form = m.buildDeleteConfirmForm(acc)
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Test), key.Matches(msg, m.keys.Select):
		return m, m.startTest(acc.ID)

	case key.Matches(msg, m.keys.Avatar):
		m.fb.avatarPath = ""
		m.mode = ModeAvatar
		m.form = m.buildAvatarForm()
		return m, m.form.Init()

	case key.Matches(msg, m.keys.SetDefault):
		if acc.IsDefault {
			return m, nil
		}
		m.editingID = acc.ID
		m.mode = ModeSaving
		return m, tea.Batch(m.spinner.Tick, m.update(acc.ID, model.AccountUpdate{IsDefault: ptr(true)}, false))
	}
	return m, nil
}

func (m Model) handleTestResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select), key.Matches(msg, m.keys.Back):
		m.mode = ModeList
		m.testResult = nil
		m.testErr = nil
		return m, nil
	case key.Matches(msg, m.keys.Retry), msg.String() == "r":
		if acc, ok := m.selected(); ok {
			return m, m.startTest(acc.ID)
		}
	}
	return m, nil
}

func (m *Model) startTest(id int64) tea.Cmd {
	m.mode = ModeTesting
	m.testResult = nil
	m.testErr = nil
	svc := m.svc
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		res, err := svc.TestAccount(context.Background(), id)
		return testedMsg{id: id, result: res, err: err}
	})
}

func (m Model) selected() (model.Account, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.accounts) {
		return model.Account{}, false
	}
	return m.accounts[m.selectedIdx], true
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusErr = isErr
}

// --- Forms ---

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	switch m.mode {
	case ModeFormAdd, ModeFormEdit, ModeConfirmDelete, ModeAvatar:
	default:
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.submitForm()
	case huh.StateAborted:
		m.mode = ModeList
		m.form = nil
		return m, nil
	}
	return m, cmd
}

func (m Model) submitForm() (Model, tea.Cmd) {
	switch m.mode {
	case ModeFormAdd:
		in, err := m.fb.accountCreate()
		if err != nil {
			m.setStatus(err.Error(), true)
			m.form = m.buildAddForm()
			return m, m.form.Init()
		}
		m.mode = ModeSaving
		svc := m.svc
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
			acc, err := svc.CreateAccount(context.Background(), in)
			return savedMsg{account: acc, err: err, fromForm: true}
		})

	case ModeFormEdit:
		m.mode = ModeSaving
		return m, tea.Batch(m.spinner.Tick, m.update(m.editingID, m.fb.accountUpdate(), true))

	case ModeConfirmDelete:
		acc, ok := m.selected()
		if !m.fb.deleteConfirm || !ok {
			m.mode = ModeList
			m.form = nil
			return m, nil
		}
		m.mode = ModeSaving
		svc := m.svc
		return m, func() tea.Msg {
			return deletedMsg{id: acc.ID, err: svc.DeleteAccount(context.Background(), acc.ID)}
		}

	case ModeAvatar:
		acc, ok := m.selected()
		if !ok {
			m.mode = ModeList
			return m, nil
		}
		m.mode = ModeSaving
		return m, tea.Batch(m.spinner.Tick, uploadAvatar(m.svc, acc.ID, m.fb.avatarPath))
	}
	return m, nil
}

func (m Model) update(id int64, in model.AccountUpdate, fromForm bool) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		acc, err := svc.UpdateAccount(context.Background(), id, in)
		return savedMsg{account: acc, err: err, fromForm: fromForm}
	}
}

func uploadAvatar(svc Service, id int64, path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(expandHome(path))
		if err != nil {
			return avatarMsg{id: id, err: fmt.Errorf("opening avatar: %w", err)}
		}
		defer f.Close()
		_, err = svc.UploadAvatar(context.Background(), id, filepath.Base(path), f)
		return avatarMsg{id: id, err: err}
	}
}

func (m *Model) fillFromAccount(acc model.Account) {
	m.fb.reset()
	m.fb.name = acc.Name
	m.fb.email = acc.EmailAddress
	m.fb.displayName = acc.DisplayName
	m.fb.active = acc.IsActive
}

func (m *Model) buildAddForm() *huh.Form {
	fb := m.fb
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account name").
				Placeholder("Work").
				Value(&fb.name).
				Validate(validateRequired("Account name")),
			huh.NewInput().
				Title("Email address").
				Placeholder("you@example.com").
				Value(&fb.email).
				Validate(validateAddress),
			huh.NewInput().
				Title("Display name").
				Description("Shown to recipients; optional").
				Value(&fb.displayName),
		).Title("Account"),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP host").
				Placeholder("imap.example.com").
				Value(&fb.imapHost).
				Validate(validateRequired("IMAP host")),
			huh.NewInput().
				Title("IMAP port").
				Value(&fb.imapPort).
				Validate(validatePort),
			huh.NewConfirm().
				Title("IMAP over SSL").
				Value(&fb.imapSSL),
			huh.NewInput().
				Title("IMAP username").
				Value(&fb.imapUsername).
				Validate(validateRequired("IMAP username")),
			huh.NewInput().
				Title("IMAP password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.imapPassword).
				Validate(validateRequired("IMAP password")),
		).Title("Incoming mail (IMAP)"),
		huh.NewGroup(
			huh.NewInput().
				Title("SMTP host").
				Placeholder("smtp.example.com").
				Value(&fb.smtpHost).
				Validate(validateRequired("SMTP host")),
			huh.NewInput().
				Title("SMTP port").
				Value(&fb.smtpPort).
				Validate(validatePort),
			huh.NewConfirm().
				Title("SMTP over SSL").
				Value(&fb.smtpSSL),
			huh.NewInput().
				Title("SMTP username").
				Description("Leave empty to reuse the IMAP username").
				Value(&fb.smtpUsername),
			huh.NewInput().
				Title("SMTP password").
				Description("Leave empty to reuse the IMAP password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.smtpPassword),
		).Title("Outgoing mail (SMTP)"),
		huh.NewGroup(
			huh.NewInput().
				Title("POP3 host").
				Description("Optional").
				Value(&fb.pop3Host),
			huh.NewInput().
				Title("POP3 port").
				Value(&fb.pop3Port).
				Validate(validateOptionalPort),
			huh.NewConfirm().
				Title("POP3 over SSL").
				Value(&fb.pop3SSL),
			huh.NewInput().
				Title("POP3 username").
				Value(&fb.pop3Username),
			huh.NewInput().
				Title("POP3 password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.pop3Password),
		).Title("POP3 (optional)"),
	).WithWidth(m.formWidth())
}

func (m *Model) buildEditForm() *huh.Form {
	fb := m.fb
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account name").
				Value(&fb.name).
				Validate(validateRequired("Account name")),
			huh.NewInput().
				Title("Display name").
				Value(&fb.displayName),
			huh.NewConfirm().
				Title("Active").
				Description("Inactive accounts are not synced").
				Value(&fb.active),
		).Title(fmt.Sprintf("Edit %s", fb.email)),
		huh.NewGroup(
			huh.NewInput().
				Title("New IMAP password").
				Description("Leave empty to keep the current one").
				EchoMode(huh.EchoModePassword).
				Value(&fb.imapPassword),
			huh.NewInput().
				Title("New SMTP password").
				Description("Leave empty to keep the current one").
				EchoMode(huh.EchoModePassword).
				Value(&fb.smtpPassword),
			huh.NewInput().
				Title("New POP3 password").
				Description("Leave empty to keep the current one").
				EchoMode(huh.EchoModePassword).
				Value(&fb.pop3Password),
		).Title("Passwords"),
	).WithWidth(m.formWidth())
}

func (m *Model) buildDeleteConfirmForm(acc model.Account) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete account %q?", acc.Label())).
				Description("Its synced emails are removed from the server as well.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.deleteConfirm),
		),
	).WithWidth(m.formWidth())
}

func (m *Model) buildAvatarForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Avatar image").
				Description("Path to a JPG, PNG, GIF or WebP file under 5MB").
				Placeholder("~/Pictures/me.png").
				Value(&m.fb.avatarPath).
				Validate(validateAvatarPath),
		),
	).WithWidth(m.formWidth())
}

func (fb *formBindings) accountCreate() (model.AccountCreate, error) {
	imapPort, err := strconv.Atoi(fb.imapPort)
	if err != nil {
		return model.AccountCreate{}, fmt.Errorf("invalid IMAP port %q", fb.imapPort)
	}
	smtpPort, err := strconv.Atoi(fb.smtpPort)
	if err != nil {
		return model.AccountCreate{}, fmt.Errorf("invalid SMTP port %q", fb.smtpPort)
	}

	in := model.AccountCreate{
		Name:         strings.TrimSpace(fb.name),
		EmailAddress: strings.TrimSpace(fb.email),
		DisplayName:  strings.TrimSpace(fb.displayName),
		IMAPHost:     strings.TrimSpace(fb.imapHost),
		IMAPPort:     imapPort,
		IMAPSSL:      fb.imapSSL,
		IMAPUsername: strings.TrimSpace(fb.imapUsername),
		IMAPPassword: fb.imapPassword,
		SMTPHost:     strings.TrimSpace(fb.smtpHost),
		SMTPPort:     smtpPort,
		SMTPSSL:      fb.smtpSSL,
		SMTPUsername: strings.TrimSpace(fb.smtpUsername),
		SMTPPassword: fb.smtpPassword,
	}
	if in.SMTPUsername == "" {
		in.SMTPUsername = in.IMAPUsername
	}
	if in.SMTPPassword == "" {
		in.SMTPPassword = in.IMAPPassword
	}

	if host := strings.TrimSpace(fb.pop3Host); host != "" {
		in.POP3Host = host
		in.POP3Port = model.DefaultPOP3Port
		if p, err := strconv.Atoi(fb.pop3Port); err == nil {
			in.POP3Port = p
		}
		in.POP3SSL = ptr(fb.pop3SSL)
		in.POP3Username = strings.TrimSpace(fb.pop3Username)
		in.POP3Password = fb.pop3Password
		if in.POP3Username == "" {
			in.POP3Username = in.IMAPUsername
		}
		if in.POP3Password == "" {
			in.POP3Password = in.IMAPPassword
		}
	}
	return in, nil
}

func (fb *formBindings) accountUpdate() model.AccountUpdate {
	in := model.AccountUpdate{
		Name:        ptr(strings.TrimSpace(fb.name)),
		DisplayName: ptr(strings.TrimSpace(fb.displayName)),
		IsActive:    ptr(fb.active),
	}
	if fb.imapPassword != "" {
		in.IMAPPassword = ptr(fb.imapPassword)
	}
	if fb.smtpPassword != "" {
		in.SMTPPassword = ptr(fb.smtpPassword)
	}
	if fb.pop3Password != "" {
		in.POP3Password = ptr(fb.pop3Password)
	}
	return in
}

// --- Validation ---

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateAddress(s string) error {
	addrs, err := message.ParseAddresses(s)
	if err != nil || len(addrs) != 1 {
		return errors.New("enter a single email address")
	}
	return nil
}

func validatePort(s string) error {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return errors.New("port must be a number between 1 and 65535")
	}
	return nil
}

func validateOptionalPort(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return validatePort(s)
}

var avatarExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

func validateAvatarPath(s string) error {
	path := expandHome(strings.TrimSpace(s))
	if path == "" {
		return errors.New("path is required")
	}
	if !slices.Contains(avatarExtensions, strings.ToLower(filepath.Ext(path))) {
		return errors.New("file must be a JPG, PNG, GIF or WebP image")
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.New("file not found")
	}
	if info.Size() > 5<<20 {
		return errors.New("file size must be less than 5MB")
	}
	return nil
}

func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

func ptr[T any](v T) *T { return &v }

// --- View ---

// View renders the settings view for the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeFormAdd, ModeFormEdit, ModeConfirmDelete, ModeAvatar:
		return m.viewForm()
	case ModeSaving:
		return m.frame(m.spinner.View() + " Saving...")
	case ModeTesting:
		return m.frame(m.spinner.View() + " Testing connection...\n\n" +
			theme.HintStyle.Render("esc cancel"))
	case ModeTestResult:
		return m.viewTestResult()
	default:
		return m.viewList()
	}
}

func (m Model) frame(content string) string {
	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m Model) viewList() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Email Accounts"))
	b.WriteString("\n\n")

	switch {
	case !m.loaded && m.loadErr != nil:
		b.WriteString(theme.ErrorStyle.Render("Could not load accounts."))
		if detail := api.Detail(m.loadErr); detail != "" {
			b.WriteString("\n" + detail)
		}
		b.WriteString("\n" + theme.HintStyle.Render("Press R to retry."))
	case !m.loaded:
		b.WriteString(theme.MutedStyle.Render("Loading accounts..."))
	case len(m.accounts) == 0:
		b.WriteString(theme.MutedStyle.Render(
			"No email accounts yet.\nPress 'a' to add your first account.",
		))
	default:
		for i, acc := range m.accounts {
			b.WriteString(m.renderAccount(i, acc))
			b.WriteString("\n")
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(theme.NoticeStyle(m.statusErr).Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(theme.HintStyle.Render(
		"a add | e edit | t test | i avatar | * default | d delete | esc back",
	))
	return m.frame(b.String())
}

func (m Model) renderAccount(idx int, acc model.Account) string {
	var badges []string
	if acc.IsDefault {
		badges = append(badges, theme.BadgeStyle("default").Render("default"))
	}
	if !acc.IsActive {
		badges = append(badges, theme.BadgeStyle("inactive").Render("inactive"))
	}

	line := fmt.Sprintf("%s  %s", acc.Label(), theme.MutedStyle.Render(acc.EmailAddress))
	if len(badges) > 0 {
		line += "  " + strings.Join(badges, " ")
	}
	detail := fmt.Sprintf("IMAP %s:%d  SMTP %s:%d", acc.IMAPHost, acc.IMAPPort, acc.SMTPHost, acc.SMTPPort)
	if acc.LastSync != nil && !acc.LastSync.IsZero() {
		detail += "  synced " + acc.LastSync.Local().Format("2006-01-02 15:04")
	}
	line += "\n  " + theme.MutedStyle.Render(detail)

	if idx == m.selectedIdx {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func (m Model) viewForm() string {
	if m.form == nil {
		return ""
	}
	content := m.form.View()
	if m.statusMsg != "" && m.statusErr {
		content = theme.ErrorStyle.Render(m.statusMsg) + "\n\n" + content
	}
	return m.frame(content)
}

func (m Model) viewTestResult() string {
	if m.testErr != nil {
		return m.frame(theme.ErrorStyle.Render("Connection test failed") + "\n\n" +
			mail.UserMessage(m.testErr, "Connection test failed") + "\n\n" +
			theme.HintStyle.Render("r retry | enter/esc back"))
	}
	res := m.testResult
	if res == nil {
		return m.frame("")
	}

	line := func(proto string, ok bool) string {
		if ok {
			return fmt.Sprintf("%-5s %s", proto, theme.BadgeStyle("ok").Render("ok"))
		}
		return fmt.Sprintf("%-5s %s", proto, theme.BadgeStyle("failed").Render("failed"))
	}
	rows := []string{line("IMAP", res.IMAPSuccess), line("SMTP", res.SMTPSuccess)}
	if res.POP3Success != nil {
		rows = append(rows, line("POP3", *res.POP3Success))
	}

	title := theme.SuccessStyle.Render("Connection test successful!")
	if !res.OK() {
		title = theme.ErrorStyle.Render("Connection test failed")
	}
	content := title + "\n\n" + strings.Join(rows, "\n")
	if res.ErrorMessage != "" {
		content += "\n\n" + res.ErrorMessage
	}
	hint := "enter/esc back"
	if !res.OK() {
		hint = "r retry | " + hint
	}
	return m.frame(content + "\n\n" + theme.HintStyle.Render(hint))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}
