// Package app is the root Bubble Tea model. It routes between views,
// listens for notices, cache updates, sync results and session changes,
// and renders the frame around the active view.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-client/internal/keys"
	"github.com/nhle/mail-client/internal/mail"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/prefs"
	"github.com/nhle/mail-client/internal/query"
	"github.com/nhle/mail-client/internal/session"
	appsync "github.com/nhle/mail-client/internal/sync"
	"github.com/nhle/mail-client/internal/ui"
	"github.com/nhle/mail-client/internal/ui/auth"
	"github.com/nhle/mail-client/internal/ui/command"
	"github.com/nhle/mail-client/internal/ui/compose"
	helpview "github.com/nhle/mail-client/internal/ui/help"
	"github.com/nhle/mail-client/internal/ui/mailbox"
	"github.com/nhle/mail-client/internal/ui/settings"
	"github.com/nhle/mail-client/internal/ui/viewer"
)

// noticeTTL is how long a notice stays in the status bar.
const noticeTTL = 4 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewAuth ViewState = iota
	ViewMailbox
	ViewViewer
	ViewSettings
	ViewCompose
	ViewHelp
	ViewCommand
)

type noticeMsg struct {
	notice mail.Notice
}

type noticeExpiredMsg struct {
	seq int
}

type cacheUpdateMsg struct {
	key query.Key
}

type sessionChangedMsg struct {
	state session.State
}

// sessionFeed hands session changes to the UI loop. It keeps only the
// latest state, so a burst of changes never hides the final one.
type sessionFeed struct {
	mu sync.Mutex
	ch chan session.State
}

func newSessionFeed() *sessionFeed {
	return &sessionFeed{ch: make(chan session.State, 1)}
}

// push replaces any undelivered state with st. It never blocks.
func (f *sessionFeed) push(st session.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.ch:
	default:
	}
	f.ch <- st
}

// Options wires the root model to the rest of the client.
type Options struct {
	Service  *mail.Service
	Session  *session.Store
	Prefs    *prefs.Store
	Poller   *appsync.Poller
	PageSize int

	// ExportDir is where the viewer writes exported emails.
	ExportDir string
}

// Model is the root Bubble Tea model that manages view routing and
// layout.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	ready        bool

	svc      *mail.Service
	session  *session.Store
	prefs    *prefs.Store
	poller   *appsync.Poller
	keys     *keys.KeyMap
	opts     Options
	now      func() time.Time
	sessions *sessionFeed

	authView     auth.Model
	mailbox      mailbox.Model
	viewer       viewer.Model
	settingsView settings.Model
	composeView  compose.Model
	helpView     helpview.Model
	commandView  command.Model

	notice          string
	noticeIsError   bool
	noticeSeq       int
	pollerListening bool
	signingOut      bool
}

// New creates the root model.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	m := Model{
		svc:      opts.Service,
		session:  opts.Session,
		prefs:    opts.Prefs,
		poller:   opts.Poller,
		keys:     k,
		opts:     opts,
		now:      time.Now,
		sessions: newSessionFeed(),

		authView:    auth.New(opts.Service, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
	}
	m.resetDataViews()

	opts.Session.Subscribe(m.sessions.push)

	if opts.Session.Authenticated() {
		m.currentView = ViewMailbox
	}
	return m
}

// resetDataViews rebuilds the views that hold per-user data.
func (m *Model) resetDataViews() {
	w, h := 80, 24
	if m.ready {
		w, h = m.layout.ContentWidth(), m.layout.ContentHeight()
	}
	m.mailbox = mailbox.New(m.svc, m.prefs, m.keys, m.opts.PageSize, w, h)
	m.viewer = viewer.New(m.svc, m.keys, m.opts.ExportDir, w, h)
	m.settingsView = settings.New(m.svc, m.keys, w, h)
	m.composeView = compose.New(m.svc, m.prefs, w, h)
}

// Init starts the listeners and the first view.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.waitForNotice(),
		m.waitForCacheUpdate(),
		m.waitForSession(),
	}
	if m.currentView == ViewMailbox {
		cmds = append(cmds, m.mailbox.Init(), m.startPoller())
	} else {
		cmds = append(cmds, m.authView.Init())
	}
	return tea.Batch(cmds...)
}

// startPoller starts background sync. The result listener is started
// only once; it survives Stop.
func (m *Model) startPoller() tea.Cmd {
	if m.poller == nil {
		return nil
	}
	cmd := m.poller.Start()
	if m.pollerListening {
		return nil
	}
	m.pollerListening = true
	return cmd
}

func (m Model) waitForNotice() tea.Cmd {
	ch := m.svc.Notices().C()
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg{notice: n}
	}
}

func (m Model) waitForCacheUpdate() tea.Cmd {
	ch := m.svc.Cache().Updates()
	return func() tea.Msg {
		k, ok := <-ch
		if !ok {
			return nil
		}
		return cacheUpdateMsg{key: k}
	}
}

func (m Model) waitForSession() tea.Cmd {
	ch := m.sessions.ch
	return func() tea.Msg {
		return sessionChangedMsg{state: <-ch}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.authView.SetSize(w, h)
		m.mailbox.SetSize(w, h)
		m.viewer.SetSize(w, h)
		m.settingsView.SetSize(w, h)
		m.composeView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to the active view so huh forms can lay out.
		return m.updateActiveView(msg)

	case noticeMsg:
		cmd := m.showNotice(msg.notice.Message, msg.notice.Level == mail.LevelError)
		return m, tea.Batch(cmd, m.waitForNotice())

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case cacheUpdateMsg:
		return m, tea.Batch(m.handleCacheUpdate(msg.key), m.waitForCacheUpdate())

	case sessionChangedMsg:
		cmd := m.handleSessionChange(msg.state)
		return m, tea.Batch(cmd, m.waitForSession())

	case appsync.SyncResultMsg:
		// Email lists are refreshed through the cache invalidation the
		// sync performs.
		var cmd tea.Cmd
		if m.poller != nil {
			cmd = m.poller.WaitForNextResult()
		}
		return m, cmd

	case auth.SignedInMsg:
		m.signingOut = false
		m.resetDataViews()
		m.currentView = ViewMailbox
		return m, tea.Batch(m.mailbox.Init(), m.startPoller())

	case mailbox.OpenEmailMsg:
		m.currentView = ViewViewer
		return m, m.viewer.Open(msg.ID, msg.Siblings)

	case viewer.BackMsg:
		m.prefs.SetSelectedEmailID(nil)
		m.currentView = ViewMailbox
		return m, m.mailbox.Reload()

	case viewer.ExportedMsg:
		if msg.Err != nil {
			return m, m.showNotice(fmt.Sprintf("Export failed: %v", msg.Err), true)
		}
		return m, m.showNotice("Saved "+msg.Path, false)

	case settings.DoneMsg:
		m.currentView = ViewMailbox
		return m, m.mailbox.Reload()

	case compose.DoneMsg:
		m.currentView = ViewMailbox
		return m, m.mailbox.Reload()

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if mm, cmd, handled := m.handleGlobalKey(msg); handled {
			return mm, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey handles keys that work across views. Views that own
// text input get printable keys first.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.stopPoller()
		return m, tea.Quit, true
	}
	if m.inputting() {
		if m.currentView == ViewCommand && msg.String() == "esc" {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false
	}

	switch msg.String() {
	case "?":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case ":":
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true

	case "esc":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
	}

	if m.currentView != ViewMailbox {
		return m, nil, false
	}

	switch msg.String() {
	case "q":
		m.stopPoller()
		return m, tea.Quit, true
	case "c":
		return m, m.openCompose(), true
	case "S":
		return m, m.openSettings(), true
	case "L":
		return m, m.signOut(), true
	}
	return m, nil, false
}

// inputting reports whether the active view is taking text input.
func (m Model) inputting() bool {
	switch m.currentView {
	case ViewAuth, ViewCompose, ViewCommand:
		return true
	case ViewMailbox:
		return m.mailbox.Inputting()
	case ViewSettings:
		return m.settingsView.Inputting()
	}
	return false
}

func (m *Model) openCompose() tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewCompose
	from, _ := m.prefs.SelectedAccount()
	return m.composeView.Open(m.mailbox.Accounts(), from)
}

func (m *Model) openSettings() tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewSettings
	return m.settingsView.Open()
}

func (m *Model) signOut() tea.Cmd {
	m.signingOut = true
	m.stopPoller()
	svc := m.svc
	return func() tea.Msg {
		svc.SignOut(context.Background())
		return nil
	}
}

func (m *Model) stopPoller() {
	if m.poller != nil {
		m.poller.Stop()
	}
}

// handleSessionChange returns to the login view once the session ends,
// whether signed out by the user or rejected by the backend.
func (m *Model) handleSessionChange(st session.State) tea.Cmd {
	if st.Authenticated || m.currentView == ViewAuth {
		return nil
	}
	m.stopPoller()
	m.svc.Cache().Clear()
	m.prefs.SetSearchQuery("")
	m.prefs.SetSelectedEmailID(nil)
	m.prefs.SetComposing(false)
	m.notice = ""

	reason := "Your session has expired. Please sign in again."
	if m.signingOut {
		reason = ""
		m.signingOut = false
	}
	m.currentView = ViewAuth
	return m.authView.Reset(reason)
}

func (m Model) handleCacheUpdate(k query.Key) tea.Cmd {
	switch m.currentView {
	case ViewMailbox:
		return m.mailbox.HandleCacheUpdate(k)
	case ViewViewer:
		return m.viewer.HandleCacheUpdate(k)
	case ViewSettings:
		return m.settingsView.HandleCacheUpdate(k)
	}
	return nil
}

func (m *Model) showNotice(text string, isError bool) tea.Cmd {
	if text == "" {
		return nil
	}
	m.noticeSeq++
	m.notice = text
	m.noticeIsError = isError
	seq := m.noticeSeq
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewAuth:
		m.authView, cmd = m.authView.Update(msg)
	case ViewMailbox:
		m.mailbox, cmd = m.mailbox.Update(msg)
	case ViewViewer:
		m.viewer, cmd = m.viewer.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.headerStatus())
	content := m.renderContent()

	statusBar := m.layout.RenderStatusBar(m.keyHints())
	if m.notice != "" {
		statusBar = m.layout.RenderNotice(m.notice, m.noticeIsError)
	}
	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewAuth:
		return m.authView.View()
	case ViewMailbox:
		return m.mailbox.View()
	case ViewViewer:
		return m.viewer.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewCompose:
		return m.composeView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

func (m Model) headerTitle() string {
	title := "Mail"
	if user, ok := m.session.User(); ok && m.currentView != ViewAuth {
		title += " · " + user.DisplayName()
	}
	return title
}

// headerStatus describes background sync and session expiry.
func (m Model) headerStatus() string {
	if m.currentView == ViewAuth {
		return ""
	}
	status := m.syncStatus()
	if exp, ok := m.session.ExpiresAt(); ok {
		left := exp.Sub(m.now())
		if left > 0 && left < time.Hour {
			status += fmt.Sprintf(" | session %dm left", int(left.Minutes()))
		}
	}
	return status
}

// syncStatus returns a short string describing the background sync state.
func (m Model) syncStatus() string {
	if m.mailbox.Syncing() {
		return "syncing..."
	}
	if m.poller == nil {
		return ""
	}
	st := m.poller.Status()
	switch st.State {
	case appsync.SyncRunning:
		return "syncing..."
	case appsync.SyncError:
		return "sync failed"
	}
	if st.LastSync.IsZero() {
		return "not synced"
	}
	return "synced " + ui.Ago(st.LastSync, m.now())
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewAuth:
		if m.authView.Mode() == auth.ModeRegister {
			return "enter next | ctrl+n sign in instead | ctrl+c quit"
		}
		return "enter next | ctrl+n create an account | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewViewer:
		return "esc back | s star | u read/unread | a archive | d delete | x export | n/p next/prev"
	case ViewSettings:
		return "a add | e edit | t test | i avatar | * default | d delete | esc back"
	case ViewCompose:
		return "tab next field | enter confirm | esc discard"
	default:
		if m.mailbox.Inputting() {
			return "enter search | esc cancel"
		}
		if m.prefs.SearchQuery() != "" {
			return "enter open | esc clear search | / new search | ? help"
		}
		return "q quit | ? help | enter open | tab folders | / search | r sync | c compose | S settings"
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(line string) tea.Cmd {
	verb, arg := command.Parse(line)

	if verb == "quit" || verb == "q" {
		m.stopPoller()
		return tea.Quit
	}
	if m.currentView == ViewAuth {
		return nil
	}

	switch verb {
	case "sync", "refresh":
		if m.poller != nil {
			m.poller.Refresh()
		}
		return m.mailbox.Sync()
	case "compose", "new":
		return m.openCompose()
	case "accounts", "settings":
		return m.openSettings()
	case "inbox":
		m.currentView = ViewMailbox
		return m.mailbox.SelectFolder(model.DefaultFolder)
	case "folder":
		if arg == "" {
			return nil
		}
		m.currentView = ViewMailbox
		return m.mailbox.SelectFolder(arg)
	case "search":
		if arg == "" {
			return nil
		}
		m.currentView = ViewMailbox
		return m.mailbox.Search(arg)
	case "clear":
		m.currentView = ViewMailbox
		m.mailbox.ClearSearch()
		return nil
	case "logout", "signout":
		return m.signOut()
	case "help":
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil
	default:
		return m.showNotice(fmt.Sprintf("Unknown command %q", verb), true)
	}
}
