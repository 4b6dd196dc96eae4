// Package mailbox is the dashboard: folder sidebar, account switcher and
// the message list of the active folder or search.
package mailbox

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-client/internal/api"
	"github.com/nhle/mail-client/internal/folder"
	"github.com/nhle/mail-client/internal/keys"
	"github.com/nhle/mail-client/internal/mail"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/prefs"
	"github.com/nhle/mail-client/internal/query"
	"github.com/nhle/mail-client/internal/theme"
	"github.com/nhle/mail-client/internal/ui"
)

// Service is the data access the dashboard needs.
type Service interface {
	Accounts(ctx context.Context) query.Result[[]model.Account]
	Folders(ctx context.Context, accountID int64) query.Result[[]string]
	Emails(ctx context.Context, params model.EmailListParams) query.Result[[]model.Email]
	SyncEmails(ctx context.Context, accountID int64, folder string) (model.StatusMessage, error)
	SearchEmails(ctx context.Context, in model.EmailSearch) ([]model.Email, error)
}

// OpenEmailMsg asks the root model to show an email. Siblings are the ids
// of the visible list, in order, for next/previous navigation.
type OpenEmailMsg struct {
	ID       int64
	Siblings []int64
}

type accountsLoadedMsg struct {
	result query.Result[[]model.Account]
}

type foldersLoadedMsg struct {
	accountID int64
	result    query.Result[[]string]
}

type emailsLoadedMsg struct {
	params model.EmailListParams
	result query.Result[[]model.Email]
}

type searchResultMsg struct {
	query  string
	emails []model.Email
	err    error
}

type syncDoneMsg struct {
	err error
}

type loadState int

const (
	stateLoading loadState = iota
	stateReady
	stateError
)

type focus int

const (
	focusList focus = iota
	focusSidebar
)

// Model is the dashboard view.
type Model struct {
	svc      Service
	prefs    *prefs.Store
	keys     *keys.KeyMap
	now      func() time.Time
	pageSize int

	accounts    []model.Account
	accountsSt  loadState
	accountsErr error

	folders      []folder.Folder
	folderCursor int

	emails    []model.Email
	emailsSt  loadState
	emailsErr error
	offset    int

	searchMode  bool
	searchInput textinput.Model
	results     []model.Email
	searchSt    loadState
	searchErr   error

	focus   focus
	list    list.Model
	spinner spinner.Model
	syncing bool
	width   int
	height  int
}

// New creates the dashboard. pageSize is the email list page length.
func New(svc Service, p *prefs.Store, k *keys.KeyMap, pageSize, width, height int) Model {
	if pageSize <= 0 {
		pageSize = 50
	}

	delegate := emailDelegate{now: time.Now}
	l := list.New([]list.Item{}, delegate, width, height)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	si := textinput.New()
	si.Placeholder = "search subject, body, or sender..."
	si.Prompt = "/ "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		svc:         svc,
		prefs:       p,
		keys:        k,
		now:         time.Now,
		pageSize:    pageSize,
		searchInput: si,
		list:        l,
		spinner:     sp,
		folders:     folder.List(nil),
	}
	m.SetSize(width, height)
	return m
}

// Init loads accounts, which in turn loads folders and emails.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.loadAccounts()}
	if q := m.prefs.SearchQuery(); q != "" {
		cmds = append(cmds, m.search(q))
	}
	return tea.Batch(cmds...)
}

// Reload re-reads everything the dashboard shows through the cache.
func (m Model) Reload() tea.Cmd {
	return tea.Batch(m.loadAccounts(), m.loadFolders(), m.loadEmails())
}

// HandleCacheUpdate re-reads what a changed cache key affects.
func (m Model) HandleCacheUpdate(k query.Key) tea.Cmd {
	switch {
	case k.Entity == mail.EntityAccount && k.Kind == mail.KindList:
		return m.loadAccounts()
	case k.Entity == mail.EntityFolder:
		return m.loadFolders()
	case k.Entity == mail.EntityEmail && k.Kind == mail.KindList:
		return m.loadEmails()
	}
	return nil
}

// Update handles messages for the dashboard.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case accountsLoadedMsg:
		return m.handleAccounts(msg.result)

	case foldersLoadedMsg:
		if msg.accountID != m.accountID() {
			return m, nil
		}
		var names []string
		if msg.result.HasData {
			names = msg.result.Data
		}
		m.folders = folder.List(names)
		m.syncFolderCursor()
		return m, nil

	case emailsLoadedMsg:
		if msg.params != m.params() {
			return m, nil
		}
		res := msg.result
		m.emailsErr = res.Err
		switch {
		case res.HasData:
			m.emails = res.Data
			m.emailsSt = stateReady
		case res.Err != nil:
			m.emails = nil
			m.emailsSt = stateError
		}
		m.refreshItems()
		return m, nil

	case searchResultMsg:
		if msg.query != m.prefs.SearchQuery() {
			return m, nil
		}
		m.results = msg.emails
		m.searchErr = msg.err
		m.searchSt = stateReady
		if msg.err != nil {
			m.searchSt = stateError
		}
		m.refreshItems()
		return m, nil

	case syncDoneMsg:
		m.syncing = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		if m.focus == focusSidebar {
			return m.handleSidebarKeys(msg)
		}
		return m.handleListKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleAccounts(res query.Result[[]model.Account]) (Model, tea.Cmd) {
	m.accountsErr = res.Err
	if !res.HasData {
		if res.Err != nil {
			m.accountsSt = stateError
		}
		return m, nil
	}
	m.accounts = res.Data
	m.accountsSt = stateReady

	before := m.accountID()
	m.pickAccount()
	if m.accountID() != before {
		m.offset = 0
		m.emails = nil
		m.emailsSt = stateLoading
		m.refreshItems()
	}
	return m, tea.Batch(m.loadFolders(), m.loadEmails())
}

// pickAccount keeps the remembered account when it still exists and falls
// back to the default account, then the first.
func (m *Model) pickAccount() {
	if len(m.accounts) == 0 {
		if _, ok := m.prefs.SelectedAccount(); ok {
			m.prefs.SetSelectedAccountID(nil)
		}
		return
	}
	if id, ok := m.prefs.SelectedAccount(); ok {
		if slices.ContainsFunc(m.accounts, func(a model.Account) bool { return a.ID == id }) {
			return
		}
	}
	chosen := m.accounts[0].ID
	for _, a := range m.accounts {
		if a.IsDefault {
			chosen = a.ID
			break
		}
	}
	m.prefs.SetSelectedAccountID(&chosen)
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		q := strings.TrimSpace(m.searchInput.Value())
		if q == "" {
			m.ClearSearch()
			return m, nil
		}
		return m, m.Search(q)

	case "esc":
		m.searchMode = false
		m.searchInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if len(m.folders) > 0 {
			m.folderCursor = (m.folderCursor + 1) % len(m.folders)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.folders) > 0 {
			m.folderCursor = (m.folderCursor - 1 + len(m.folders)) % len(m.folders)
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.folderCursor < len(m.folders) {
			m.focus = focusList
			return m, m.SelectFolder(m.folders[m.folderCursor].Name)
		}
		return m, nil

	case key.Matches(msg, m.keys.Focus), key.Matches(msg, m.keys.Back):
		m.focus = focusList
		return m, nil
	}
	return m.handleCommonKeys(msg)
}

func (m Model) handleListKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		it, ok := m.list.SelectedItem().(emailItem)
		if !ok {
			return m, nil
		}
		id := it.email.ID
		m.prefs.SetSelectedEmailID(&id)
		siblings := m.VisibleIDs()
		return m, func() tea.Msg { return OpenEmailMsg{ID: id, Siblings: siblings} }

	case key.Matches(msg, m.keys.Focus):
		m.focus = focusSidebar
		m.syncFolderCursor()
		return m, nil

	case key.Matches(msg, m.keys.Back):
		if m.prefs.SearchQuery() != "" {
			m.ClearSearch()
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		if m.prefs.SearchQuery() == "" && len(m.emails) >= m.pageSize {
			m.offset += m.pageSize
			m.emailsSt = stateLoading
			return m, m.loadEmails()
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		if m.prefs.SearchQuery() == "" && m.offset > 0 {
			m.offset = max(m.offset-m.pageSize, 0)
			m.emailsSt = stateLoading
			return m, m.loadEmails()
		}
		return m, nil
	}

	if mm, cmd, handled := m.commonKey(msg); handled {
		return mm, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleCommonKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	mm, cmd, _ := m.commonKey(msg)
	return mm, cmd
}

// commonKey handles keys shared by both panes.
func (m Model) commonKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.SetValue(m.prefs.SearchQuery())
		m.searchInput.CursorEnd()
		return m, m.searchInput.Focus(), true

	case key.Matches(msg, m.keys.Sync):
		return m, m.Sync(), true

	case key.Matches(msg, m.keys.Retry):
		cmds := []tea.Cmd{m.Reload()}
		if q := m.prefs.SearchQuery(); q != "" {
			cmds = append(cmds, m.search(q))
		}
		return m, tea.Batch(cmds...), true

	case key.Matches(msg, m.keys.NextAccount):
		return m, m.NextAccount(), true
	}
	return m, nil, false
}

// SelectFolder makes name the active folder and loads its first page.
func (m *Model) SelectFolder(name string) tea.Cmd {
	m.prefs.SetActiveFolder(name)
	m.ClearSearch()
	m.offset = 0
	m.emails = nil
	m.emailsSt = stateLoading
	m.syncFolderCursor()
	m.refreshItems()
	return m.loadEmails()
}

// NextAccount switches to the next account in the list.
func (m *Model) NextAccount() tea.Cmd {
	if len(m.accounts) < 2 {
		return nil
	}
	idx := slices.IndexFunc(m.accounts, func(a model.Account) bool { return a.ID == m.accountID() })
	next := m.accounts[(idx+1)%len(m.accounts)].ID
	m.prefs.SetSelectedAccountID(&next)
	m.prefs.SetActiveFolder(model.DefaultFolder)
	m.ClearSearch()
	m.offset = 0
	m.emails = nil
	m.emailsSt = stateLoading
	m.folders = folder.List(nil)
	m.syncFolderCursor()
	m.refreshItems()
	return tea.Batch(m.loadFolders(), m.loadEmails())
}

// Search runs a server-side search and shows its results in the list.
func (m *Model) Search(q string) tea.Cmd {
	m.prefs.SetSearchQuery(q)
	m.results = nil
	m.searchErr = nil
	m.searchSt = stateLoading
	m.refreshItems()
	return m.search(q)
}

// ClearSearch returns the list to the active folder.
func (m *Model) ClearSearch() {
	m.prefs.SetSearchQuery("")
	m.searchInput.Reset()
	m.results = nil
	m.searchErr = nil
	m.refreshItems()
}

// Sync pulls new mail for the active folder of the selected account.
func (m *Model) Sync() tea.Cmd {
	id := m.accountID()
	if id == 0 || m.syncing {
		return nil
	}
	m.syncing = true
	svc := m.svc
	folderName := m.prefs.ActiveFolder()
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		_, err := svc.SyncEmails(context.Background(), id, folderName)
		return syncDoneMsg{err: err}
	})
}

// Accounts returns the loaded accounts.
func (m Model) Accounts() []model.Account {
	return m.accounts
}

// SelectedAccount returns the account the dashboard shows.
func (m Model) SelectedAccount() (model.Account, bool) {
	id := m.accountID()
	for _, a := range m.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return model.Account{}, false
}

// VisibleIDs returns the ids of the listed emails in display order.
func (m Model) VisibleIDs() []int64 {
	visible := m.visible()
	ids := make([]int64, len(visible))
	for i, e := range visible {
		ids[i] = e.ID
	}
	return ids
}

// Syncing reports whether a manual sync is running.
func (m Model) Syncing() bool {
	return m.syncing
}

// Inputting reports whether the search box has focus, so the root model
// leaves printable keys alone.
func (m Model) Inputting() bool {
	return m.searchMode
}

func (m Model) accountID() int64 {
	id, _ := m.prefs.SelectedAccount()
	return id
}

func (m Model) params() model.EmailListParams {
	return model.EmailListParams{
		AccountID: m.accountID(),
		Folder:    m.prefs.ActiveFolder(),
		Limit:     m.pageSize,
		Offset:    m.offset,
	}
}

func (m Model) visible() []model.Email {
	if m.prefs.SearchQuery() != "" {
		return m.results
	}
	return m.emails
}

func (m *Model) refreshItems() {
	visible := m.visible()
	items := make([]list.Item, len(visible))
	for i, e := range visible {
		items[i] = emailItem{email: e}
	}
	m.list.SetItems(items)
}

func (m *Model) syncFolderCursor() {
	active := m.prefs.ActiveFolder()
	for i, f := range m.folders {
		if f.Name == active {
			m.folderCursor = i
			return
		}
	}
}

func (m Model) loadAccounts() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		return accountsLoadedMsg{result: svc.Accounts(context.Background())}
	}
}

func (m Model) loadFolders() tea.Cmd {
	id := m.accountID()
	if id == 0 {
		return nil
	}
	svc := m.svc
	return func() tea.Msg {
		return foldersLoadedMsg{accountID: id, result: svc.Folders(context.Background(), id)}
	}
}

func (m Model) loadEmails() tea.Cmd {
	params := m.params()
	if params.AccountID == 0 {
		return nil
	}
	svc := m.svc
	return func() tea.Msg {
		return emailsLoadedMsg{params: params, result: svc.Emails(context.Background(), params)}
	}
}

func (m Model) search(q string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		emails, err := svc.SearchEmails(context.Background(), model.EmailSearch{Query: q})
		return searchResultMsg{query: q, emails: emails, err: err}
	}
}

// View renders the dashboard.
func (m Model) View() string {
	sideWidth, mainWidth := ui.NewLayout(m.width, m.height).Columns()

	sidebar := m.viewSidebar(sideWidth)
	main := m.viewMain(mainWidth)
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
}

func (m Model) viewSidebar(width int) string {
	var b strings.Builder

	if acc, ok := m.SelectedAccount(); ok {
		b.WriteString(theme.UnreadStyle.Render(ui.Truncate(acc.Label(), width-4)))
		b.WriteString("\n")
		b.WriteString(theme.MutedStyle.Render(ui.Truncate(acc.EmailAddress, width-4)))
		if len(m.accounts) > 1 {
			b.WriteString("\n")
			b.WriteString(theme.HintStyle.Render(fmt.Sprintf("A switch (%d)", len(m.accounts))))
		}
	} else {
		b.WriteString(theme.MutedStyle.Render("No account"))
	}
	b.WriteString("\n\n")

	active := m.prefs.ActiveFolder()
	for i, f := range m.folders {
		label := ui.Truncate(f.Label(), width-6)
		if f.Name == active {
			label = "▸ " + label
		} else {
			label = "  " + label
		}
		if m.focus == focusSidebar && i == m.folderCursor {
			b.WriteString(theme.SelectedItemStyle.Render(label))
		} else {
			b.WriteString(theme.ListItemStyle.Render(label))
		}
		b.WriteString("\n")
	}

	style := theme.PanelStyle
	if m.focus == focusSidebar {
		style = theme.FocusedPanelStyle
	}
	return style.
		Width(max(width-2, 0)).
		Height(max(m.height-2, 0)).
		Render(b.String())
}

func (m Model) viewMain(width int) string {
	inner := max(width-2, 0)
	height := max(m.height-2, 0)

	title := m.listTitle()
	body := m.viewList(inner, height-2)

	parts := []string{theme.HeaderStyle.Render(title)}
	if m.searchMode {
		parts = append(parts, m.searchInput.View())
	} else {
		parts = append(parts, "")
	}
	parts = append(parts, body)

	style := theme.PanelStyle
	if m.focus == focusList {
		style = theme.FocusedPanelStyle
	}
	return style.
		Width(inner).
		Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) listTitle() string {
	if q := m.prefs.SearchQuery(); q != "" {
		return fmt.Sprintf("Search: %q (%d)", q, len(m.results))
	}
	title := folder.Classify(m.prefs.ActiveFolder()).Label()
	if m.offset > 0 || len(m.emails) >= m.pageSize {
		title += fmt.Sprintf(" · %d-%d", m.offset+1, m.offset+len(m.emails))
	}
	if m.syncing {
		title += " · syncing " + m.spinner.View()
	}
	return title
}

func (m Model) viewList(width, height int) string {
	empty := theme.EmptyStateStyle(width, height)

	switch {
	case len(m.accounts) == 0 && m.accountsSt == stateLoading:
		return empty.Render(m.spinner.View() + " Loading accounts...")
	case len(m.accounts) == 0 && m.accountsSt == stateError:
		return empty.Render(errorText("Could not load accounts.", m.accountsErr) + "\n\nPress R to retry.")
	case len(m.accounts) == 0:
		return empty.Render("No email accounts yet.\n\nPress S to add an account.")
	}

	if q := m.prefs.SearchQuery(); q != "" {
		switch {
		case m.searchSt == stateLoading:
			return empty.Render(m.spinner.View() + " Searching...")
		case m.searchSt == stateError:
			return empty.Render(errorText("Search failed.", m.searchErr) + "\n\nPress R to retry, esc to clear.")
		case len(m.results) == 0:
			return empty.Render(fmt.Sprintf("No messages match %q.\n\nPress esc to clear the search.", q))
		}
		return m.list.View()
	}

	switch {
	case len(m.emails) == 0 && m.emailsSt == stateLoading:
		return empty.Render(m.spinner.View() + " Loading messages...")
	case len(m.emails) == 0 && m.emailsSt == stateError:
		return empty.Render(errorText("Could not load messages.", m.emailsErr) + "\n\nPress R to retry.")
	case len(m.emails) == 0 && m.offset > 0:
		return empty.Render("No more messages.\n\nPress [ for the previous page.")
	case len(m.emails) == 0:
		name := folder.Classify(m.prefs.ActiveFolder()).Label()
		return empty.Render(fmt.Sprintf("No messages in %s.\n\nPress r to sync.", name))
	}
	return m.list.View()
}

func errorText(prefix string, err error) string {
	if detail := api.Detail(err); detail != "" {
		return prefix + "\n" + detail
	}
	return prefix
}

// SetSize updates the dashboard dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	_, mainWidth := ui.NewLayout(width, height).Columns()
	m.list.SetSize(max(mainWidth-4, 0), max(height-4, 0))
	m.searchInput.Width = max(mainWidth-8, 0)
}
