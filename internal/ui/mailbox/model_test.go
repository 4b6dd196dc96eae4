package mailbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-client/internal/keys"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/persist"
	"github.com/nhle/mail-client/internal/prefs"
	"github.com/nhle/mail-client/internal/query"
	"github.com/nhle/mail-client/tests/testutil"
)

type fakeService struct {
	mu       sync.Mutex
	accounts []model.Account
	folders  []string
	emails   []model.Email
	found    []model.Email
	listErr  error

	listed  []model.EmailListParams
	synced  []string
	queries []string
}

func (f *fakeService) Accounts(context.Context) query.Result[[]model.Account] {
	return query.Result[[]model.Account]{Data: f.accounts, HasData: true, Status: query.StatusFresh}
}

func (f *fakeService) Folders(context.Context, int64) query.Result[[]string] {
	return query.Result[[]string]{Data: f.folders, HasData: true, Status: query.StatusFresh}
}

func (f *fakeService) Emails(_ context.Context, params model.EmailListParams) query.Result[[]model.Email] {
	f.mu.Lock()
	f.listed = append(f.listed, params)
	f.mu.Unlock()
	if f.listErr != nil {
		return query.Result[[]model.Email]{Err: f.listErr, Status: query.StatusError}
	}
	return query.Result[[]model.Email]{Data: f.emails, HasData: true, Status: query.StatusFresh}
}

func (f *fakeService) SyncEmails(_ context.Context, accountID int64, folder string) (model.StatusMessage, error) {
	f.mu.Lock()
	f.synced = append(f.synced, folder)
	f.mu.Unlock()
	return model.StatusMessage{Message: "ok"}, nil
}

func (f *fakeService) SearchEmails(_ context.Context, in model.EmailSearch) ([]model.Email, error) {
	f.mu.Lock()
	f.queries = append(f.queries, in.Query)
	f.mu.Unlock()
	return f.found, nil
}

func newPrefs(t *testing.T) *prefs.Store {
	t.Helper()
	p, err := prefs.Open(context.Background(), persist.NewMemoryStorage(), nil)
	require.NoError(t, err)
	return p
}

// settle feeds every data message cmd produces back into m until it is
// quiet.
func settle(m Model, cmd tea.Cmd) Model {
	queue := drainData(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		var next tea.Cmd
		m, next = m.Update(msg)
		queue = append(queue, drainData(next)...)
	}
	return m
}

// drainData drops spinner ticks so settle terminates.
func drainData(cmd tea.Cmd) []tea.Msg {
	var out []tea.Msg
	for _, msg := range testutil.Drain(cmd) {
		switch msg.(type) {
		case accountsLoadedMsg, foldersLoadedMsg, emailsLoadedMsg, searchResultMsg, syncDoneMsg, OpenEmailMsg:
			out = append(out, msg)
		}
	}
	return out
}

func newModel(t *testing.T, svc *fakeService) (Model, *prefs.Store) {
	t.Helper()
	p := newPrefs(t)
	m := New(svc, p, keys.DefaultKeyMap(), 2, 120, 40)
	return settle(m, m.loadAccounts()), p
}

func press(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPicksDefaultAccount(t *testing.T) {
	svc := &fakeService{accounts: []model.Account{
		{ID: 1, Name: "Personal"},
		{ID: 2, Name: "Work", IsDefault: true},
	}}
	m, p := newModel(t, svc)

	id, ok := p.SelectedAccount()
	require.True(t, ok)
	assert.Equal(t, int64(2), id)
	acc, ok := m.SelectedAccount()
	require.True(t, ok)
	assert.Equal(t, "Work", acc.Name)
	require.NotEmpty(t, svc.listed)
	assert.Equal(t, model.EmailListParams{AccountID: 2, Folder: "INBOX", Limit: 2}, svc.listed[0])
}

func TestKeepsRememberedAccount(t *testing.T) {
	svc := &fakeService{accounts: []model.Account{
		{ID: 1, Name: "Personal"},
		{ID: 2, Name: "Work", IsDefault: true},
	}}
	p := newPrefs(t)
	p.SetSelectedAccountID(model.Int64(1))

	m := New(svc, p, keys.DefaultKeyMap(), 50, 120, 40)
	m = settle(m, m.loadAccounts())

	id, _ := p.SelectedAccount()
	assert.Equal(t, int64(1), id)
	_, ok := m.SelectedAccount()
	assert.True(t, ok)
}

func TestNoAccountsEmptyState(t *testing.T) {
	m, p := newModel(t, &fakeService{})

	_, ok := p.SelectedAccount()
	assert.False(t, ok)
	assert.Contains(t, m.View(), "Press S to add an account")
}

func TestListErrorOffersRetry(t *testing.T) {
	svc := &fakeService{
		accounts: []model.Account{{ID: 1, Name: "Work"}},
		listErr:  errors.New("connection refused"),
	}
	m, _ := newModel(t, svc)

	assert.Contains(t, m.View(), "Press R to retry")

	svc.listErr = nil
	svc.emails = []model.Email{{ID: 9, SenderEmail: "ann@example.com", Subject: "Back online"}}
	m, cmd := m.Update(press("R"))
	m = settle(m, cmd)
	assert.Contains(t, m.View(), "Back online")
}

func TestIgnoresResultsForOtherParams(t *testing.T) {
	svc := &fakeService{accounts: []model.Account{{ID: 1, Name: "Work"}}}
	m, _ := newModel(t, svc)

	stale := emailsLoadedMsg{
		params: model.EmailListParams{AccountID: 1, Folder: "Sent", Limit: 2},
		result: query.Result[[]model.Email]{
			Data:    []model.Email{{ID: 5, Subject: "wrong folder"}},
			HasData: true,
		},
	}
	m, _ = m.Update(stale)
	assert.Empty(t, m.VisibleIDs())
}

func TestEnterOpensEmailWithSiblings(t *testing.T) {
	svc := &fakeService{
		accounts: []model.Account{{ID: 1, Name: "Work"}},
		emails: []model.Email{
			{ID: 10, SenderEmail: "a@example.com", Subject: "first"},
			{ID: 11, SenderEmail: "b@example.com", Subject: "second"},
		},
	}
	m, p := newModel(t, svc)

	_, cmd := m.Update(press("enter"))
	open, ok := testutil.Find[OpenEmailMsg](testutil.Drain(cmd))
	require.True(t, ok)
	assert.Equal(t, int64(10), open.ID)
	assert.Equal(t, []int64{10, 11}, open.Siblings)

	id, ok := p.SelectedEmail()
	require.True(t, ok)
	assert.Equal(t, int64(10), id)
}

func TestPaging(t *testing.T) {
	svc := &fakeService{
		accounts: []model.Account{{ID: 1, Name: "Work"}},
		emails:   []model.Email{{ID: 1}, {ID: 2}},
	}
	m, _ := newModel(t, svc)

	m, cmd := m.Update(press("]"))
	m = settle(m, cmd)
	last := svc.listed[len(svc.listed)-1]
	assert.Equal(t, 2, last.Offset)

	// A short page has no next page.
	svc.emails = []model.Email{{ID: 3}}
	cmd = m.loadEmails()
	m = settle(m, cmd)
	before := len(svc.listed)
	m, cmd = m.Update(press("]"))
	assert.Nil(t, cmd)
	assert.Len(t, svc.listed, before)

	m, cmd = m.Update(press("["))
	m = settle(m, cmd)
	assert.Equal(t, 0, svc.listed[len(svc.listed)-1].Offset)
}

func TestSelectFolderResetsPaging(t *testing.T) {
	svc := &fakeService{
		accounts: []model.Account{{ID: 1, Name: "Work"}},
		folders:  []string{"INBOX", "Sent", "ARCHIVE"},
		emails:   []model.Email{{ID: 1}, {ID: 2}},
	}
	m, p := newModel(t, svc)
	m, cmd := m.Update(press("]"))
	m = settle(m, cmd)

	cmd = m.SelectFolder("Sent")
	m = settle(m, cmd)
	assert.Equal(t, "Sent", p.ActiveFolder())
	last := svc.listed[len(svc.listed)-1]
	assert.Equal(t, model.EmailListParams{AccountID: 1, Folder: "Sent", Limit: 2}, last)
}

func TestSearchAndClear(t *testing.T) {
	svc := &fakeService{
		accounts: []model.Account{{ID: 1, Name: "Work"}},
		emails:   []model.Email{{ID: 1, Subject: "hello"}},
	}
	m, p := newModel(t, svc)

	cmd := m.Search("invoice")
	m = settle(m, cmd)
	assert.Equal(t, "invoice", p.SearchQuery())
	assert.Equal(t, []string{"invoice"}, svc.queries)
	assert.Contains(t, m.View(), `No messages match "invoice"`)

	svc.found = []model.Email{{ID: 7, Subject: "Invoice 42"}}
	cmd = m.Search("invoice 42")
	m = settle(m, cmd)
	assert.Equal(t, []int64{7}, m.VisibleIDs())

	m, _ = m.Update(press("esc"))
	assert.Equal(t, "", p.SearchQuery())
	assert.Equal(t, []int64{1}, m.VisibleIDs())
}

func TestSearchKeyboardFlow(t *testing.T) {
	svc := &fakeService{accounts: []model.Account{{ID: 1, Name: "Work"}}}
	m, p := newModel(t, svc)

	m, _ = m.Update(press("/"))
	require.True(t, m.Inputting())
	for _, r := range "report" {
		m, _ = m.Update(press(string(r)))
	}
	m, cmd := m.Update(press("enter"))
	m = settle(m, cmd)

	assert.False(t, m.Inputting())
	assert.Equal(t, "report", p.SearchQuery())
	assert.Equal(t, []string{"report"}, svc.queries)
}

func TestSyncUsesActiveFolder(t *testing.T) {
	svc := &fakeService{accounts: []model.Account{{ID: 1, Name: "Work"}}}
	m, p := newModel(t, svc)
	p.SetActiveFolder("Sent")

	m, cmd := m.Update(press("r"))
	assert.True(t, m.Syncing())
	m = settle(m, cmd)

	assert.False(t, m.Syncing())
	assert.Equal(t, []string{"Sent"}, svc.synced)
}

func TestNextAccountCycles(t *testing.T) {
	svc := &fakeService{accounts: []model.Account{
		{ID: 1, Name: "Personal", IsDefault: true},
		{ID: 2, Name: "Work"},
	}}
	m, p := newModel(t, svc)
	p.SetActiveFolder("Sent")

	cmd := m.NextAccount()
	m = settle(m, cmd)
	id, _ := p.SelectedAccount()
	assert.Equal(t, int64(2), id)
	assert.Equal(t, "INBOX", p.ActiveFolder())

	cmd = m.NextAccount()
	m = settle(m, cmd)
	id, _ = p.SelectedAccount()
	assert.Equal(t, int64(1), id)
	assert.True(t, strings.Contains(m.View(), "Personal"))
}
