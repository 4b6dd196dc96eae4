package viewer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-client/internal/keys"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/query"
	"github.com/nhle/mail-client/tests/testutil"
)

type fakeService struct {
	emails  map[int64]model.Email
	updates []model.EmailUpdate
	deleted []int64
}

func newFake(emails ...model.Email) *fakeService {
	f := &fakeService{emails: make(map[int64]model.Email)}
	for _, e := range emails {
		f.emails[e.ID] = e
	}
	return f
}

func (f *fakeService) Email(_ context.Context, id int64) query.Result[model.Email] {
	e, ok := f.emails[id]
	if !ok {
		return query.Result[model.Email]{Status: query.StatusError, Err: os.ErrNotExist}
	}
	return query.Result[model.Email]{Data: e, HasData: true, Status: query.StatusFresh}
}

func (f *fakeService) UpdateEmail(_ context.Context, id int64, in model.EmailUpdate) (model.Email, error) {
	f.updates = append(f.updates, in)
	e := f.emails[id]
	if in.IsRead != nil {
		e.IsRead = *in.IsRead
	}
	if in.IsStarred != nil {
		e.IsStarred = *in.IsStarred
	}
	if in.Folder != nil {
		e.Folder = *in.Folder
	}
	f.emails[id] = e
	return e, nil
}

func (f *fakeService) DeleteEmail(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	delete(f.emails, id)
	return nil
}

func settle(m Model, cmd tea.Cmd) (Model, []tea.Msg) {
	var external []tea.Msg
	queue := testutil.Drain(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		switch msg.(type) {
		case BackMsg, ExportedMsg:
			external = append(external, msg)
			continue
		}
		var next tea.Cmd
		m, next = m.Update(msg)
		queue = append(queue, testutil.Drain(next)...)
	}
	return m, external
}

func press(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func open(t *testing.T, svc *fakeService, id int64, siblings ...int64) Model {
	t.Helper()
	m := New(svc, keys.DefaultKeyMap(), t.TempDir(), 100, 30)
	cmd := m.Open(id, siblings)
	m, _ = settle(m, cmd)
	return m
}

func inbox(id int64, subject string) model.Email {
	return model.Email{
		ID:          id,
		SenderEmail: "ann@example.com",
		SenderName:  "Ann",
		Subject:     subject,
		BodyText:    "Body of " + subject,
		Folder:      "INBOX",
	}
}

func TestOpenMarksRead(t *testing.T) {
	svc := newFake(inbox(1, "Hello"))
	m := open(t, svc, 1)

	require.Len(t, svc.updates, 1)
	require.NotNil(t, svc.updates[0].IsRead)
	assert.True(t, *svc.updates[0].IsRead)
	assert.Contains(t, m.View(), "Body of Hello")
	assert.Contains(t, m.View(), "Ann <ann@example.com>")
}

func TestOpenReadEmailDoesNotUpdate(t *testing.T) {
	e := inbox(1, "Hello")
	e.IsRead = true
	svc := newFake(e)
	open(t, svc, 1)

	assert.Empty(t, svc.updates)
}

func TestStarAndToggleRead(t *testing.T) {
	svc := newFake(inbox(1, "Hello"))
	m := open(t, svc, 1)

	m, cmd := m.Update(press("s"))
	m, _ = settle(m, cmd)
	assert.True(t, svc.emails[1].IsStarred)

	m, cmd = m.Update(press("u"))
	m, _ = settle(m, cmd)
	assert.False(t, svc.emails[1].IsRead)
	assert.Contains(t, m.View(), "unread")
}

func TestArchiveLeavesViewer(t *testing.T) {
	svc := newFake(inbox(1, "Hello"))
	m := open(t, svc, 1)

	m, cmd := m.Update(press("a"))
	_, out := settle(m, cmd)

	assert.Equal(t, "ARCHIVE", svc.emails[1].Folder)
	_, ok := testutil.Find[BackMsg](out)
	assert.True(t, ok)
}

func TestDeleteMovesToNextSibling(t *testing.T) {
	svc := newFake(inbox(1, "First"), inbox(2, "Second"))
	m := open(t, svc, 1, 1, 2)

	m, cmd := m.Update(press("d"))
	m, out := settle(m, cmd)

	assert.Equal(t, []int64{1}, svc.deleted)
	assert.Empty(t, out)
	assert.Equal(t, int64(2), m.ID())
	assert.Contains(t, m.View(), "Body of Second")
}

func TestDeleteLastGoesBack(t *testing.T) {
	svc := newFake(inbox(1, "Only"))
	m := open(t, svc, 1, 1)

	m, cmd := m.Update(press("d"))
	_, out := settle(m, cmd)

	_, ok := testutil.Find[BackMsg](out)
	assert.True(t, ok)
}

func TestNextPrevious(t *testing.T) {
	svc := newFake(inbox(1, "First"), inbox(2, "Second"), inbox(3, "Third"))
	m := open(t, svc, 2, 1, 2, 3)

	m, cmd := m.Update(press("n"))
	m, _ = settle(m, cmd)
	assert.Equal(t, int64(3), m.ID())

	m, cmd = m.Update(press("n"))
	assert.Nil(t, cmd)
	assert.Equal(t, int64(3), m.ID())

	m, cmd = m.Update(press("p"))
	m, _ = settle(m, cmd)
	assert.Equal(t, int64(2), m.ID())
}

func TestEmptyBody(t *testing.T) {
	e := inbox(1, "Blank")
	e.BodyText = ""
	e.IsRead = true
	m := open(t, newFake(e), 1)

	assert.Contains(t, m.View(), "This email has no content.")
}

func TestLoadErrorOffersRetry(t *testing.T) {
	m := open(t, newFake(), 99)

	assert.Contains(t, m.View(), "Press R to retry")
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	e := inbox(5, "Quarterly report")

	path, err := Export(dir, e)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Quarterly-report-5.eml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "Subject: Quarterly report"))
	assert.Contains(t, string(data), "Body of Quarterly report")
}

func TestEscGoesBack(t *testing.T) {
	m := open(t, newFake(inbox(1, "Hello")), 1)

	_, cmd := m.Update(press("esc"))
	_, out := settle(m, cmd)
	_, ok := testutil.Find[BackMsg](out)
	assert.True(t, ok)
}
