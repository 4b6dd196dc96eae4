package mail

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-client/internal/api"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/query"
)

// fakeBackend records calls and returns canned results.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	accounts   []model.Account
	emails     []model.Email
	email      model.Email
	updateFn   func(id int64, in model.EmailUpdate) (model.Email, error)
	testResult model.ConnectionTest
	syncResult model.StatusMessage
	err        error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: make(map[string]int)}
}

func (f *fakeBackend) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.err
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) Login(context.Context, model.Credentials) (model.User, string, error) {
	if err := f.record("Login"); err != nil {
		return model.User{}, "", err
	}
	return model.User{ID: 1, Username: "alice"}, "T", nil
}

func (f *fakeBackend) Register(_ context.Context, reg model.Registration) (model.User, error) {
	return model.User{Username: reg.Username}, f.record("Register")
}

func (f *fakeBackend) Logout(context.Context) error { return f.record("Logout") }

func (f *fakeBackend) ListAccounts(context.Context) ([]model.Account, error) {
	return f.accounts, f.record("ListAccounts")
}

func (f *fakeBackend) CreateAccount(_ context.Context, in model.AccountCreate) (model.Account, error) {
	return model.Account{ID: 2, Name: in.Name}, f.record("CreateAccount")
}

func (f *fakeBackend) UpdateAccount(_ context.Context, id int64, in model.AccountUpdate) (model.Account, error) {
	a := model.Account{ID: id}
	if in.Name != nil {
		a.Name = *in.Name
	}
	return a, f.record("UpdateAccount")
}

func (f *fakeBackend) DeleteAccount(context.Context, int64) error { return f.record("DeleteAccount") }

func (f *fakeBackend) TestAccount(context.Context, int64) (model.ConnectionTest, error) {
	return f.testResult, f.record("TestAccount")
}

func (f *fakeBackend) UploadAvatar(context.Context, int64, string, io.Reader) (model.AvatarUpload, error) {
	return model.AvatarUpload{AvatarURL: "/uploads/a.png"}, f.record("UploadAvatar")
}

func (f *fakeBackend) ListFolders(context.Context, int64) ([]string, error) {
	return []string{"INBOX", "Sent"}, f.record("ListFolders")
}

func (f *fakeBackend) ListEmails(context.Context, model.EmailListParams) ([]model.Email, error) {
	return f.emails, f.record("ListEmails")
}

func (f *fakeBackend) GetEmail(context.Context, int64) (model.Email, error) {
	return f.email, f.record("GetEmail")
}

func (f *fakeBackend) UpdateEmail(_ context.Context, id int64, in model.EmailUpdate) (model.Email, error) {
	if err := f.record("UpdateEmail"); err != nil {
		return model.Email{}, err
	}
	if f.updateFn != nil {
		return f.updateFn(id, in)
	}
	e := f.email
	if in.IsStarred != nil {
		e.IsStarred = *in.IsStarred
	}
	return e, nil
}

func (f *fakeBackend) DeleteEmail(context.Context, int64) error { return f.record("DeleteEmail") }

func (f *fakeBackend) ComposeEmail(context.Context, model.EmailCompose) error {
	return f.record("ComposeEmail")
}

func (f *fakeBackend) SyncEmails(context.Context, int64, string) (model.StatusMessage, error) {
	return f.syncResult, f.record("SyncEmails")
}

func (f *fakeBackend) SearchEmails(context.Context, model.EmailSearch) ([]model.Email, error) {
	return f.emails, f.record("SearchEmails")
}

type fakeSession struct {
	user   *model.User
	token  string
	logout int
}

func (s *fakeSession) Login(user model.User, token string) {
	s.user, s.token = &user, token
}

func (s *fakeSession) Logout() {
	s.user, s.token = nil, ""
	s.logout++
}

func newService(b *fakeBackend) (*Service, *fakeSession) {
	sess := &fakeSession{}
	return NewService(b, query.New(), sess, NewNotifier(8), nil), sess
}

func nextNotice(t *testing.T, s *Service) Notice {
	t.Helper()
	select {
	case n := <-s.Notices().C():
		return n
	default:
		t.Fatal("no notice posted")
		return Notice{}
	}
}

func assertNoNotice(t *testing.T, s *Service) {
	t.Helper()
	select {
	case n := <-s.Notices().C():
		t.Fatalf("unexpected notice %q", n.Message)
	default:
	}
}

func TestEmails_DisabledWithoutAccount(t *testing.T) {
	b := newFakeBackend()
	s, _ := newService(b)

	res := s.Emails(context.Background(), model.EmailListParams{Folder: "INBOX", Limit: 50})

	assert.Equal(t, query.StatusIdle, res.Status)
	assert.Zero(t, b.count("ListEmails"))
}

func TestEmail_DisabledForZeroID(t *testing.T) {
	b := newFakeBackend()
	s, _ := newService(b)

	s.Email(context.Background(), 0)
	assert.Zero(t, b.count("GetEmail"))
}

func TestFolders_CachedPerAccount(t *testing.T) {
	b := newFakeBackend()
	s, _ := newService(b)

	res := s.Folders(context.Background(), 1)
	s.Folders(context.Background(), 1)
	s.Folders(context.Background(), 2)

	assert.Equal(t, []string{"INBOX", "Sent"}, res.Data)
	assert.Equal(t, 2, b.count("ListFolders"))
}

func TestCreateAccount_InvalidatesList(t *testing.T) {
	b := newFakeBackend()
	b.accounts = []model.Account{{ID: 1}}
	s, _ := newService(b)
	ctx := context.Background()

	s.Accounts(ctx)
	s.Accounts(ctx)
	require.Equal(t, 1, b.count("ListAccounts"))

	_, err := s.CreateAccount(ctx, model.AccountCreate{Name: "Work"})
	require.NoError(t, err)

	n := nextNotice(t, s)
	assert.Equal(t, LevelSuccess, n.Level)
	assert.Equal(t, "Email account created successfully!", n.Message)

	s.Accounts(ctx)
	assert.Equal(t, 2, b.count("ListAccounts"))
}

func TestUpdateAccount_SeedsDetail(t *testing.T) {
	b := newFakeBackend()
	s, _ := newService(b)

	_, err := s.UpdateAccount(context.Background(), 3, model.AccountUpdate{Name: model.String("Home")})
	require.NoError(t, err)

	res := query.Peek[model.Account](s.Cache(), AccountKey(3))
	require.True(t, res.HasData)
	assert.Equal(t, "Home", res.Data.Name)
	assert.Equal(t, "Account updated successfully!", nextNotice(t, s).Message)
}

func TestUpdateEmail_SeedsDetailAndInvalidatesLists(t *testing.T) {
	b := newFakeBackend()
	b.email = model.Email{ID: 5, AccountID: 1, Folder: "INBOX"}
	s, _ := newService(b)
	ctx := context.Background()
	params := model.EmailListParams{AccountID: 1, Folder: "INBOX", Limit: 50}

	s.Emails(ctx, params)
	_, err := s.UpdateEmail(ctx, 5, model.EmailUpdate{IsStarred: model.Bool(true)})
	require.NoError(t, err)
	assertNoNotice(t, s)

	detail := s.Email(ctx, 5)
	assert.True(t, detail.Data.IsStarred)
	assert.Zero(t, b.count("GetEmail"))

	s.Emails(ctx, params)
	assert.Equal(t, 2, b.count("ListEmails"))
}

func TestUpdateEmail_LateResponseDoesNotOverwrite(t *testing.T) {
	b := newFakeBackend()
	firstIn := make(chan struct{})
	releaseFirst := make(chan struct{})
	b.updateFn = func(id int64, in model.EmailUpdate) (model.Email, error) {
		if *in.IsStarred {
			close(firstIn)
			<-releaseFirst
		}
		return model.Email{ID: id, IsStarred: *in.IsStarred}, nil
	}
	s, _ := newService(b)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.UpdateEmail(ctx, 5, model.EmailUpdate{IsStarred: model.Bool(true)})
	}()
	<-firstIn

	_, err := s.UpdateEmail(ctx, 5, model.EmailUpdate{IsStarred: model.Bool(false)})
	require.NoError(t, err)
	close(releaseFirst)
	<-done

	res := query.Peek[model.Email](s.Cache(), EmailKey(5))
	require.True(t, res.HasData)
	assert.False(t, res.Data.IsStarred)
}

func TestUpdateEmail_SupersededSuccessInvalidatesDetail(t *testing.T) {
	b := newFakeBackend()
	starIn := make(chan struct{})
	releaseStar := make(chan struct{})
	b.updateFn = func(id int64, in model.EmailUpdate) (model.Email, error) {
		if in.IsStarred != nil {
			close(starIn)
			<-releaseStar
			return model.Email{ID: id, IsStarred: true}, nil
		}
		return model.Email{}, &api.Error{Status: http.StatusInternalServerError}
	}
	s, _ := newService(b)
	ctx := context.Background()
	query.SetData(s.Cache(), EmailKey(5), model.Email{ID: 5})

	done := make(chan error)
	go func() {
		_, err := s.UpdateEmail(ctx, 5, model.EmailUpdate{IsStarred: model.Bool(true)})
		done <- err
	}()
	<-starIn

	_, err := s.UpdateEmail(ctx, 5, model.EmailUpdate{IsRead: model.Bool(true)})
	require.Error(t, err)
	close(releaseStar)
	require.NoError(t, <-done)

	b.email = model.Email{ID: 5, IsStarred: true}
	detail := s.Email(ctx, 5)
	assert.True(t, detail.Data.IsStarred)
	assert.Equal(t, query.StatusFresh, detail.Status)
	assert.Equal(t, 1, b.count("GetEmail"))
}

func TestUpdateAccount_FailureInvalidatesDetail(t *testing.T) {
	b := newFakeBackend()
	s, _ := newService(b)
	query.SetData(s.Cache(), AccountKey(3), model.Account{ID: 3, Name: "Work"})

	b.err = &api.Error{Status: http.StatusBadRequest, Detail: "Name taken"}
	_, err := s.UpdateAccount(context.Background(), 3, model.AccountUpdate{Name: model.String("Home")})
	require.Error(t, err)

	assert.Equal(t, query.StatusStale, query.Peek[model.Account](s.Cache(), AccountKey(3)).Status)
}

func TestMutationFailureNotices(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"detail", &api.Error{Status: http.StatusBadRequest, Detail: "Email account already exists"}, "Email account already exists"},
		{"no detail", &api.Error{Status: http.StatusInternalServerError}, "Failed to create email account"},
		{"transport", errors.New("connection refused"), "Failed to create email account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			b.err = tt.err
			s, _ := newService(b)

			_, err := s.CreateAccount(context.Background(), model.AccountCreate{})
			require.ErrorIs(t, err, tt.err)

			n := nextNotice(t, s)
			assert.Equal(t, LevelError, n.Level)
			assert.Equal(t, tt.want, n.Message)
		})
	}
}

func TestAuthFailurePostsNoNotice(t *testing.T) {
	b := newFakeBackend()
	b.err = &api.AuthError{Detail: "Could not validate credentials"}
	s, _ := newService(b)

	err := s.DeleteEmail(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))
	assertNoNotice(t, s)
}

func TestTestAccountNotices(t *testing.T) {
	b := newFakeBackend()
	s, _ := newService(b)
	ctx := context.Background()

	b.testResult = model.ConnectionTest{IMAPSuccess: true, SMTPSuccess: true}
	_, err := s.TestAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Connection test successful!", nextNotice(t, s).Message)

	b.testResult = model.ConnectionTest{IMAPSuccess: true, ErrorMessage: "SMTP: timed out"}
	_, err = s.TestAccount(ctx, 1)
	require.NoError(t, err)
	n := nextNotice(t, s)
	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, "SMTP: timed out", n.Message)

	b.testResult = model.ConnectionTest{}
	_, _ = s.TestAccount(ctx, 1)
	assert.Equal(t, "Connection test failed", nextNotice(t, s).Message)
}

func TestSyncEmailsNotice(t *testing.T) {
	b := newFakeBackend()
	s, _ := newService(b)

	b.syncResult = model.StatusMessage{Message: "Successfully synced 2 emails"}
	_, err := s.SyncEmails(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, "Successfully synced 2 emails", nextNotice(t, s).Message)

	b.syncResult = model.StatusMessage{}
	_, err = s.SyncEmails(context.Background(), 1, "INBOX")
	require.NoError(t, err)
	assert.Equal(t, "Emails synced successfully!", nextNotice(t, s).Message)
}

func TestSearchIsUncached(t *testing.T) {
	b := newFakeBackend()
	s, _ := newService(b)

	_, _ = s.SearchEmails(context.Background(), model.EmailSearch{Query: "x"})
	_, _ = s.SearchEmails(context.Background(), model.EmailSearch{Query: "x"})

	assert.Equal(t, 2, b.count("SearchEmails"))
	assert.Zero(t, s.Cache().Len())
}

func TestSignInAndOut(t *testing.T) {
	b := newFakeBackend()
	s, sess := newService(b)
	ctx := context.Background()

	user, err := s.Register(ctx, model.Registration{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	require.NotNil(t, sess.user)
	assert.Equal(t, "T", sess.token)

	s.Accounts(ctx)
	require.Equal(t, 1, s.Cache().Len())

	s.SignOut(ctx)
	assert.Nil(t, sess.user)
	assert.Equal(t, 1, sess.logout)
	assert.Zero(t, s.Cache().Len())
	assert.Equal(t, 1, b.count("Logout"))
}

func TestSignInFailureKeepsSession(t *testing.T) {
	b := newFakeBackend()
	b.err = &api.AuthError{Detail: "Incorrect username or password"}
	s, sess := newService(b)

	_, err := s.SignIn(context.Background(), model.Credentials{Username: "a"})
	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", api.Detail(err))
	assert.Nil(t, sess.user)
}

func TestBackgroundSyncIsQuiet(t *testing.T) {
	b := newFakeBackend()
	b.syncResult = model.StatusMessage{Message: "Successfully synced 0 emails"}
	s, _ := newService(b)
	ctx := context.Background()
	params := model.EmailListParams{AccountID: 1, Folder: "INBOX"}

	s.Emails(ctx, params)
	_, err := s.BackgroundSync(ctx, 1, "INBOX")
	require.NoError(t, err)
	assertNoNotice(t, s)

	s.Emails(ctx, params)
	assert.Equal(t, 2, b.count("ListEmails"))

	b.err = errors.New("offline")
	_, err = s.BackgroundSync(ctx, 1, "INBOX")
	require.Error(t, err)
	assertNoNotice(t, s)
}
