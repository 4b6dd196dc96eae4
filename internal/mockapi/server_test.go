package mockapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-client/internal/api"
	"github.com/nhle/mail-client/internal/model"
)

type tokenHolder struct{ token string }

func (h *tokenHolder) Token() string { return h.token }

type fixture struct {
	server *Server
	client *api.Client
	tokens *tokenHolder
	url    string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	srv := New(opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	tokens := &tokenHolder{}
	return &fixture{
		server: srv,
		client: api.NewClient(ts.URL, tokens),
		tokens: tokens,
		url:    ts.URL,
	}
}

// signIn registers alice and stores her token.
func (f *fixture) signIn(t *testing.T) model.User {
	t.Helper()
	ctx := context.Background()
	_, err := f.client.Register(ctx, model.Registration{
		Username: "alice", Email: "alice@example.com", Password: "secret",
	})
	require.NoError(t, err)

	user, token, err := f.client.Login(ctx, model.Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	f.tokens.token = token
	return user
}

func validAccount(address string) model.AccountCreate {
	return model.AccountCreate{
		Name:         "Work",
		EmailAddress: address,
		IMAPHost:     "imap.example.com",
		IMAPPort:     993,
		IMAPSSL:      true,
		IMAPUsername: address,
		IMAPPassword: "pw",
		SMTPHost:     "smtp.example.com",
		SMTPPort:     465,
		SMTPSSL:      true,
		SMTPUsername: address,
		SMTPPassword: "pw",
	}
}

func TestLoginResolvesUser(t *testing.T) {
	f := newFixture(t)
	user := f.signIn(t)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, f.tokens.token)

	me, err := f.client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	_, _, err := f.client.Login(context.Background(), model.Credentials{Username: "alice", Password: "nope"})
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))
	assert.Equal(t, "Incorrect username or password", api.Detail(err))
}

func TestRegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	_, err := f.client.Register(context.Background(), model.Registration{
		Username: "alice", Email: "other@example.com", Password: "x",
	})
	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Username already registered", apiErr.Detail)

	_, err = f.client.Register(context.Background(), model.Registration{
		Username: "bob", Email: "ALICE@example.com", Password: "x",
	})
	assert.Equal(t, "Email already registered", api.Detail(err))
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.client.Register(context.Background(), model.Registration{Username: "bob", Email: "not-an-email"})
	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Contains(t, apiErr.Detail, "email: value is not a valid email address")
	assert.Contains(t, apiErr.Detail, "password: field required")
}

func TestExpiredTokenIsUnauthorized(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return now }))
	f.signIn(t)

	var events int
	f.client.OnUnauthorized(func(api.UnauthorizedEvent) { events++ })

	now = now.Add(31 * time.Minute)
	_, err := f.client.ListAccounts(context.Background())
	assert.True(t, api.IsAuthError(err))
	assert.Equal(t, 1, events)
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	other := New(WithSecret("another-secret"))
	token, err := other.IssueToken("alice")
	require.NoError(t, err)
	f.tokens.token = token

	_, err = f.client.ListAccounts(context.Background())
	assert.True(t, api.IsAuthError(err))
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.ListAccounts(context.Background())
	assert.True(t, api.IsAuthError(err))
}

func TestAccountLifecycle(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	first, err := f.client.CreateAccount(ctx, validAccount("work@example.com"))
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.True(t, first.IsActive)

	second, err := f.client.CreateAccount(ctx, validAccount("home@example.com"))
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	_, err = f.client.CreateAccount(ctx, validAccount("WORK@example.com"))
	assert.Equal(t, "Email account already exists", api.Detail(err))

	updated, err := f.client.UpdateAccount(ctx, second.ID, model.AccountUpdate{
		Name:      model.String("Home"),
		IsDefault: model.Bool(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Home", updated.Name)
	assert.True(t, updated.IsDefault)

	got, err := f.client.GetAccount(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault, "setting a default unsets the others")

	require.NoError(t, f.client.DeleteAccount(ctx, first.ID))
	_, err = f.client.GetAccount(ctx, first.ID)
	assert.Equal(t, "Email account not found", api.Detail(err))

	accounts, err := f.client.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, second.ID, accounts[0].ID)
}

func TestCreateAccountValidation(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	in := validAccount("work@example.com")
	in.IMAPHost = ""
	_, err := f.client.CreateAccount(context.Background(), in)
	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "imap_host: field required", apiErr.Detail)
}

func TestAccountsAreScopedToUser(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	acc, err := f.client.CreateAccount(ctx, validAccount("work@example.com"))
	require.NoError(t, err)

	_, err = f.server.SeedUser(model.Registration{Username: "bob", Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)
	token, err := f.server.IssueToken("bob")
	require.NoError(t, err)
	f.tokens.token = token

	_, err = f.client.GetAccount(ctx, acc.ID)
	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	accounts, err := f.client.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestConnectionTest(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	good, err := f.client.CreateAccount(ctx, validAccount("work@example.com"))
	require.NoError(t, err)
	result, err := f.client.TestAccount(ctx, good.ID)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Nil(t, result.POP3Success)
	assert.Empty(t, result.ErrorMessage)

	in := validAccount("broken@example.com")
	in.SMTPHost = "smtp.invalid.example"
	bad, err := f.client.CreateAccount(ctx, in)
	require.NoError(t, err)
	result, err = f.client.TestAccount(ctx, bad.ID)
	require.NoError(t, err)
	assert.True(t, result.IMAPSuccess)
	assert.False(t, result.SMTPSuccess)
	assert.Equal(t, "SMTP: cannot connect to smtp.invalid.example:465", result.ErrorMessage)
}

func TestUploadAvatar(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	acc, err := f.client.CreateAccount(ctx, validAccount("work@example.com"))
	require.NoError(t, err)

	upload, err := f.client.UploadAvatar(ctx, acc.ID, "me.png", bytes.NewReader([]byte("\x89PNG")))
	require.NoError(t, err)
	assert.Equal(t, "Avatar uploaded successfully", upload.Message)
	assert.True(t, strings.HasPrefix(upload.AvatarURL, "/uploads/avatar_1_"))
	assert.True(t, strings.HasSuffix(upload.AvatarURL, ".png"))

	got, err := f.client.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, upload.AvatarURL, got.AvatarURL)

	_, err = f.client.UploadAvatar(ctx, acc.ID, "notes.txt", strings.NewReader("hi"))
	assert.Equal(t, "File must be an image", api.Detail(err))
}

func TestSyncListAndFolders(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	acc, err := f.client.CreateAccount(ctx, validAccount("work@example.com"))
	require.NoError(t, err)

	params := model.EmailListParams{AccountID: acc.ID, Folder: model.DefaultFolder}
	emails, err := f.client.ListEmails(ctx, params)
	require.NoError(t, err)
	assert.Empty(t, emails)

	msg, err := f.client.SyncEmails(ctx, acc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Successfully synced 4 emails", msg.Message)

	msg, err = f.client.SyncEmails(ctx, acc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Successfully synced 0 emails", msg.Message)

	emails, err = f.client.ListEmails(ctx, params)
	require.NoError(t, err)
	require.Len(t, emails, 4)
	assert.Equal(t, "Welcome to your new mailbox", emails[0].Subject, "newest first")
	for i := 1; i < len(emails); i++ {
		assert.False(t, emails[i].Received().After(emails[i-1].Received().Time))
	}

	page, err := f.client.ListEmails(ctx, model.EmailListParams{AccountID: acc.ID, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, emails[1].ID, page[0].ID)

	got, err := f.client.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastSync)

	folders, err := f.client.ListFolders(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, baseFolders, folders)
}

func TestListEmailsLimitValidation(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	_, err := f.client.ListEmails(context.Background(), model.EmailListParams{Limit: 500})
	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "limit: ensure this value is less than or equal to 100", apiErr.Detail)
}

func TestEmailUpdateDeleteAndArchive(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	acc, err := f.client.CreateAccount(ctx, validAccount("work@example.com"))
	require.NoError(t, err)
	_, err = f.client.SyncEmails(ctx, acc.ID, model.DefaultFolder)
	require.NoError(t, err)

	inbox := model.EmailListParams{AccountID: acc.ID, Folder: model.DefaultFolder}
	emails, err := f.client.ListEmails(ctx, inbox)
	require.NoError(t, err)
	require.Len(t, emails, 4)

	target := emails[0]
	updated, err := f.client.UpdateEmail(ctx, target.ID, model.EmailUpdate{
		IsRead: model.Bool(true), IsStarred: model.Bool(true),
	})
	require.NoError(t, err)
	assert.True(t, updated.IsRead)
	assert.True(t, updated.IsStarred)

	_, err = f.client.UpdateEmail(ctx, emails[1].ID, model.EmailUpdate{Folder: model.String(model.ArchiveFolder)})
	require.NoError(t, err)

	require.NoError(t, f.client.DeleteEmail(ctx, emails[2].ID))
	deleted, err := f.client.GetEmail(ctx, emails[2].ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted, "delete is soft")

	emails, err = f.client.ListEmails(ctx, inbox)
	require.NoError(t, err)
	assert.Len(t, emails, 2)

	archived, err := f.client.ListEmails(ctx, model.EmailListParams{AccountID: acc.ID, Folder: model.ArchiveFolder})
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	folders, err := f.client.ListFolders(ctx, acc.ID)
	require.NoError(t, err)
	assert.Contains(t, folders, model.ArchiveFolder)

	_, err = f.client.GetEmail(ctx, 999)
	assert.Equal(t, "Email not found", api.Detail(err))
}

func TestComposeStoresSentCopy(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	acc, err := f.client.CreateAccount(ctx, validAccount("work@example.com"))
	require.NoError(t, err)

	err = f.client.ComposeEmail(ctx, model.EmailCompose{
		AccountID: acc.ID,
		To:        []model.Address{{Email: "bob@example.com"}},
		Subject:   "Hello",
		BodyText:  "Hi Bob",
	})
	require.NoError(t, err)

	sent, err := f.client.ListEmails(ctx, model.EmailListParams{AccountID: acc.ID, Folder: "Sent"})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].IsSent)
	assert.Equal(t, "work@example.com", sent[0].SenderEmail)
	assert.NotEmpty(t, sent[0].MessageID)

	err = f.client.ComposeEmail(ctx, model.EmailCompose{AccountID: acc.ID, Subject: "No one"})
	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	acc, err := f.client.CreateAccount(ctx, validAccount("work@example.com"))
	require.NoError(t, err)
	_, err = f.client.SyncEmails(ctx, acc.ID, "")
	require.NoError(t, err)

	results, err := f.client.SearchEmails(ctx, model.EmailSearch{Query: "lunch"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Lunch on Friday?", results[0].Subject)

	results, err = f.client.SearchEmails(ctx, model.EmailSearch{Query: "example.com", IsStarred: model.Bool(true)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Weekly report", results[0].Subject)

	results, err = f.client.SearchEmails(ctx, model.EmailSearch{Query: "nothing matches this"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestErrorEnvelopeForUnknownRoute(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.url + "/api/v1/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"detail":"Not Found"}`, buf.String())
}
