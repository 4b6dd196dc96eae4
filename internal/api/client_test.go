package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-client/internal/model"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, token string, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", staticToken(token))
}

func TestBearerHeader(t *testing.T) {
	var gotAuth, gotRequestID string
	c := newTestClient(t, "T", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		assert.Equal(t, "/api/v1/accounts/", r.URL.Path)
		w.Write([]byte(`[]`))
	})

	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Equal(t, "Bearer T", gotAuth)
	assert.NotEmpty(t, gotRequestID)
}

func TestNoTokenNoHeader(t *testing.T) {
	var present bool
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["Authorization"]
		w.Write([]byte(`{"id":1,"username":"a","email":"a@x"}`))
	})

	_, err := c.Register(context.Background(), model.Registration{Username: "a"})
	require.NoError(t, err)
	assert.False(t, present)
}

func TestUnauthorizedEmitsEvent(t *testing.T) {
	c := newTestClient(t, "expired", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	})

	var events []UnauthorizedEvent
	unsubscribe := c.OnUnauthorized(func(ev UnauthorizedEvent) { events = append(events, ev) })

	_, err := c.ListAccounts(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, "Could not validate credentials", Detail(err))
	require.Len(t, events, 1)
	assert.Equal(t, "/accounts/", events[0].Path)
	assert.NotEmpty(t, events[0].RequestID)

	unsubscribe()
	_, err = c.ListAccounts(context.Background())
	require.Error(t, err)
	assert.Len(t, events, 1)
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string", 400, `{"detail":"Email account already exists"}`, "Email account already exists"},
		{"validation list", 422,
			`{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address","type":"value_error"}]}`,
			"email: value is not a valid email address"},
		{"no body", 500, ``, ""},
		{"html", 502, `<html>bad gateway</html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, "T", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.GetEmail(context.Background(), 5)
			apiErr, ok := AsError(err)
			require.True(t, ok)
			assert.False(t, IsAuthError(err))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Detail)
			assert.Equal(t, "/emails/5", apiErr.Path)
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(srv.URL, staticToken("T"))
	_, err := c.ListAccounts(context.Background())
	require.Error(t, err)
	_, ok := AsError(err)
	assert.False(t, ok)
	assert.False(t, IsAuthError(err))
}

func TestLogin_ResolvesUserFromToken(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			var creds model.Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "alice", creds.Username)
			w.Write([]byte(`{"access_token":"jwt","token_type":"bearer"}`))
		case "/api/v1/auth/me":
			assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
			w.Write([]byte(`{"id":3,"username":"alice","email":"alice@x","created_at":"2024-05-01T10:00:00"}`))
		default:
			http.NotFound(w, r)
		}
	})

	user, token, err := c.Login(context.Background(), model.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", token)
	assert.Equal(t, int64(3), user.ID)
	assert.Equal(t, 2024, user.CreatedAt.Year())
}

func TestLogin_UserInResponse(t *testing.T) {
	calls := 0
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"user":{"id":1,"username":"a","email":"a@x"},"token":"T"}`))
	})

	user, token, err := c.Login(context.Background(), model.Credentials{Username: "a"})
	require.NoError(t, err)
	assert.Equal(t, "T", token)
	assert.Equal(t, "a", user.Username)
	assert.Equal(t, 1, calls)
}

func TestListEmailsQuery(t *testing.T) {
	c := newTestClient(t, "T", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("account_id"))
		assert.Equal(t, "INBOX", q.Get("folder"))
		assert.Equal(t, "50", q.Get("limit"))
		assert.False(t, q.Has("offset"))
		w.Write([]byte(`[{"id":9,"account_id":1,"message_id":"<m>","sender_email":"s@x","folder":"INBOX","is_read":false,"is_starred":false,"is_deleted":false,"is_draft":false,"is_sent":false,"created_at":"2024-01-01T00:00:00Z"}]`))
	})

	emails, err := c.ListEmails(context.Background(), model.EmailListParams{AccountID: 1, Folder: "INBOX", Limit: 50})
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, int64(9), emails[0].ID)
}

func TestSyncEmailsDefaultsFolder(t *testing.T) {
	c := newTestClient(t, "T", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/emails/sync/4", r.URL.Path)
		assert.Equal(t, "INBOX", r.URL.Query().Get("folder"))
		w.Write([]byte(`{"message":"Successfully synced 3 emails"}`))
	})

	res, err := c.SyncEmails(context.Background(), 4, "")
	require.NoError(t, err)
	assert.Equal(t, "Successfully synced 3 emails", res.Message)
}

func TestUploadAvatarMultipart(t *testing.T) {
	c := newTestClient(t, "T", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)

		assert.Equal(t, "me.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "PNGDATA", string(data))
		w.Write([]byte(`{"avatar_url":"/uploads/a.png","message":"Avatar uploaded successfully"}`))
	})

	res, err := c.UploadAvatar(context.Background(), 2, "/tmp/me.png", strings.NewReader("PNGDATA"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/a.png", res.AvatarURL)
}

func TestUpdateEmailOmitsUnsetFields(t *testing.T) {
	c := newTestClient(t, "T", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"is_starred":true}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"id":5,"is_starred":true,"folder":"INBOX"}`))
	})

	email, err := c.UpdateEmail(context.Background(), 5, model.EmailUpdate{IsStarred: model.Bool(true)})
	require.NoError(t, err)
	assert.True(t, email.IsStarred)
}
