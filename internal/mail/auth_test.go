package mail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-client/internal/api"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/persist"
	"github.com/nhle/mail-client/internal/query"
	"github.com/nhle/mail-client/internal/session"
)

func TestEndSessionOnUnauthorized_AnyRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	sess, err := session.Open(ctx, persist.NewMemoryStorage(), nil)
	require.NoError(t, err)
	sess.Login(model.User{ID: 1, Username: "alice"}, "expired")

	cache := query.New()
	query.SetData(cache, AccountsKey(), []model.Account{{ID: 1}})

	client := api.NewClient(srv.URL, sess)
	unsubscribe := EndSessionOnUnauthorized(client, cache, sess, nil)
	defer unsubscribe()

	_, err = client.ListEmails(ctx, model.EmailListParams{AccountID: 1, Folder: "INBOX", Limit: 50})
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))

	assert.Equal(t, session.State{}, sess.State())
	assert.Zero(t, cache.Len())
}

func TestEndSessionOnUnauthorized_Unsubscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx := context.Background()
	sess, err := session.Open(ctx, persist.NewMemoryStorage(), nil)
	require.NoError(t, err)
	sess.Login(model.User{ID: 1, Username: "alice"}, "token")

	client := api.NewClient(srv.URL, sess)
	EndSessionOnUnauthorized(client, query.New(), sess, nil)()

	_, _ = client.ListAccounts(ctx)
	assert.True(t, sess.Authenticated())
}
