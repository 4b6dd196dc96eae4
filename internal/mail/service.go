// Package mail binds the backend adapter to the query cache. Reads go
// through the cache with per-entity staleness; mutations invalidate or
// seed the affected entries and post a notice.
package mail

import (
	"context"
	"io"
	"log/slog"

	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/query"
)

// Backend is the subset of the HTTP adapter the service uses.
type Backend interface {
	Login(ctx context.Context, creds model.Credentials) (model.User, string, error)
	Register(ctx context.Context, reg model.Registration) (model.User, error)
	Logout(ctx context.Context) error

	ListAccounts(ctx context.Context) ([]model.Account, error)
	CreateAccount(ctx context.Context, in model.AccountCreate) (model.Account, error)
	UpdateAccount(ctx context.Context, id int64, in model.AccountUpdate) (model.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	TestAccount(ctx context.Context, id int64) (model.ConnectionTest, error)
	UploadAvatar(ctx context.Context, id int64, filename string, image io.Reader) (model.AvatarUpload, error)
	ListFolders(ctx context.Context, accountID int64) ([]string, error)

	ListEmails(ctx context.Context, params model.EmailListParams) ([]model.Email, error)
	GetEmail(ctx context.Context, id int64) (model.Email, error)
	UpdateEmail(ctx context.Context, id int64, in model.EmailUpdate) (model.Email, error)
	DeleteEmail(ctx context.Context, id int64) error
	ComposeEmail(ctx context.Context, in model.EmailCompose) error
	SyncEmails(ctx context.Context, accountID int64, folder string) (model.StatusMessage, error)
	SearchEmails(ctx context.Context, in model.EmailSearch) ([]model.Email, error)
}

// Session is the part of the session store the auth flows drive.
type Session interface {
	Login(user model.User, token string)
	Logout()
}

// Service is the data access layer used by the views.
type Service struct {
	backend Backend
	cache   *query.Cache
	session Session
	notices *Notifier
	logger  *slog.Logger
}

// NewService wires a Service. notices may be nil, in which case a private
// queue is created.
func NewService(
	backend Backend,
	cache *query.Cache,
	session Session,
	notices *Notifier,
	logger *slog.Logger,
) *Service {
	if notices == nil {
		notices = NewNotifier(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: backend,
		cache:   cache,
		session: session,
		notices: notices,
		logger:  logger,
	}
}

// Notices returns the notifier mutations post to.
func (s *Service) Notices() *Notifier {
	return s.notices
}

// Cache returns the underlying query cache.
func (s *Service) Cache() *query.Cache {
	return s.cache
}

// fail logs err and posts the user-facing message for it.
func (s *Service) fail(op string, err error, fallback string) error {
	s.logger.Warn("operation failed", "op", op, "error", err)
	s.notices.Error(UserMessage(err, fallback))
	return err
}
