package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nhle/mail-client/internal/api"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/query"
)

// UnauthorizedSource announces 401 responses. *api.Client implements it.
type UnauthorizedSource interface {
	OnUnauthorized(fn func(api.UnauthorizedEvent)) (unsubscribe func())
}

// EndSessionOnUnauthorized logs sess out and drops every cached read
// whenever src reports a 401, whichever call received it.
func EndSessionOnUnauthorized(src UnauthorizedSource, cache *query.Cache, sess Session, logger *slog.Logger) (unsubscribe func()) {
	if logger == nil {
		logger = slog.Default()
	}
	return src.OnUnauthorized(func(ev api.UnauthorizedEvent) {
		logger.Info("session rejected by backend", "method", ev.Method, "path", ev.Path)
		cache.Clear()
		sess.Logout()
	})
}

// SignIn logs in with creds and starts the session.
func (s *Service) SignIn(ctx context.Context, creds model.Credentials) (model.User, error) {
	user, token, err := s.backend.Login(ctx, creds)
	if err != nil {
		return model.User{}, fmt.Errorf("signing in: %w", err)
	}
	s.session.Login(user, token)
	return user, nil
}

// Register creates a backend user and signs in as them.
func (s *Service) Register(ctx context.Context, reg model.Registration) (model.User, error) {
	if _, err := s.backend.Register(ctx, reg); err != nil {
		return model.User{}, fmt.Errorf("registering: %w", err)
	}
	return s.SignIn(ctx, model.Credentials{Username: reg.Username, Password: reg.Password})
}

// SignOut ends the session locally and drops every cached entry. The
// backend is told on a best-effort basis.
func (s *Service) SignOut(ctx context.Context) {
	if err := s.backend.Logout(ctx); err != nil {
		s.logger.Debug("backend logout failed", "error", err)
	}
	s.session.Logout()
	s.cache.Clear()
}
