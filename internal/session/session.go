// Package session holds the authenticated user and bearer token, persisted
// across restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/persist"
	"github.com/nhle/mail-client/internal/state"
)

// State is a snapshot of the session.
type State struct {
	User          *model.User
	Token         string
	Authenticated bool
}

// persisted is the durable shape of State. Absent values are null.
type persisted struct {
	User            *model.User `json:"user"`
	Token           *string     `json:"token"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

// Store is the session store. It is safe for concurrent use.
type Store struct {
	state   *state.Container[State]
	storage persist.Storage
	logger  *slog.Logger
}

// Open rehydrates the session from storage. A missing or unreadable blob
// yields the empty, unauthenticated state.
func Open(ctx context.Context, storage persist.Storage, logger *slog.Logger) (*Store, error) {
	if storage == nil {
		return nil, errors.New("session: nil storage")
	}
	if logger == nil {
		logger = slog.Default()
	}

	initial, err := load(ctx, storage)
	if err != nil {
		if !errors.Is(err, persist.ErrNotFound) {
			logger.Warn("discarding stored session", "error", err)
		}
		initial = State{}
	}

	s := &Store{
		state:   state.New(initial),
		storage: storage,
		logger:  logger,
	}
	s.state.Subscribe(s.save)
	return s, nil
}

func load(ctx context.Context, storage persist.Storage) (State, error) {
	data, err := storage.Load(ctx, persist.NamespaceSession)
	if err != nil {
		return State{}, err
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return State{}, fmt.Errorf("decoding session: %w", err)
	}

	st := State{User: p.User, Authenticated: p.IsAuthenticated}
	if p.Token != nil {
		st.Token = *p.Token
	}
	return st, nil
}

// save writes every change through to storage. Failures are logged; the
// in-memory session stays authoritative.
func (s *Store) save(st State) {
	p := persisted{User: st.User, IsAuthenticated: st.Authenticated}
	if st.Token != "" {
		p.Token = &st.Token
	}

	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("encoding session", "error", err)
		return
	}
	if err := s.storage.Save(context.Background(), persist.NamespaceSession, data); err != nil {
		s.logger.Error("persisting session", "error", err)
	}
}

// Login records user and token and marks the session authenticated.
// It never fails and is not validated against the backend.
func (s *Store) Login(user model.User, token string) {
	s.state.Set(State{User: &user, Token: token, Authenticated: true})
	s.logger.Info("session started", "user", user.Username)
}

// Logout clears the session. Logging out twice is harmless.
func (s *Store) Logout() {
	s.state.Set(State{})
	s.logger.Info("session cleared")
}

// UpdateUser merges patch into the current user. Without a user it does
// nothing.
func (s *Store) UpdateUser(patch model.UserPatch) {
	s.state.Update(func(cur State) (State, bool) {
		if cur.User == nil {
			return cur, false
		}
		u := patch.Apply(*cur.User)
		cur.User = &u
		return cur, true
	})
}

// State returns a snapshot of the session.
func (s *Store) State() State {
	st := s.state.Get()
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// User returns the current user, if any.
func (s *Store) User() (model.User, bool) {
	st := s.state.Get()
	if st.User == nil {
		return model.User{}, false
	}
	return *st.User, true
}

// Token returns the bearer token, or "" when there is none.
func (s *Store) Token() string {
	return s.state.Get().Token
}

// Authenticated reports whether a user is logged in.
func (s *Store) Authenticated() bool {
	return s.state.Get().Authenticated
}

// Subscribe registers fn to run after every session change.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}

// ExpiresAt returns the exp claim of the token when it is a JWT. The
// signature is not verified; the value is informational only.
func (s *Store) ExpiresAt() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
