// Package prefs holds UI preferences. Only the active folder and the
// selected account survive a restart.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/persist"
	"github.com/nhle/mail-client/internal/state"
)

// State is a snapshot of the UI preferences.
type State struct {
	ActiveFolder      string
	SelectedAccountID *int64
	SearchQuery       string
	SelectedEmailID   *int64
	Composing         bool
}

// Defaults returns the preferences of a fresh install.
func Defaults() State {
	return State{ActiveFolder: model.DefaultFolder}
}

type persisted struct {
	ActiveFolder      *string `json:"activeFolder"`
	SelectedAccountID *int64  `json:"selectedAccountId"`
}

// Store is the preference store. It is safe for concurrent use.
type Store struct {
	state   *state.Container[State]
	storage persist.Storage
	logger  *slog.Logger
}

// Open rehydrates the persisted subset of preferences from storage; every
// other field starts at its default.
func Open(ctx context.Context, storage persist.Storage, logger *slog.Logger) (*Store, error) {
	if storage == nil {
		return nil, errors.New("prefs: nil storage")
	}
	if logger == nil {
		logger = slog.Default()
	}

	initial := Defaults()
	p, err := load(ctx, storage)
	switch {
	case err == nil:
		if p.ActiveFolder != nil {
			initial.ActiveFolder = *p.ActiveFolder
		}
		initial.SelectedAccountID = p.SelectedAccountID
	case !errors.Is(err, persist.ErrNotFound):
		logger.Warn("discarding stored preferences", "error", err)
	}

	s := &Store{
		state:   state.New(initial),
		storage: storage,
		logger:  logger,
	}
	s.state.Subscribe(s.save)
	return s, nil
}

func load(ctx context.Context, storage persist.Storage) (persisted, error) {
	data, err := storage.Load(ctx, persist.NamespacePrefs)
	if err != nil {
		return persisted{}, err
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return persisted{}, fmt.Errorf("decoding preferences: %w", err)
	}
	return p, nil
}

func (s *Store) save(st State) {
	data, err := json.Marshal(persisted{
		ActiveFolder:      &st.ActiveFolder,
		SelectedAccountID: st.SelectedAccountID,
	})
	if err != nil {
		s.logger.Error("encoding preferences", "error", err)
		return
	}
	if err := s.storage.Save(context.Background(), persist.NamespacePrefs, data); err != nil {
		s.logger.Error("persisting preferences", "error", err)
	}
}

// State returns a snapshot of the preferences.
func (s *Store) State() State {
	st := s.state.Get()
	st.SelectedAccountID = clone(st.SelectedAccountID)
	st.SelectedEmailID = clone(st.SelectedEmailID)
	return st
}

// ActiveFolder returns the folder shown in the dashboard.
func (s *Store) ActiveFolder() string {
	return s.state.Get().ActiveFolder
}

// SelectedAccount returns the selected account id, if any.
func (s *Store) SelectedAccount() (int64, bool) {
	id := s.state.Get().SelectedAccountID
	if id == nil {
		return 0, false
	}
	return *id, true
}

// SelectedEmail returns the selected email id, if any.
func (s *Store) SelectedEmail() (int64, bool) {
	id := s.state.Get().SelectedEmailID
	if id == nil {
		return 0, false
	}
	return *id, true
}

// SearchQuery returns the current search text.
func (s *Store) SearchQuery() string {
	return s.state.Get().SearchQuery
}

// Composing reports whether the compose view is open.
func (s *Store) Composing() bool {
	return s.state.Get().Composing
}

// SetActiveFolder replaces the active folder. Any string is accepted.
func (s *Store) SetActiveFolder(folder string) {
	s.state.Update(func(cur State) (State, bool) {
		cur.ActiveFolder = folder
		return cur, true
	})
}

// SetSelectedAccountID replaces the selected account; nil clears it.
func (s *Store) SetSelectedAccountID(id *int64) {
	id = clone(id)
	s.state.Update(func(cur State) (State, bool) {
		cur.SelectedAccountID = id
		return cur, true
	})
}

// SetSearchQuery replaces the search text.
func (s *Store) SetSearchQuery(query string) {
	s.state.Update(func(cur State) (State, bool) {
		cur.SearchQuery = query
		return cur, true
	})
}

// SetSelectedEmailID replaces the selected email; nil clears it.
func (s *Store) SetSelectedEmailID(id *int64) {
	id = clone(id)
	s.state.Update(func(cur State) (State, bool) {
		cur.SelectedEmailID = id
		return cur, true
	})
}

// SetComposing opens or closes the compose view.
func (s *Store) SetComposing(composing bool) {
	s.state.Update(func(cur State) (State, bool) {
		cur.Composing = composing
		return cur, true
	})
}

// Subscribe registers fn to run after every preference change.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}

func clone(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
