package testutil

import (
	"testing"

	"github.com/nhle/mail-client/internal/persist"
)

// NewTestStorage creates an in-memory SQLiteStorage with all migrations
// applied. It automatically closes the storage when the test completes.
func NewTestStorage(t *testing.T) *persist.SQLiteStorage {
	t.Helper()

	s, err := persist.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("creating test storage: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test storage: %v", err)
		}
	})

	return s
}
