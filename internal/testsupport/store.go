package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stemgen/internal/config"
	"stemgen/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	path := filepath.Join(cfg.Paths.DataDir, "ledger.db")
	store, err := ledger.Open(context.Background(), path, 2*time.Second)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTrack registers a track for tests using the provided store.
func NewTrack(t testing.TB, store *ledger.Store, path, contentHash string) *ledger.Track {
	t.Helper()

	track, err := store.AddTrack(context.Background(), ledger.Track{
		FilePath:    path,
		ContentHash: contentHash,
	})
	if err != nil {
		t.Fatalf("store.AddTrack: %v", err)
	}
	return track
}
