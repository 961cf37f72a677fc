package testsupport

import (
	"context"
	"testing"
	"time"

	"devopsmirror/internal/config"
	"devopsmirror/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedTransition upserts the work item and records one transition in a
// single transaction, returning the work item.
func SeedTransition(t testing.TB, st *store.Store, externalID, from, to string, changedAt time.Time) *store.WorkItem {
	t.Helper()

	var item *store.WorkItem
	err := st.InTx(context.Background(), func(tx *store.Tx) error {
		res, err := tx.UpsertWorkItem(context.Background(), externalID, "Seeded "+externalID, to, changedAt)
		if err != nil {
			return err
		}
		item = res.Item
		_, err = tx.RecordTransitionIfNew(context.Background(), res.Item.ID, from, to, "Seeder", changedAt)
		return err
	})
	if err != nil {
		t.Fatalf("seed transition: %v", err)
	}
	return item
}
