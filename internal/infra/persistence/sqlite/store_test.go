package sqlite

import (
	"context"
	"errors"
	"lineagecore/pkg/domain"
	"path/filepath"
	"testing"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		batch, err := tx.CreateCloneBatch(domain.CloneBatch{Code: "CB-2025-001", Method: domain.MethodCutting, AcquiredCount: 4, Status: domain.CloneBatchGrowing})
		if err != nil {
			return err
		}
		_, err = tx.CreateCareLog(domain.CareLog{Owner: domain.OwnerRef{Kind: domain.EntityCloneBatch, ID: batch.ID}, Action: "repot"})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = store.Close()

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	snap := reloaded.ExportState()
	if len(snap.CloneBatches) != 1 || len(snap.CareLogs) != 1 {
		t.Fatalf("expected batch and care log after reload, got %+v", snap)
	}
}

func TestSQLiteStoreCommitFailureRollsBack(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.DB().Exec(`DROP TABLE state`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateAccession(domain.Accession{Code: "ANT-2025-0001"})
		return e
	})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if store.ExportState().Len() != 0 {
		t.Fatalf("failed persist must not publish the accession")
	}
	_ = store.Close()
}
