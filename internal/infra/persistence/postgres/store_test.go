package postgres

import (
	"context"
	"database/sql"
	"errors"
	"lineagecore/internal/infra/persistence/postgres/testutil"
	"lineagecore/pkg/domain"
	"strings"
	"testing"
)

func openStub(t *testing.T) (*testutil.StubConn, func()) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	return conn, restore
}

func TestNewStoreCreatesStateTableAndPersists(t *testing.T) {
	conn, restore := openStub(t)
	defer restore()
	ctx := context.Background()

	store, err := NewStore(ctx, "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if len(conn.Execs) == 0 || !strings.Contains(strings.ToUpper(conn.Execs[0]), "CREATE TABLE IF NOT EXISTS STATE") {
		t.Fatalf("expected state DDL first, got %v", conn.Execs)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, e := tx.CreateAccession(domain.Accession{Code: "ANT-2025-0001", Origin: domain.OriginDirect})
		return e
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := conn.Buckets["accessions"]; !ok {
		t.Fatalf("expected accessions bucket persisted, got %v", conn.Buckets)
	}

	reloaded, err := NewStore(ctx, "ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.ExportState().Accessions) != 1 {
		t.Fatalf("expected accession hydrated from buckets")
	}
	if reloaded.DB() == nil {
		t.Fatalf("expected db handle")
	}
}

func TestCommitFailureRollsBackMemoryState(t *testing.T) {
	conn, restore := openStub(t)
	defer restore()
	ctx := context.Background()
	store, err := NewStore(ctx, "", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.FailCommit = true
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, e := tx.CreateAccession(domain.Accession{Code: "ANT-2025-0001"})
		return e
	})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if store.ExportState().Len() != 0 {
		t.Fatalf("memory state advanced despite failed commit")
	}
	if len(conn.Buckets) != 0 {
		t.Fatalf("failed commit left buckets behind")
	}
}

func TestNewStoreErrors(t *testing.T) {
	ctx := context.Background()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("dial") })
	if _, err := NewStore(ctx, "", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	cases := map[string]func(*testutil.StubConn){
		"ping postgres":      func(c *testutil.StubConn) { c.FailPing = true },
		"ensure state table": func(c *testutil.StubConn) { c.FailExec = true },
		"select state":       func(c *testutil.StubConn) { c.FailQuery = true },
		"decode accessions":  func(c *testutil.StubConn) { c.Buckets["accessions"] = []byte("{") },
	}
	for want, setup := range cases {
		conn, restore := openStub(t)
		setup(conn)
		_, err := NewStore(ctx, "", nil)
		restore()
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q error, got %v", want, err)
		}
	}
}
