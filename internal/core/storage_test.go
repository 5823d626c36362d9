package core_test

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"lineagecore/internal/config"
	"lineagecore/internal/core"
	"lineagecore/internal/infra/persistence/memory"
	"lineagecore/internal/logging"
	"lineagecore/pkg/domain"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	cfg := config.Defaults()
	cfg.StorageDriver = string(core.StorageMemory)
	store, err := core.OpenPersistentStore(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
	if _, ok := store.(core.Snapshotter); !ok {
		t.Fatalf("memory store should support snapshots")
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	cfg := config.Defaults()
	cfg.StorageDriver = "etcd"
	if _, err := core.OpenPersistentStore(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestSQLiteBackedServiceSurvivesReopen(t *testing.T) {
	ctx := actorCtx()
	cfg := config.Defaults()
	cfg.StorageDriver = string(core.StorageSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "lineage.db")

	store, err := core.OpenPersistentStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	svc := core.NewService(store)
	female, _, err := svc.CreateAccession(ctx, domain.Accession{DisplayName: strPtr("Queen")})
	if err != nil {
		t.Fatalf("create female: %v", err)
	}
	male, _, err := svc.CreateAccession(ctx, domain.Accession{DisplayName: strPtr("King")})
	if err != nil {
		t.Fatalf("create male: %v", err)
	}
	if _, _, err := svc.CreateCross(ctx, domain.Cross{Code: "X-001", FemaleParentID: female.ID, MaleParentID: male.ID}); err != nil {
		t.Fatalf("create cross: %v", err)
	}
	if err := store.(io.Closer).Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := core.OpenPersistentStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	t.Cleanup(func() { _ = reopened.(io.Closer).Close() })
	svc = core.NewService(reopened)
	got, err := svc.FindAccessionByCode(ctx, female.Code)
	if err != nil {
		t.Fatalf("find after reopen: %v", err)
	}
	if got.ID != female.ID || *got.DisplayName != "Queen" {
		t.Fatalf("unexpected accession after reopen: %+v", got)
	}
	next, _, err := svc.CreateAccession(ctx, domain.Accession{})
	if err != nil {
		t.Fatalf("create after reopen: %v", err)
	}
	if next.Code == female.Code || next.Code == male.Code {
		t.Fatalf("code %s reused after reopen", next.Code)
	}
}

func TestServiceLogsThroughZap(t *testing.T) {
	zcore, logs := observer.New(zapcore.DebugLevel)
	svc := newTestService(t, core.WithLogger(logging.NewWithCore(zcore)))

	_, _, err := svc.CreateCross(actorCtx(), domain.Cross{FemaleParentID: "nope", MaleParentID: "nope"})
	expectKind(t, err, domain.ErrNotFound)

	rejected := logs.FilterMessage("operation rejected").All()
	if len(rejected) != 1 {
		t.Fatalf("expected one rejection log, got %d", len(rejected))
	}
	fields := rejected[0].ContextMap()
	if fields["operation"] != "create_cross" || fmt.Sprint(fields["kind"]) != string(domain.KindNotFound) {
		t.Fatalf("unexpected fields %v", fields)
	}
}
