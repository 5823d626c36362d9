package core

import (
	"context"
	"fmt"
	"lineagecore/internal/config"
	"lineagecore/internal/infra/persistence/memory"
	"lineagecore/internal/infra/persistence/postgres"
	"lineagecore/internal/infra/persistence/sqlite"
	"lineagecore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// OpenPersistentStore selects a backend from cfg. A nil engine installs the
// default rule set. Durable stores implement io.Closer.
func OpenPersistentStore(ctx context.Context, cfg config.Config, engine *domain.RulesEngine) (PersistentStore, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	switch StorageDriver(cfg.StorageDriver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite, "":
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}

// Snapshotter is implemented by stores whose full state can be exported and
// restored, which backups rely on.
type Snapshotter interface {
	ExportState() memory.Snapshot
	RestoreState(ctx context.Context, snapshot memory.Snapshot) error
}

var (
	_ Snapshotter = (*memory.Store)(nil)
	_ Snapshotter = (*sqlite.Store)(nil)
	_ Snapshotter = (*postgres.Store)(nil)
)
