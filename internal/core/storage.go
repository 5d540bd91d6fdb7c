package core

import (
	"clinicrecords/internal/config"
	"clinicrecords/internal/infra/persistence/memory"
	"clinicrecords/internal/infra/persistence/postgres"
	"clinicrecords/internal/infra/persistence/sqlite"
	"clinicrecords/pkg/domain"
	"context"
	"fmt"
)

// StorageDriver identifies a record store backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = config.StorageMemory   // process memory only
	StorageSQLite   StorageDriver = config.StorageSQLite   // embedded sqlite file
	StoragePostgres StorageDriver = config.StoragePostgres // PostgreSQL server
)

// PersistentStore is a record store that must be closed.
type PersistentStore = domain.PersistentStore

type memoryStore struct {
	*memory.Store
}

func (memoryStore) Close() error { return nil }

// OpenPersistentStore opens the backend named by cfg.Driver, defaulting to
// memory.
func OpenPersistentStore(ctx context.Context, cfg config.Storage) (PersistentStore, error) {
	switch StorageDriver(cfg.Driver) {
	case StorageMemory, "":
		return memoryStore{memory.NewStore()}, nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
