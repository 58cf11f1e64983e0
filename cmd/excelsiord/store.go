package main

import (
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"excelsior/config"
	"excelsior/storage"
)

// openStore opens the ledger store selected by cfg.Backend.
func openStore(cfg *config.Config) (storage.Database, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(cfg.StorePath(), &bolt.Options{Timeout: time.Second})
	case config.BackendLevelDB, "":
		return storage.NewLevelDB(cfg.StorePath())
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
