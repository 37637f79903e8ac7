package database

import (
	"fmt"
	"os"
	"path/filepath"

	"bhf-go/internal/config"
)

// NewDatabaseFromConfig creates a history store based on the database config
// type. In-memory databases are migrated on the spot; file databases are
// checked and must already be at the latest schema version.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, instanceID string) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, instanceID+".db")
		return NewSQLiteDatabase(dbPath)
	case "memory":
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
