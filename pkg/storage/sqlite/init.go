// Package sqlite keeps the submission ledger in a SQLite file.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/openmined/mine/pkg/storage"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	DefaultFile = "ledger.db"

	dirPermission = 0o755
)

type Database struct {
	*sqlx.DB
}

func NewDatabase(path string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermission); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrDBConnection, err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return database, nil
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_submissions",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS submissions (
						model_id INTEGER NOT NULL,
						weights_address TEXT NOT NULL,
						gradients_address TEXT NOT NULL,
						tx_hash TEXT NOT NULL,
						gas_used INTEGER NOT NULL DEFAULT 0,
						submitted_at TIMESTAMP NOT NULL,
						PRIMARY KEY (model_id, weights_address)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_submissions_submitted_at ON submissions(submitted_at DESC)`,
				},
				Down: []string{
					`DROP INDEX IF EXISTS idx_submissions_submitted_at`,
					`DROP TABLE IF EXISTS submissions`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("database migration error: %w", err)
	}

	return nil
}
