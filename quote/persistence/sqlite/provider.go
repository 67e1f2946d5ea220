// Copyright 2024 Luigi Borriello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlite contains a persistence.StorageProvider backed by SQLite through the pure-go
// modernc driver. Mutations write before they read inside their transaction, so a deferred
// transaction never has to upgrade a read lock.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
	_ "modernc.org/sqlite" // registers the sqlite driver
)

//go:embed migrations/*.sql
var migrations embed.FS

const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// StorageProvider stores negotiations in SQLite.
type StorageProvider struct {
	db *sql.DB
}

// New opens the database, an in-memory one if inMemory is set, otherwise the one at dbPath.
// It does not migrate, call Migrate before use.
func New(ctx context.Context, inMemory bool, dbPath string) (*StorageProvider, error) {
	logger := logging.Extract(ctx).With("module", "sqlite", "db_path", dbPath, "memory", inMemory)
	var dsn string
	if inMemory {
		dsn = "file::memory:?" + pragmas
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
		dsn = "file:" + dbPath + "?" + pragmas + "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if inMemory {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	logger.Info("Opened database")
	return &StorageProvider{db: db}, nil
}

// Migrate brings the schema up to date.
func (sp *StorageProvider) Migrate(ctx context.Context) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(sp.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	version, _, _ := m.Version()
	logging.Extract(ctx).Info("Database migrated", "module", "sqlite", "version", version)
	return nil
}

// Close closes the database.
func (sp *StorageProvider) Close() error {
	return sp.db.Close()
}
