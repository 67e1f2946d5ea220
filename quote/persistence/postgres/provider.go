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

// Package postgres contains a persistence.StorageProvider backed by PostgreSQL.
// Concurrent writers to one negotiation are serialized by the row lock of their UPDATE, state
// changes compare the stored state in the same statement.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// migration driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
)

//go:embed migrations/*.sql
var migrations embed.FS

// StorageProvider stores negotiations in PostgreSQL.
type StorageProvider struct {
	pool *pgxpool.Pool
	dsn  string
}

// New connects a pool to the database at dsn, a postgres:// URL.
func New(ctx context.Context, dsn string) (*StorageProvider, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	logging.Extract(ctx).Info("Connected to database", "module", "postgres",
		"host", pool.Config().ConnConfig.Host, "database", pool.Config().ConnConfig.Database)
	return &StorageProvider{pool: pool, dsn: dsn}, nil
}

// Migrate brings the schema up to date.
func (sp *StorageProvider) Migrate(ctx context.Context) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, sp.dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	version, _, _ := m.Version()
	logging.Extract(ctx).Info("Database migrated", "module", "postgres", "version", version)
	return nil
}

// Close closes the pool.
func (sp *StorageProvider) Close() error {
	sp.pool.Close()
	return nil
}
