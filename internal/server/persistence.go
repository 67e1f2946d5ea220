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

package server

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/internal/cfg"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/badger"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/postgres"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendBadger   = "badger"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var backends = []string{BackendBadger, BackendSQLite, BackendPostgres}

const (
	backend      = "persistence.backend"
	badgerMemory = "persistence.badger.memory"
	badgerDBPath = "persistence.badger.dbPath"
	sqliteMemory = "persistence.sqlite.memory"
	sqlitePath   = "persistence.sqlite.path"
	postgresDSN  = "persistence.postgres.dsn"
	lockTimeout  = "persistence.lockTimeout"
)

// AddStorageFlags adds the storage flags to a command, its subcommands inherit them.
func AddStorageFlags(cmd *cobra.Command) {
	cfg.AddPersistentFlag(cmd, backend, "persistence-backend",
		fmt.Sprintf("Storage backend, one of %v", backends), BackendBadger)
	cfg.AddPersistentFlag(cmd, badgerMemory, "badger-memory", "Keep the badger database in memory", false)
	cfg.AddPersistentFlag(cmd, badgerDBPath, "badger-path", "Badger database directory", "/var/lib/dome-quotes/badger")
	cfg.AddPersistentFlag(cmd, sqliteMemory, "sqlite-memory", "Keep the SQLite database in memory", false)
	cfg.AddPersistentFlag(cmd, sqlitePath, "sqlite-path", "SQLite database file", "/var/lib/dome-quotes/quotes.db")
	cfg.AddPersistentFlag(cmd, postgresDSN, "postgres-dsn", "PostgreSQL connection string", "")
	cfg.AddPersistentFlag(cmd, lockTimeout, "lock-timeout", "How long a badger writer waits for a record lock",
		5*time.Second)
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	PersistenceBackend string
	BadgerMemory       bool
	BadgerDBPath       string
	SQLiteMemory       bool
	SQLitePath         string
	PostgresDSN        string
	LockTimeout        time.Duration
}

// StorageConfigFromViper reads the storage flags.
func StorageConfigFromViper() StorageConfig {
	return StorageConfig{
		PersistenceBackend: viper.GetString(backend),
		BadgerMemory:       viper.GetBool(badgerMemory),
		BadgerDBPath:       viper.GetString(badgerDBPath),
		SQLiteMemory:       viper.GetBool(sqliteMemory),
		SQLitePath:         viper.GetString(sqlitePath),
		PostgresDSN:        viper.GetString(postgresDSN),
		LockTimeout:        viper.GetDuration(lockTimeout),
	}
}

// Validate checks that the selected backend has what it needs.
func (s StorageConfig) Validate() error {
	if !slices.Contains(backends, s.PersistenceBackend) {
		return fmt.Errorf("invalid persistence backend %q, valid backends: %v", s.PersistenceBackend, backends)
	}
	switch s.PersistenceBackend {
	case BackendPostgres:
		if s.PostgresDSN == "" {
			return fmt.Errorf("the postgres backend needs %s", postgresDSN)
		}
	case BackendBadger:
		if !s.BadgerMemory && s.BadgerDBPath == "" {
			return fmt.Errorf("the badger backend needs %s or %s", badgerDBPath, badgerMemory)
		}
	case BackendSQLite:
		if !s.SQLiteMemory && s.SQLitePath == "" {
			return fmt.Errorf("the sqlite backend needs %s or %s", sqlitePath, sqliteMemory)
		}
	}
	return cfg.CheckPositive(lockTimeout, s.LockTimeout)
}

// OpenStorage opens the selected backend, migrating the SQL ones.
func OpenStorage(ctx context.Context, s StorageConfig) (persistence.StorageProvider, error) {
	logger := logging.Extract(ctx)
	switch s.PersistenceBackend {
	case BackendBadger:
		logger.Info("Opening badger storage", "memory", s.BadgerMemory, "path", s.BadgerDBPath)
		provider, err := badger.New(ctx, s.BadgerMemory, s.BadgerDBPath, badger.WithLockTimeout(s.LockTimeout))
		if err != nil {
			return nil, err
		}
		return provider, nil
	case BackendSQLite:
		logger.Info("Opening SQLite storage", "memory", s.SQLiteMemory, "path", s.SQLitePath)
		provider, err := sqlite.New(ctx, s.SQLiteMemory, s.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := provider.Migrate(ctx); err != nil {
			_ = provider.Close()
			return nil, err
		}
		return provider, nil
	case BackendPostgres:
		logger.Info("Opening PostgreSQL storage")
		provider, err := postgres.New(ctx, s.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := provider.Migrate(ctx); err != nil {
			_ = provider.Close()
			return nil, err
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("invalid backend: %s", s.PersistenceBackend)
	}
}
