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

package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/persistencetest"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/postgres"
	"github.com/stretchr/testify/require"
)

const dsnEnv = "DOMEQUOTES_TEST_POSTGRES_DSN"

func TestConformance(t *testing.T) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	ctx := context.Background()

	persistencetest.Run(t, func(t *testing.T) persistence.StorageProvider {
		t.Helper()
		store, err := postgres.New(ctx, dsn)
		require.NoError(t, err)
		require.NoError(t, store.Migrate(ctx))
		truncate(t, dsn)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func truncate(t *testing.T, dsn string) {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	defer pool.Close()
	_, err = pool.Exec(context.Background(), "TRUNCATE attachments, notes, negotiations")
	require.NoError(t, err)
}
