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

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/persistencetest"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, inMemory bool, path string) *sqlite.StorageProvider {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(ctx, inMemory, path)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestConformanceInMemory(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.StorageProvider {
		t.Helper()
		return newStore(t, true, "")
	})
}

func TestConformanceOnDisk(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.StorageProvider {
		t.Helper()
		return newStore(t, false, filepath.Join(t.TempDir(), "quotes.db"))
	})
}

func TestMigrateTwice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quotes.db")
	store := newStore(t, false, path)
	require.NoError(t, store.PutNegotiation(ctx,
		quote.New("q1", quote.CategoryTailored, persistencetest.Parties("b1", "s1"))))
	require.NoError(t, store.Close())

	store = newStore(t, false, path)
	got, err := store.GetNegotiation(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "b1", got.BuyerID())
}
