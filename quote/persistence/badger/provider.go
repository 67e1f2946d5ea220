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

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
)

const (
	gcInterval     = 5 * time.Minute
	gcDiscardRatio = 0.5

	defaultLockTimeout = 5 * time.Second
)

// StorageProvider stores negotiations in badger.
type StorageProvider struct {
	db          *badger.DB
	lockTimeout time.Duration

	stop      context.CancelFunc
	stopped   chan struct{}
	closeOnce sync.Once
}

// Option configures the storage provider.
type Option func(*StorageProvider)

// WithLockTimeout sets how long a writer waits for a record lock before giving up with a
// conflicting update error.
func WithLockTimeout(d time.Duration) Option {
	return func(sp *StorageProvider) { sp.lockTimeout = d }
}

// New opens the badger database in dbPath, or a throwaway one in memory if inMemory is set.
// The value log is garbage collected in the background until Close is called.
func New(ctx context.Context, inMemory bool, dbPath string, opts ...Option) (*StorageProvider, error) {
	opt := badger.DefaultOptions(dbPath)
	dbType := "disk"
	if inMemory {
		opt = badger.DefaultOptions("").WithInMemory(true)
		dbType = "memory"
	}
	ctx, logger := logging.InjectLabels(ctx, "module", "badger", "db_type", dbType, "db_path", dbPath)

	db, err := badger.Open(opt.WithLogger(badgerLogger{logger}))
	if err != nil {
		return nil, fmt.Errorf("could not open badger database: %w", err)
	}
	sp := &StorageProvider{
		db:          db,
		lockTimeout: defaultLockTimeout,
		stopped:     make(chan struct{}),
	}
	for _, o := range opts {
		o(sp)
	}
	ctx, sp.stop = context.WithCancel(context.WithoutCancel(ctx))
	go sp.collectGarbage(ctx, inMemory)
	return sp, nil
}

// Close stops the garbage collector and closes the database. Calling it again is a no-op.
func (sp *StorageProvider) Close() error {
	var err error
	sp.closeOnce.Do(func() {
		sp.stop()
		<-sp.stopped
		err = sp.db.Close()
	})
	return err
}

func (sp *StorageProvider) collectGarbage(ctx context.Context, inMemory bool) {
	defer close(sp.stopped)
	if inMemory {
		// Value log GC is not supported on in-memory databases.
		<-ctx.Done()
		return
	}
	logger := logging.Extract(ctx)
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		rewrites := 0
		for {
			err := sp.db.RunValueLogGC(gcDiscardRatio)
			if err == nil {
				rewrites++
				continue
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				logger.Error("Value log garbage collection failed", "err", err)
			}
			break
		}
		logger.Debug("Value log garbage collection done", "rewrites", rewrites)
	}
}

// read returns a copy of the value stored under key.
func (sp *StorageProvider) read(key []byte) ([]byte, error) {
	var b []byte
	err := sp.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		b, err = item.ValueCopy(nil)
		return err
	})
	return b, err
}

// scan returns copies of all values whose key starts with prefix, in key order.
func (sp *StorageProvider) scan(prefix []byte) ([][]byte, error) {
	var values [][]byte
	err := sp.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		return nil
	})
	return values, err
}

func (sp *StorageProvider) write(key, value []byte) error {
	return sp.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// badgerLogger routes badger's printf style logging to slog. Badger is chatty on info, that
// goes to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) { l.logger.Error(fmt.Sprintf(format, args...)) }

func (l badgerLogger) Warningf(format string, args ...any) { l.logger.Warn(fmt.Sprintf(format, args...)) }

func (l badgerLogger) Infof(format string, args ...any) { l.logger.Debug(fmt.Sprintf(format, args...)) }

func (l badgerLogger) Debugf(format string, args ...any) { l.logger.Debug(fmt.Sprintf(format, args...)) }
