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
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
)

const (
	// lockTTL bounds how long a lock left behind by a crashed writer blocks the record.
	lockTTL      = time.Minute
	lockRetryGap = 5 * time.Millisecond
)

var (
	errLocked      = errors.New("locked")
	errLockTimeout = errors.New("timed out waiting for lock")
)

// lockKey is the key of the lock entry guarding a record.
type lockKey []byte

func newLockKey(recordKey []byte) lockKey {
	return append([]byte("lock\x00"), recordKey...)
}

func (l lockKey) String() string { return string(l) }

// AcquireLock takes the lock, retrying while someone else holds it. It gives up after the
// lock timeout with errLockTimeout, or when ctx ends.
func (sp *StorageProvider) AcquireLock(ctx context.Context, k lockKey) error {
	logger := logging.Extract(ctx).With("lock_key", k.String())
	ctx, cancel := context.WithTimeoutCause(ctx, sp.lockTimeout, errLockTimeout)
	defer cancel()
	ticker := time.NewTicker(lockRetryGap)
	defer ticker.Stop()
	for attempt := 1; ; attempt++ {
		err := sp.tryLock(k)
		if err == nil {
			logger.Debug("Lock acquired", "attempts", attempt)
			return nil
		}
		if !errors.Is(err, errLocked) && !errors.Is(err, badger.ErrConflict) {
			return fmt.Errorf("couldn't set lock: %w", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			if errors.Is(context.Cause(ctx), errLockTimeout) {
				logger.Warn("Lock timeout reached", "attempts", attempt)
				return errLockTimeout
			}
			return fmt.Errorf("stopped waiting for lock: %w", ctx.Err())
		}
	}
}

// ReleaseLock removes the lock. Releasing a lock that is not held is not an error.
func (sp *StorageProvider) ReleaseLock(_ context.Context, k lockKey) error {
	err := sp.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// tryLock checks and sets the lock in one transaction. Two concurrent setters both see no
// lock, the later commit then fails with badger.ErrConflict.
func (sp *StorageProvider) tryLock(k lockKey) error {
	return sp.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		switch {
		case err == nil:
			return errLocked
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.SetEntry(badger.NewEntry(k, nil).WithTTL(lockTTL))
	})
}

// withLock runs fn while holding the lock of recordKey. A failed release is logged, and
// returned if fn itself succeeded.
func (sp *StorageProvider) withLock(ctx context.Context, recordKey []byte, fn func() error) (err error) {
	k := newLockKey(recordKey)
	if err := sp.AcquireLock(ctx, k); err != nil {
		return err
	}
	defer func() {
		if releaseErr := sp.ReleaseLock(ctx, k); releaseErr != nil {
			logging.Extract(ctx).Error("Failed to unlock, will have to depend on TTL",
				"lock_key", k.String(), "err", releaseErr)
			if err == nil {
				err = releaseErr
			}
		}
	}()
	return fn()
}
