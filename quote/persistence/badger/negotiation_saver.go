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
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
)

var negotiationPrefix = []byte("negotiation-")

func childIndexPrefix(coordinatorID string) []byte {
	return []byte("child\x00" + coordinatorID + "\x00")
}

func childIndexKey(coordinatorID, id string) []byte {
	return append(childIndexPrefix(coordinatorID), id...)
}

func attachmentKey(id string) []byte {
	return []byte("attachment-" + id)
}

// GetNegotiation gets a negotiation and sets the read-only property.
// It does not check any locks, as the database transaction already freezes the view.
func (sp *StorageProvider) GetNegotiation(ctx context.Context, id string) (*quote.Negotiation, error) {
	b, err := sp.read(quote.GenerateStorageKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, quote.NotFound(id)
		}
		return nil, fmt.Errorf("could not get negotiation %s: %w", id, err)
	}
	negotiation, err := quote.FromBytes(b)
	if err != nil {
		return nil, err
	}
	negotiation.SetReadOnly()
	return negotiation, nil
}

// QueryNegotiations returns the read-only negotiations matching the options. Queries by external
// id go through the child index, everything else scans the negotiations.
func (sp *StorageProvider) QueryNegotiations(
	ctx context.Context,
	opts ...persistence.QueryOption,
) ([]*quote.Negotiation, error) {
	filter := persistence.NewFilter(opts...)
	var raw [][]byte
	if filter.ExternalID != "" {
		ids, err := sp.scan(childIndexPrefix(filter.ExternalID))
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			b, err := sp.read(quote.GenerateStorageKey(string(id)))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return nil, err
			}
			raw = append(raw, b)
		}
	} else {
		var err error
		raw, err = sp.scan(negotiationPrefix)
		if err != nil {
			return nil, err
		}
	}

	negotiations := make([]*quote.Negotiation, 0, len(raw))
	for _, b := range raw {
		n, err := quote.FromBytes(b)
		if err != nil {
			return nil, err
		}
		if !filter.Match(n) {
			continue
		}
		n.SetReadOnly()
		negotiations = append(negotiations, n)
	}
	logging.Extract(ctx).Debug("Queried negotiations", "matched", len(negotiations))
	return negotiations, nil
}

// SetState moves the negotiation to the new state if it is still in the expected one.
func (sp *StorageProvider) SetState(
	ctx context.Context, id string, from, to quote.State,
) (*quote.Negotiation, error) {
	return sp.mutate(ctx, id, func(n *quote.Negotiation) error {
		if n.GetState() != from {
			return quote.Conflict(id, fmt.Sprintf("state is %s, expected %s", n.GetState(), from))
		}
		return n.SetState(to)
	})
}

// AppendNote appends a note to the negotiation.
func (sp *StorageProvider) AppendNote(ctx context.Context, id string, note quote.Note) (*quote.Negotiation, error) {
	return sp.mutate(ctx, id, func(n *quote.Negotiation) error {
		n.AppendNote(note)
		return nil
	})
}

// SetScheduledDate sets one of the scheduling dates.
func (sp *StorageProvider) SetScheduledDate(
	ctx context.Context, id string, kind quote.DateKind, date time.Time,
) (*quote.Negotiation, error) {
	return sp.mutate(ctx, id, func(n *quote.Negotiation) error {
		n.SetDate(kind, date)
		return nil
	})
}

// StoreAttachment stores the file content and points the negotiation at it.
func (sp *StorageProvider) StoreAttachment(
	ctx context.Context, id string, file quote.File,
) (*quote.Negotiation, error) {
	if err := persistence.CheckFile(file); err != nil {
		return nil, err
	}
	return sp.mutate(ctx, id, func(n *quote.Negotiation) error {
		if err := sp.write(attachmentKey(id), file.Content); err != nil {
			return fmt.Errorf("could not store attachment: %w", err)
		}
		n.SetAttachment(persistence.NewAttachment(id, file))
		return nil
	})
}

// GetAttachment returns the attachment reference and its content.
func (sp *StorageProvider) GetAttachment(ctx context.Context, id string) (quote.Attachment, []byte, error) {
	n, err := sp.GetNegotiation(ctx, id)
	if err != nil {
		return quote.Attachment{}, nil, err
	}
	att := n.GetAttachment()
	if att == nil {
		return quote.Attachment{}, nil, fmt.Errorf("%w: %s has no attachment", quote.ErrNotFound, id)
	}
	b, err := sp.read(attachmentKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return quote.Attachment{}, nil, fmt.Errorf("%w: attachment content of %s", quote.ErrNotFound, id)
		}
		return quote.Attachment{}, nil, err
	}
	return *att, b, nil
}

// PutNegotiation saves a negotiation, replacing any stored version, and indexes tender children.
func (sp *StorageProvider) PutNegotiation(ctx context.Context, negotiation *quote.Negotiation) error {
	b, err := negotiation.ToBytes()
	if err != nil {
		return err
	}
	key := negotiation.StorageKey()
	err = sp.withLock(ctx, key, func() error {
		return sp.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(key, b); err != nil {
				return err
			}
			if negotiation.GetCategory() != quote.CategoryTender || negotiation.GetExternalID() == "" {
				return nil
			}
			return txn.Set(childIndexKey(negotiation.GetExternalID(), negotiation.GetID()), []byte(negotiation.GetID()))
		})
	})
	return sp.lockError(negotiation.GetID(), err)
}

// mutate runs fn on a locked, writable copy of the negotiation and saves the result if fn
// changed it.
func (sp *StorageProvider) mutate(
	ctx context.Context,
	id string,
	fn func(n *quote.Negotiation) error,
) (*quote.Negotiation, error) {
	key := quote.GenerateStorageKey(id)
	ctx, logger := logging.InjectLabels(ctx, "type", "negotiation", "key", string(key))
	var negotiation *quote.Negotiation
	err := sp.withLock(ctx, key, func() error {
		b, err := sp.read(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return quote.NotFound(id)
			}
			return err
		}
		n, err := quote.FromBytes(b)
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
		if n.Modified() {
			if b, err = n.ToBytes(); err != nil {
				return err
			}
			logger.Debug("Writing to store")
			if err := sp.write(key, b); err != nil {
				return fmt.Errorf("could not save negotiation %s: %w", id, err)
			}
		}
		negotiation = n
		return nil
	})
	if err != nil {
		return nil, sp.lockError(id, err)
	}
	negotiation.SetReadOnly()
	return negotiation, nil
}

// lockError turns a lock timeout into the conflicting update the callers expect.
func (sp *StorageProvider) lockError(id string, err error) error {
	if errors.Is(err, errLockTimeout) {
		return quote.Conflict(id, err.Error())
	}
	return err
}
