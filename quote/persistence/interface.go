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

// Package persistence contains the storage interfaces for negotiations. It also contains the
// query options shared by the implementation packages.
package persistence

import (
	"context"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
)

// StorageProvider is an interface that combines the gateway with the administrative interfaces.
type StorageProvider interface {
	Gateway
	AttachmentReader
	Importer
	Close() error
}

// Gateway is the boundary through which the engine reads and writes negotiations.
//
// Every mutating call is applied to one record atomically. Implementations serialize concurrent
// writers to the same id, either with a per-id lock or with a compare-and-set on the stored
// state, and return quote.ErrConflictingUpdate when they cannot. Writers to different ids must
// not block each other.
//
// All returned negotiations are read-only.
type Gateway interface {
	// GetNegotiation returns a negotiation or quote.ErrNotFound.
	GetNegotiation(ctx context.Context, id string) (*quote.Negotiation, error)
	// QueryNegotiations returns every negotiation matching all the given options.
	QueryNegotiations(ctx context.Context, opts ...QueryOption) ([]*quote.Negotiation, error)
	// SetState moves a negotiation from the expected state to the new one. If the stored state
	// is no longer `from`, it returns quote.ErrConflictingUpdate.
	SetState(ctx context.Context, id string, from, to quote.State) (*quote.Negotiation, error)
	// AppendNote appends a note to the trail.
	AppendNote(ctx context.Context, id string, note quote.Note) (*quote.Negotiation, error)
	// SetScheduledDate sets one of the scheduling dates.
	SetScheduledDate(ctx context.Context, id string, kind quote.DateKind, date time.Time) (*quote.Negotiation, error)
	// StoreAttachment stores the file, replacing any previous attachment.
	StoreAttachment(ctx context.Context, id string, file quote.File) (*quote.Negotiation, error)
}

// AttachmentReader returns stored attachment content.
type AttachmentReader interface {
	GetAttachment(ctx context.Context, id string) (quote.Attachment, []byte, error)
}

// Importer stores negotiations created by an origination flow.
type Importer interface {
	// PutNegotiation inserts or fully replaces a negotiation.
	PutNegotiation(ctx context.Context, negotiation *quote.Negotiation) error
}
