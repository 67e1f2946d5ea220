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

// Package quote contains the negotiation entity shared by the engine and the storage backends.
package quote

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// IDPrefix is prepended to generated negotiation ids.
const IDPrefix = "urn:ngsi-ld:quote:"

var validTransitions = map[State][]State{
	StatePending: {
		StateInProgress,
		StateCancelled,
	},
	StateInProgress: {
		StateApproved,
		StateCancelled,
	},
	StateApproved: {
		StateAccepted,
		StateRejected,
		StateCancelled,
	},
	StateAccepted:  {},
	StateRejected:  {},
	StateCancelled: {},
}

// CanTransition reports if the lifecycle graph has an edge from one state to the other.
func CanTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}

// RelatedParty is a party taking part in a negotiation.
type RelatedParty struct {
	Role PartyRole
	ID   string
	Name string
}

// Note is one entry of the append-only audit/chat trail.
type Note struct {
	ID       string
	AuthorID string
	Text     string
	Date     time.Time
}

// NewNote creates a note with a fresh id.
func NewNote(authorID, text string, date time.Time) Note {
	return Note{
		ID:       uuid.NewString(),
		AuthorID: authorID,
		Text:     text,
		Date:     date.UTC(),
	}
}

// Attachment is the reference to the authoritative document of a negotiation.
type Attachment struct {
	Name       string
	MIMEType   string
	Size       int64
	Ref        string
	UploadedAt time.Time
}

// File is an uploaded document before it is stored.
type File struct {
	Name     string
	MIMEType string
	Content  []byte
}

// Negotiation represents a quote negotiation.
type Negotiation struct {
	id          string
	category    Category
	externalID  string
	state       State
	description string
	productID   string
	parties     []RelatedParty

	requested        time.Time
	expected         time.Time
	fulfillmentStart time.Time
	fulfillmentEnd   time.Time

	attachment *Attachment
	notes      []Note

	created time.Time
	updated time.Time
	version int64

	ro       bool
	modified bool
}

// Option configures a new negotiation.
type Option func(*Negotiation)

// WithState sets the initial state, the default is pending.
func WithState(s State) Option { return func(n *Negotiation) { n.state = s } }

// WithExternalID links a tender child to its coordinator.
func WithExternalID(id string) Option { return func(n *Negotiation) { n.externalID = id } }

// WithDescription sets the free text request description.
func WithDescription(d string) Option { return func(n *Negotiation) { n.description = d } }

// WithProduct sets the product offering the negotiation is about.
func WithProduct(id string) Option { return func(n *Negotiation) { n.productID = id } }

// WithDate sets one of the scheduling dates.
func WithDate(kind DateKind, t time.Time) Option {
	return func(n *Negotiation) { n.setDate(kind, t) }
}

// WithAttachment sets an existing attachment reference.
func WithAttachment(a Attachment) Option { return func(n *Negotiation) { n.attachment = &a } }

// WithNotes sets the existing notes.
func WithNotes(notes ...Note) Option {
	return func(n *Negotiation) { n.notes = append(n.notes, notes...) }
}

// New creates a negotiation. An empty id gets a generated one.
func New(id string, category Category, parties []RelatedParty, opts ...Option) *Negotiation {
	if id == "" {
		id = IDPrefix + uuid.NewString()
	}
	now := time.Now().UTC()
	n := &Negotiation{
		id:       id,
		category: category,
		state:    StatePending,
		parties:  slices.Clone(parties),
		created:  now,
		updated:  now,
		modified: true,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Negotiation getters.
func (n *Negotiation) GetID() string                     { return n.id }
func (n *Negotiation) GetCategory() Category             { return n.category }
func (n *Negotiation) GetExternalID() string             { return n.externalID }
func (n *Negotiation) GetState() State                   { return n.state }
func (n *Negotiation) GetDescription() string            { return n.description }
func (n *Negotiation) GetProductID() string              { return n.productID }
func (n *Negotiation) GetRelatedParties() []RelatedParty { return slices.Clone(n.parties) }
func (n *Negotiation) GetNotes() []Note                  { return slices.Clone(n.notes) }
func (n *Negotiation) GetCreated() time.Time             { return n.created }
func (n *Negotiation) GetUpdated() time.Time             { return n.updated }
func (n *Negotiation) GetVersion() int64                 { return n.version }

// GetAttachment returns the attachment reference, nil if none was uploaded.
func (n *Negotiation) GetAttachment() *Attachment {
	if n.attachment == nil {
		return nil
	}
	a := *n.attachment
	return &a
}

// GetDate returns a scheduling date and whether it is set.
func (n *Negotiation) GetDate(kind DateKind) (time.Time, bool) {
	var t time.Time
	switch kind {
	case DateRequested:
		t = n.requested
	case DateExpected:
		t = n.expected
	case DateFulfillmentStart:
		t = n.fulfillmentStart
	case DateFulfillmentEnd:
		t = n.fulfillmentEnd
	}
	return t, !t.IsZero()
}

// PartyID returns the id of the first party with the given role.
func (n *Negotiation) PartyID(role PartyRole) string {
	for _, p := range n.parties {
		if p.Role == role {
			return p.ID
		}
	}
	return ""
}

// BuyerID returns the id of the buying party.
func (n *Negotiation) BuyerID() string { return n.PartyID(PartyBuyer) }

// SellerID returns the id of the selling party.
func (n *Negotiation) SellerID() string { return n.PartyID(PartySeller) }

// GetLogFields will return relevant log fields for the negotiation.
// The suffix argument will append a suffix to the keys.
func (n *Negotiation) GetLogFields(suffix string) []any {
	return []any{
		"negotiation_id" + suffix, n.id,
		"category" + suffix, n.category.String(),
		"state" + suffix, n.state.String(),
		"external_id" + suffix, n.externalID,
	}
}

// Negotiation setters, these will panic when the negotiation is RO.

// SetState moves the negotiation along the lifecycle graph. Role and category rules are
// enforced by the engine, this only refuses edges that don't exist.
func (n *Negotiation) SetState(state State) error {
	n.panicRO()
	if !CanTransition(n.state, state) {
		return fmt.Errorf("%w: can't transition from %s to %s", ErrInvalidTransition, n.state, state)
	}
	n.state = state
	n.modify()
	return nil
}

// AppendNote adds a note to the trail.
func (n *Negotiation) AppendNote(note Note) {
	n.panicRO()
	n.notes = append(n.notes, note)
	n.modify()
}

// SetDate sets one of the scheduling dates.
func (n *Negotiation) SetDate(kind DateKind, t time.Time) {
	n.panicRO()
	n.setDate(kind, t)
	n.modify()
}

// SetAttachment replaces the attachment reference.
func (n *Negotiation) SetAttachment(a Attachment) {
	n.panicRO()
	n.attachment = &a
	n.modify()
}

// SetVersion is used by storage backends that version records.
func (n *Negotiation) SetVersion(v int64) { n.version = v }

// Properties that decisions are based on.
func (n *Negotiation) ReadOnly() bool     { return n.ro }
func (n *Negotiation) Modified() bool     { return n.modified }
func (n *Negotiation) SetReadOnly()       { n.ro = true }
func (n *Negotiation) StorageKey() []byte { return GenerateStorageKey(n.id) }

// GenerateStorageKey generates the key-value store key of a negotiation.
func GenerateStorageKey(id string) []byte {
	return []byte("negotiation-" + id)
}

func (n *Negotiation) setDate(kind DateKind, t time.Time) {
	if !t.IsZero() {
		t = t.UTC()
	}
	switch kind {
	case DateRequested:
		n.requested = t
	case DateExpected:
		n.expected = t
	case DateFulfillmentStart:
		n.fulfillmentStart = t
	case DateFulfillmentEnd:
		n.fulfillmentEnd = t
	}
}

func (n *Negotiation) panicRO() {
	if n.ro {
		panic("Trying to write to a read-only negotiation, this is certainly a bug.")
	}
}

func (n *Negotiation) modify() {
	n.modified = true
	n.updated = time.Now().UTC()
}
