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

package quote

import (
	"bytes"
	"encoding/gob"
	"slices"
	"time"
)

// Record is the flat storage form of a negotiation, used by the storage backends.
type Record struct {
	ID               string
	Category         Category
	ExternalID       string
	State            State
	Description      string
	ProductID        string
	Parties          []RelatedParty
	Requested        time.Time
	Expected         time.Time
	FulfillmentStart time.Time
	FulfillmentEnd   time.Time
	Attachment       *Attachment
	Notes            []Note
	Created          time.Time
	Updated          time.Time
	Version          int64
}

// ToRecord converts the negotiation to its storage form.
func (n *Negotiation) ToRecord() Record {
	return Record{
		ID:               n.id,
		Category:         n.category,
		ExternalID:       n.externalID,
		State:            n.state,
		Description:      n.description,
		ProductID:        n.productID,
		Parties:          slices.Clone(n.parties),
		Requested:        n.requested,
		Expected:         n.expected,
		FulfillmentStart: n.fulfillmentStart,
		FulfillmentEnd:   n.fulfillmentEnd,
		Attachment:       n.GetAttachment(),
		Notes:            slices.Clone(n.notes),
		Created:          n.created,
		Updated:          n.updated,
		Version:          n.version,
	}
}

// FromRecord restores a negotiation from its storage form.
func FromRecord(r Record, ro bool) *Negotiation {
	var att *Attachment
	if r.Attachment != nil {
		a := *r.Attachment
		att = &a
	}
	return &Negotiation{
		id:               r.ID,
		category:         r.Category,
		externalID:       r.ExternalID,
		state:            r.State,
		description:      r.Description,
		productID:        r.ProductID,
		parties:          slices.Clone(r.Parties),
		requested:        r.Requested,
		expected:         r.Expected,
		fulfillmentStart: r.FulfillmentStart,
		fulfillmentEnd:   r.FulfillmentEnd,
		attachment:       att,
		notes:            slices.Clone(r.Notes),
		created:          r.Created,
		updated:          r.Updated,
		version:          r.Version,
		ro:               ro,
		modified:         false,
	}
}

// ToBytes encodes the negotiation with gob.
func (n *Negotiation) ToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(n.ToRecord()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromBytes decodes a gob encoded negotiation, the result is writable.
func FromBytes(b []byte) (*Negotiation, error) {
	var r Record
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return nil, err
	}
	return FromRecord(r, false), nil
}
