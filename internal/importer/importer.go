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

// Package importer loads negotiations from JSON fixtures into the store. It stands in for the
// origination flows that create negotiations in a deployment.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/luigi-borriello-dev/dome-quotes/quote/shared"
)

// File is the fixture document.
type File struct {
	Negotiations []Fixture `json:"negotiations" validate:"required,dive"`
}

// Fixture is one negotiation to import.
type Fixture struct {
	ID          string         `json:"id"`
	Category    string         `json:"category" validate:"quote_category"`
	State       string         `json:"state" validate:"omitempty,quote_state"`
	ExternalID  string         `json:"externalId" validate:"required_if=Category tender"`
	Description string         `json:"description"`
	ProductID   string         `json:"productId"`
	Parties     []FixtureParty `json:"relatedParty" validate:"min=1,dive"`
	Dates       FixtureDates   `json:"dates"`
	Notes       []FixtureNote  `json:"notes" validate:"dive"`
}

// FixtureParty is a related party of a fixture.
type FixtureParty struct {
	Role string `json:"role" validate:"oneof=buyer buyerOperator seller sellerOperator"`
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
}

// FixtureDates are the scheduling dates of a fixture.
type FixtureDates struct {
	Requested        *time.Time `json:"requested"`
	Expected         *time.Time `json:"expected"`
	FulfillmentStart *time.Time `json:"fulfillmentStart"`
	FulfillmentEnd   *time.Time `json:"fulfillmentEnd"`
}

// FixtureNote is a note already on the trail.
type FixtureNote struct {
	AuthorID string    `json:"authorId" validate:"required"`
	Text     string    `json:"text" validate:"required,max=4000"`
	Date     time.Time `json:"date" validate:"required"`
}

// Store is what the loader needs from a storage backend.
type Store interface {
	persistence.Importer
	GetNegotiation(ctx context.Context, id string) (*quote.Negotiation, error)
}

// Report counts what a load did.
type Report struct {
	Imported int
	Skipped  int
}

// Loader imports fixtures.
type Loader struct {
	store        Store
	skipExisting bool
}

// New returns a loader. With skipExisting set, fixtures whose id is already stored are left alone,
// otherwise they replace the stored negotiation.
func New(store Store, skipExisting bool) *Loader {
	return &Loader{store: store, skipExisting: skipExisting}
}

// Load validates the whole document, then stores its negotiations in order. Nothing is stored if
// the document is invalid.
func (l *Loader) Load(ctx context.Context, r io.Reader) (Report, error) {
	var report Report
	b, err := io.ReadAll(r)
	if err != nil {
		return report, fmt.Errorf("could not read fixtures: %w", err)
	}
	doc, err := shared.UnmarshalAndValidate[File](ctx, b)
	if err != nil {
		return report, err
	}

	negotiations := make([]*quote.Negotiation, 0, len(doc.Negotiations))
	for i, f := range doc.Negotiations {
		n, err := f.toNegotiation()
		if err != nil {
			return report, fmt.Errorf("negotiation %d: %w", i, err)
		}
		negotiations = append(negotiations, n)
	}

	logger := logging.Extract(ctx)
	for _, n := range negotiations {
		if l.skipExisting {
			_, err := l.store.GetNegotiation(ctx, n.GetID())
			switch {
			case err == nil:
				logger.Debug("Skipping stored negotiation", "id", n.GetID())
				report.Skipped++
				continue
			case !errors.Is(err, quote.ErrNotFound):
				return report, err
			}
		}
		if err := l.store.PutNegotiation(ctx, n); err != nil {
			return report, fmt.Errorf("could not store %s: %w", n.GetID(), err)
		}
		logger.Info("Imported negotiation", n.GetLogFields("")...)
		report.Imported++
	}
	return report, nil
}

func (f Fixture) toNegotiation() (*quote.Negotiation, error) {
	category, err := quote.ParseCategory(f.Category)
	if err != nil {
		return nil, quote.Invalid("category", "%s", err)
	}
	parties := make([]quote.RelatedParty, 0, len(f.Parties))
	hasBuyer := false
	for _, p := range f.Parties {
		role, err := quote.ParsePartyRole(p.Role)
		if err != nil {
			return nil, quote.Invalid("relatedParty", "%s", err)
		}
		hasBuyer = hasBuyer || role == quote.PartyBuyer
		parties = append(parties, quote.RelatedParty{Role: role, ID: p.ID, Name: p.Name})
	}
	if !hasBuyer {
		return nil, quote.Invalid("relatedParty", "a buyer is required")
	}

	opts := []quote.Option{
		quote.WithExternalID(f.ExternalID),
		quote.WithDescription(f.Description),
		quote.WithProduct(f.ProductID),
	}
	if f.State != "" {
		state, err := quote.ParseState(f.State)
		if err != nil {
			return nil, quote.Invalid("state", "%s", err)
		}
		opts = append(opts, quote.WithState(state))
	}
	for kind, d := range map[quote.DateKind]*time.Time{
		quote.DateRequested:        f.Dates.Requested,
		quote.DateExpected:         f.Dates.Expected,
		quote.DateFulfillmentStart: f.Dates.FulfillmentStart,
		quote.DateFulfillmentEnd:   f.Dates.FulfillmentEnd,
	} {
		if d != nil {
			opts = append(opts, quote.WithDate(kind, *d))
		}
	}
	for _, note := range f.Notes {
		opts = append(opts, quote.WithNotes(quote.NewNote(note.AuthorID, note.Text, note.Date)))
	}
	return quote.New(f.ID, category, parties, opts...), nil
}
