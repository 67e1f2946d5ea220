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

// Package details builds the enriched read views of negotiations.
package details

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/directory"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/luigi-borriello-dev/dome-quotes/quote/registry"
	"github.com/luigi-borriello-dev/dome-quotes/quote/shared"
)

const vatPrefix = "did:elsi:"

// Enricher resolves display names and coordinator data. Lookups are best effort, a failing
// lookup falls back to the raw id.
type Enricher struct {
	gateway   persistence.Gateway
	directory directory.Directory
}

func New(gateway persistence.Gateway, dir directory.Directory) *Enricher {
	return &Enricher{gateway: gateway, directory: dir}
}

// Details returns the enriched view. If role is set the view carries that role's explanation
// and label.
func (e *Enricher) Details(ctx context.Context, n *quote.Negotiation, role quote.Role) shared.Negotiation {
	ctx, _ = logging.InjectLabels(ctx, n.GetLogFields("")...)
	doc := shared.Negotiation{
		ID:          n.GetID(),
		Category:    n.GetCategory().String(),
		State:       n.GetState().String(),
		Label:       n.GetState().String(),
		ExternalID:  n.GetExternalID(),
		Description: n.GetDescription(),
		Product:     e.product(ctx, n.GetProductID()),
		Dates:       Dates(n),
		Notes:       notes(n.GetNotes()),
		Attachment:  attachment(n.GetAttachment()),
		Created:     n.GetCreated(),
		Updated:     n.GetUpdated(),
		Version:     n.GetVersion(),
	}
	for _, p := range n.GetRelatedParties() {
		doc.Parties = append(doc.Parties, shared.Party{
			Role:  string(p.Role),
			ID:    p.ID,
			Name:  e.partyName(ctx, p.ID),
			VATID: StripVATPrefix(p.Name),
		})
	}
	if role != "" {
		info := registry.Explain(n.GetCategory(), n.GetState(), role)
		doc.Status = &info
		doc.Label = registry.Label(n.GetCategory(), n.GetState(), role)
	}
	if n.GetCategory() == quote.CategoryTender {
		doc.Tender = e.tender(ctx, n.GetExternalID())
	}
	return doc
}

func (e *Enricher) partyName(ctx context.Context, id string) string {
	if !strings.HasPrefix(id, directory.OrganizationPrefix) || e.directory == nil {
		return id
	}
	name, err := e.directory.OrganizationName(ctx, id)
	if err != nil {
		if !errors.Is(err, directory.ErrUnknown) {
			logging.Extract(ctx).Warn("Could not resolve organization name", "party_id", id, "err", err)
		}
		return id
	}
	return name
}

func (e *Enricher) product(ctx context.Context, id string) shared.Product {
	p := shared.Product{ID: id, Name: id}
	if id == "" || e.directory == nil {
		return p
	}
	name, err := e.directory.ProductName(ctx, id)
	if err != nil {
		if !errors.Is(err, directory.ErrUnknown) {
			logging.Extract(ctx).Warn("Could not resolve product name", "product_id", id, "err", err)
		}
		return p
	}
	p.Name = name
	return p
}

func (e *Enricher) tender(ctx context.Context, coordinatorID string) *shared.Tender {
	if coordinatorID == "" {
		return nil
	}
	coord, err := e.gateway.GetNegotiation(ctx, coordinatorID)
	if err != nil {
		if !errors.Is(err, quote.ErrNotFound) {
			logging.Extract(ctx).Warn("Could not load tender", "err", err)
		}
		return nil
	}
	t := &shared.Tender{
		ID:    coord.GetID(),
		State: coord.GetState().String(),
		Dates: Dates(coord),
	}
	if a := coord.GetAttachment(); a != nil {
		t.AttachmentName = a.Name
	}
	return t
}

// Summary returns the list view.
func Summary(n *quote.Negotiation) shared.Summary {
	return shared.Summary{
		ID:         n.GetID(),
		Category:   n.GetCategory().String(),
		State:      n.GetState().String(),
		ExternalID: n.GetExternalID(),
		BuyerID:    n.BuyerID(),
		SellerID:   n.SellerID(),
		Updated:    n.GetUpdated(),
	}
}

// Dates returns the dates that are set.
func Dates(n *quote.Negotiation) shared.Dates {
	get := func(kind quote.DateKind) *time.Time {
		if t, ok := n.GetDate(kind); ok {
			return &t
		}
		return nil
	}
	return shared.Dates{
		Requested:        get(quote.DateRequested),
		Expected:         get(quote.DateExpected),
		FulfillmentStart: get(quote.DateFulfillmentStart),
		FulfillmentEnd:   get(quote.DateFulfillmentEnd),
	}
}

// StripVATPrefix removes the did:elsi: prefix of a VAT identifier.
func StripVATPrefix(s string) string {
	return strings.TrimPrefix(s, vatPrefix)
}

func notes(in []quote.Note) []shared.Note {
	out := make([]shared.Note, 0, len(in))
	for _, n := range in {
		out = append(out, shared.Note{ID: n.ID, AuthorID: n.AuthorID, Text: n.Text, Date: n.Date})
	}
	return out
}

func attachment(a *quote.Attachment) *shared.Attachment {
	if a == nil {
		return nil
	}
	return &shared.Attachment{Name: a.Name, MIMEType: a.MIMEType, Size: a.Size, UploadedAt: a.UploadedAt}
}
