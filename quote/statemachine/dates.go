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

package statemachine

import (
	"context"
	"strings"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
)

const maxNoteLength = 4000

// SetScheduledDate sets one of the scheduling dates. The seller sets the expected completion date,
// the buyer the requested date while the request is pending and the tender window while the
// tender is a draft. Dates in the past are refused.
func (e *Engine) SetScheduledDate(
	ctx context.Context, id string, actor quote.Actor, kind quote.DateKind, date time.Time,
) (*quote.Negotiation, error) {
	if date.IsZero() {
		return nil, quote.Invalid("date", "date is empty")
	}
	n, err := e.gateway.GetNegotiation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkDate(n, actor, kind, date, e.now()); err != nil {
		return nil, err
	}
	ctx, logger := logging.InjectLabels(ctx, append(n.GetLogFields(""), "date_kind", kind)...)
	updated, err := e.gateway.SetScheduledDate(ctx, id, kind, date.UTC())
	if err != nil {
		return nil, err
	}
	logger.Info("Scheduled date set", "date", date.UTC())
	return updated, nil
}

func checkDate(n *quote.Negotiation, actor quote.Actor, kind quote.DateKind, date, now time.Time) error {
	if !isParty(n, actor) {
		return quote.Invalid("actor", "%s", strangerReason(n, actor))
	}
	if n.GetState().Terminal() {
		return quote.Invalid("state", "negotiation is already %s", n.GetState())
	}
	today := now.UTC().Truncate(24 * time.Hour)
	if date.UTC().Before(today) {
		return quote.Invalid("date", "%s is in the past", date.UTC().Format(time.DateOnly))
	}
	switch kind {
	case quote.DateExpected:
		if actor.Role != quote.RoleSeller {
			return quote.Invalid("role", "only the seller can set the expected date")
		}
		if n.GetCategory() == quote.CategoryCoordinator {
			return quote.Invalid("kind", "a tender has no expected date")
		}
	case quote.DateRequested:
		if actor.Role != quote.RoleBuyer {
			return quote.Invalid("role", "only the buyer can set the requested date")
		}
		if n.GetState() != quote.StatePending {
			return quote.Invalid("state", "the requested date can only change while pending")
		}
	case quote.DateFulfillmentStart, quote.DateFulfillmentEnd:
		if n.GetCategory() != quote.CategoryCoordinator {
			return quote.Invalid("kind", "only a tender has a %s date", kind)
		}
		if actor.Role != quote.RoleBuyer {
			return quote.Invalid("role", "only the tender owner can set the tender dates")
		}
		if n.GetState() != quote.StatePending {
			return quote.Invalid("state", "the tender dates can only change while it is a draft")
		}
		if other, ok := n.GetDate(counterpart(kind)); ok {
			if (kind == quote.DateFulfillmentEnd && date.Before(other)) ||
				(kind == quote.DateFulfillmentStart && date.After(other)) {
				return quote.Invalid("date", "the tender must start before it ends")
			}
		}
	default:
		return quote.Invalid("kind", "unknown date kind %q", kind)
	}
	return nil
}

func counterpart(kind quote.DateKind) quote.DateKind {
	if kind == quote.DateFulfillmentStart {
		return quote.DateFulfillmentEnd
	}
	return quote.DateFulfillmentStart
}

// AddNote appends a free text note written by a party of the negotiation. Notes are allowed in
// every state.
func (e *Engine) AddNote(ctx context.Context, id string, actor quote.Actor, text string) (*quote.Negotiation, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil, quote.Invalid("text", "note is empty")
	case len(text) > maxNoteLength:
		return nil, quote.Invalid("text", "note is longer than %d bytes", maxNoteLength)
	case actor.ID == "":
		return nil, quote.Invalid("author", "note has no author")
	}
	n, err := e.gateway.GetNegotiation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(n, actor) {
		return nil, quote.Invalid("actor", "%s", strangerReason(n, actor))
	}
	return e.gateway.AppendNote(ctx, id, quote.NewNote(actor.ID, text, e.now()))
}
