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

package statemachine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetScheduledDate(t *testing.T) {
	t.Parallel()

	future := now.AddDate(0, 0, 14)
	tests := []struct {
		name   string
		n      *quote.Negotiation
		actor  quote.Actor
		kind   quote.DateKind
		date   time.Time
		reason string
	}{
		{"seller sets expected", tailored("q1", quote.StateInProgress), seller, quote.DateExpected, future, ""},
		{"expected later today", tailored("q1", quote.StatePending), seller, quote.DateExpected, now.Add(time.Hour), ""},
		{"buyer sets expected", tailored("q1", quote.StatePending), buyer, quote.DateExpected, future, "only the seller"},
		{"expected in the past", tailored("q1", quote.StatePending), seller, quote.DateExpected, now.AddDate(0, 0, -2), "in the past"},
		{"buyer sets requested", tailored("q1", quote.StatePending), buyer, quote.DateRequested, future, ""},
		{"requested after pending", tailored("q1", quote.StateInProgress), buyer, quote.DateRequested, future, "while pending"},
		{"terminal", tailored("q1", quote.StateAccepted), seller, quote.DateExpected, future, "already accepted"},
		{"tender window", coordinator(quote.StatePending), buyer, quote.DateFulfillmentEnd, future, ""},
		{"tender window after launch", coordinator(quote.StateApproved), buyer, quote.DateFulfillmentEnd, future, "draft"},
		{"window on tailored", tailored("q1", quote.StatePending), buyer, quote.DateFulfillmentStart, future, "only a tender"},
		{"zero date", tailored("q1", quote.StatePending), seller, quote.DateExpected, time.Time{}, "empty"},
		{"stranger sets expected", tailored("q1", quote.StatePending),
			quote.Actor{ID: "did:elsi:VATES-S9999", Role: quote.RoleSeller}, quote.DateExpected, future, "not the seller"},
		{"stranger sets tender window", coordinator(quote.StatePending),
			quote.Actor{ID: "did:elsi:VATES-B9999", Role: quote.RoleBuyer}, quote.DateFulfillmentEnd, future, "only the tender owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := newStore(t)
			put(t, store, tt.n)
			got, err := newEngine(store).SetScheduledDate(ctx, tt.n.GetID(), tt.actor, tt.kind, tt.date)
			if tt.reason != "" {
				require.ErrorIs(t, err, quote.ErrValidation)
				assert.ErrorContains(t, err, tt.reason)
				stored, err := store.GetNegotiation(ctx, tt.n.GetID())
				require.NoError(t, err)
				_, ok := stored.GetDate(tt.kind)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			date, ok := got.GetDate(tt.kind)
			require.True(t, ok)
			assert.True(t, date.Equal(tt.date))
		})
	}
}

func TestTenderWindowOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	put(t, store, coordinator(quote.StatePending))
	engine := newEngine(store)

	_, err := engine.SetScheduledDate(ctx, coordID, buyer, quote.DateFulfillmentStart, now.AddDate(0, 0, 10))
	require.NoError(t, err)
	_, err = engine.SetScheduledDate(ctx, coordID, buyer, quote.DateFulfillmentEnd, now.AddDate(0, 0, 5))
	assert.ErrorContains(t, err, "must start before it ends")
	_, err = engine.SetScheduledDate(ctx, coordID, buyer, quote.DateFulfillmentEnd, now.AddDate(0, 0, 20))
	assert.NoError(t, err)
}

func TestAddNote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	put(t, store, tailored("q1", quote.StateCancelled))
	engine := newEngine(store)

	n, err := engine.AddNote(ctx, "q1", buyer, "  why was this cancelled?  ")
	require.NoError(t, err)
	notes := n.GetNotes()
	require.Len(t, notes, 1)
	assert.Equal(t, "why was this cancelled?", notes[0].Text)
	assert.Equal(t, buyerID, notes[0].AuthorID)
	assert.True(t, notes[0].Date.Equal(now))

	_, err = engine.AddNote(ctx, "q1", buyer, "")
	assert.ErrorIs(t, err, quote.ErrValidation)
	_, err = engine.AddNote(ctx, "q1", buyer, strings.Repeat("x", 4001))
	assert.ErrorIs(t, err, quote.ErrValidation)
	_, err = engine.AddNote(ctx, "q1", quote.Actor{Role: quote.RoleBuyer}, "anonymous")
	assert.ErrorIs(t, err, quote.ErrValidation)
	_, err = engine.AddNote(ctx, "q1", quote.Actor{ID: "did:elsi:VATES-B9999", Role: quote.RoleBuyer}, "hello")
	assert.ErrorIs(t, err, quote.ErrValidation)
	_, err = engine.AddNote(ctx, "missing", buyer, "hello")
	assert.ErrorIs(t, err, quote.ErrNotFound)
}
