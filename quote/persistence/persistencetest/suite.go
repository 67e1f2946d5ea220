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

// Package persistencetest contains the behaviour every storage backend has to show, run from the
// backend test packages.
package persistencetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty storage provider, closing it is up to the factory.
type Factory func(t *testing.T) persistence.StorageProvider

// Parties returns a buyer/seller pair for tests.
func Parties(buyer, seller string) []quote.RelatedParty {
	return []quote.RelatedParty{
		{Role: quote.PartyBuyer, ID: buyer, Name: "Buyer"},
		{Role: quote.PartySeller, ID: seller, Name: "Seller"},
	}
}

// Run runs the whole suite.
func Run(t *testing.T, factory Factory) {
	t.Helper()
	tests := map[string]func(*testing.T, persistence.StorageProvider){
		"GetMissing":              testGetMissing,
		"PutAndGet":               testPutAndGet,
		"PutReplaces":             testPutReplaces,
		"SetState":                testSetState,
		"SetStateConflict":        testSetStateConflict,
		"SetStateMissing":         testSetStateMissing,
		"AppendNoteKeepsOrder":    testAppendNote,
		"AppendNoteMissing":       testAppendNoteMissing,
		"SetScheduledDate":        testSetScheduledDate,
		"StoreAttachmentReplaces": testStoreAttachment,
		"StoreAttachmentInvalid":  testStoreAttachmentInvalid,
		"Query":                   testQuery,
		"ConcurrentSetState":      testConcurrentSetState,
		"ConcurrentNotesNotLost":  testConcurrentNotes,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func put(t *testing.T, sp persistence.StorageProvider, n *quote.Negotiation) {
	t.Helper()
	require.NoError(t, sp.PutNegotiation(context.Background(), n))
}

func testGetMissing(t *testing.T, sp persistence.StorageProvider) {
	_, err := sp.GetNegotiation(context.Background(), "nope")
	assert.ErrorIs(t, err, quote.ErrNotFound)
	_, _, err = sp.GetAttachment(context.Background(), "nope")
	assert.ErrorIs(t, err, quote.ErrNotFound)
}

func testPutAndGet(t *testing.T, sp persistence.StorageProvider) {
	ctx := context.Background()
	start := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	n := quote.New("q1", quote.CategoryTailored, Parties("b1", "s1"),
		quote.WithDescription("need a tailored plan"),
		quote.WithProduct("urn:ngsi-ld:product-offering:p1"),
		quote.WithDate(quote.DateFulfillmentStart, start),
		quote.WithNotes(quote.NewNote("b1", "hello", time.Now())),
	)
	put(t, sp, n)

	got, err := sp.GetNegotiation(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, got.ReadOnly())
	assert.Equal(t, quote.CategoryTailored, got.GetCategory())
	assert.Equal(t, quote.StatePending, got.GetState())
	assert.Equal(t, "need a tailored plan", got.GetDescription())
	assert.Equal(t, "urn:ngsi-ld:product-offering:p1", got.GetProductID())
	assert.Equal(t, "b1", got.BuyerID())
	assert.Equal(t, "s1", got.SellerID())
	require.Len(t, got.GetNotes(), 1)
	assert.Equal(t, "hello", got.GetNotes()[0].Text)
	d, ok := got.GetDate(quote.DateFulfillmentStart)
	require.True(t, ok)
	assert.True(t, start.Equal(d))
	_, ok = got.GetDate(quote.DateExpected)
	assert.False(t, ok)
}

func testPutReplaces(t *testing.T, sp persistence.StorageProvider) {
	ctx := context.Background()
	put(t, sp, quote.New("q1", quote.CategoryTailored, Parties("b1", "s1")))
	put(t, sp, quote.New("q1", quote.CategoryTailored, Parties("b1", "s1"),
		quote.WithState(quote.StateApproved)))
	got, err := sp.GetNegotiation(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, quote.StateApproved, got.GetState())
}

func testSetState(t *testing.T, sp persistence.StorageProvider) {
	ctx := context.Background()
	put(t, sp, quote.New("q1", quote.CategoryTailored, Parties("b1", "s1")))

	n, err := sp.SetState(ctx, "q1", quote.StatePending, quote.StateInProgress)
	require.NoError(t, err)
	assert.Equal(t, quote.StateInProgress, n.GetState())

	got, err := sp.GetNegotiation(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, quote.StateInProgress, got.GetState())

	_, err = sp.SetState(ctx, "q1", quote.StateInProgress, quote.StatePending)
	assert.ErrorIs(t, err, quote.ErrInvalidTransition)
}

func testSetStateConflict(t *testing.T, sp persistence.StorageProvider) {
	ctx := context.Background()
	put(t, sp, quote.New("q1", quote.CategoryTailored, Parties("b1", "s1"),
		quote.WithState(quote.StateApproved)))

	_, err := sp.SetState(ctx, "q1", quote.StateInProgress, quote.StateApproved)
	assert.ErrorIs(t, err, quote.ErrConflictingUpdate)

	got, err := sp.GetNegotiation(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, quote.StateApproved, got.GetState())
}

func testSetStateMissing(t *testing.T, sp persistence.StorageProvider) {
	_, err := sp.SetState(context.Background(), "nope", quote.StatePending, quote.StateInProgress)
	assert.ErrorIs(t, err, quote.ErrNotFound)
}

func testAppendNote(t *testing.T, sp persistence.StorageProvider) {
	ctx := context.Background()
	put(t, sp, quote.New("q1", quote.CategoryTailored, Parties("b1", "s1")))

	for i := range 3 {
		_, err := sp.AppendNote(ctx, "q1", quote.NewNote("b1", fmt.Sprintf("note %d", i), time.Now()))
		require.NoError(t, err)
	}
	got, err := sp.GetNegotiation(ctx, "q1")
	require.NoError(t, err)
	notes := got.GetNotes()
	require.Len(t, notes, 3)
	for i, note := range notes {
		assert.Equal(t, fmt.Sprintf("note %d", i), note.Text)
		assert.Equal(t, "b1", note.AuthorID)
		assert.NotEmpty(t, note.ID)
	}
}

func testAppendNoteMissing(t *testing.T, sp persistence.StorageProvider) {
	_, err := sp.AppendNote(context.Background(), "nope", quote.NewNote("b1", "x", time.Now()))
	assert.ErrorIs(t, err, quote.ErrNotFound)
}

func testSetScheduledDate(t *testing.T, sp persistence.StorageProvider) {
	ctx := context.Background()
	put(t, sp, quote.New("q1", quote.CategoryTailored, Parties("b1", "s1")))
	date := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)

	n, err := sp.SetScheduledDate(ctx, "q1", quote.DateExpected, date)
	require.NoError(t, err)
	d, ok := n.GetDate(quote.DateExpected)
	require.True(t, ok)
	assert.True(t, date.Equal(d))

	got, err := sp.GetNegotiation(ctx, "q1")
	require.NoError(t, err)
	d, ok = got.GetDate(quote.DateExpected)
	require.True(t, ok)
	assert.True(t, date.Equal(d))

	_, err = sp.SetScheduledDate(ctx, "nope", quote.DateExpected, date)
	assert.ErrorIs(t, err, quote.ErrNotFound)
}

func testStoreAttachment(t *testing.T, sp persistence.StorageProvider) {
	ctx := context.Background()
	put(t, sp, quote.New("q1", quote.CategoryTailored, Parties("b1", "s1")))

	_, err := sp.StoreAttachment(ctx, "q1", quote.File{
		Name: "first.pdf", MIMEType: "application/pdf", Content: []byte("%PDF-1 first"),
	})
	require.NoError(t, err)
	n, err := sp.StoreAttachment(ctx, "q1", quote.File{
		Name: "second.pdf", MIMEType: "application/pdf", Content: []byte("%PDF-1 second"),
	})
	require.NoError(t, err)
	require.NotNil(t, n.GetAttachment())
	assert.Equal(t, "second.pdf", n.GetAttachment().Name)

	att, content, err := sp.GetAttachment(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "second.pdf", att.Name)
	assert.Equal(t, "application/pdf", att.MIMEType)
	assert.Equal(t, int64(len("%PDF-1 second")), att.Size)
	assert.Equal(t, []byte("%PDF-1 second"), content)

	_, err = sp.StoreAttachment(ctx, "nope", quote.File{Name: "x.pdf", Content: []byte("x")})
	assert.ErrorIs(t, err, quote.ErrNotFound)
}

func testStoreAttachmentInvalid(t *testing.T, sp persistence.StorageProvider) {
	ctx := context.Background()
	put(t, sp, quote.New("q1", quote.CategoryTailored, Parties("b1", "s1")))
	_, err := sp.StoreAttachment(ctx, "q1", quote.File{Name: "", Content: []byte("x")})
	assert.ErrorIs(t, err, quote.ErrValidation)
	_, err = sp.StoreAttachment(ctx, "q1", quote.File{Name: "x.pdf"})
	assert.ErrorIs(t, err, quote.ErrValidation)

	got, err := sp.GetNegotiation(ctx, "q1")
	require.NoError(t, err)
	assert.Nil(t, got.GetAttachment())
}

func testQuery(t *testing.T, sp persistence.StorageProvider) {
	ctx := context.Background()
	put(t, sp, quote.New("coord", quote.CategoryCoordinator,
		[]quote.RelatedParty{{Role: quote.PartyBuyer, ID: "b1"}}))
	put(t, sp, quote.New("c1", quote.CategoryTender, Parties("b1", "s1"), quote.WithExternalID("coord")))
	put(t, sp, quote.New("c2", quote.CategoryTender, Parties("b1", "s2"), quote.WithExternalID("coord"),
		quote.WithState(quote.StateInProgress)))
	put(t, sp, quote.New("c3", quote.CategoryTender, Parties("b2", "s3"), quote.WithExternalID("coord")))
	put(t, sp, quote.New("other", quote.CategoryTender, Parties("b1", "s1"), quote.WithExternalID("coord-2")))
	put(t, sp, quote.New("t1", quote.CategoryTailored, Parties("b1", "s1")))

	ids := func(opts ...persistence.QueryOption) []string {
		t.Helper()
		ns, err := sp.QueryNegotiations(ctx, opts...)
		require.NoError(t, err)
		out := make([]string, 0, len(ns))
		for _, n := range ns {
			assert.True(t, n.ReadOnly())
			out = append(out, n.GetID())
		}
		return out
	}

	assert.ElementsMatch(t, []string{"c1", "c2"}, ids(persistence.ChildrenOf("coord", "b1")...))
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, ids(
		persistence.WithCategory(quote.CategoryTender), persistence.WithExternalID("coord")))
	assert.ElementsMatch(t, []string{"c2"}, ids(
		persistence.WithExternalID("coord"), persistence.WithState(quote.StateInProgress)))
	assert.ElementsMatch(t, []string{"t1"}, ids(persistence.WithCategory(quote.CategoryTailored)))
	assert.ElementsMatch(t, []string{"coord", "c1", "c2", "other", "t1"}, ids(persistence.WithBuyerID("b1")))
	assert.Len(t, ids(), 6)
	assert.Empty(t, ids(persistence.ChildrenOf("coord", "b9")...))
	assert.Empty(t, ids(persistence.WithExternalID("missing")))
}

func testConcurrentSetState(t *testing.T, sp persistence.StorageProvider) {
	ctx := context.Background()
	put(t, sp, quote.New("q1", quote.CategoryTailored, Parties("b1", "s1")))

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = sp.SetState(ctx, "q1", quote.StatePending, quote.StateInProgress)
		}()
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.True(t, errors.Is(err, quote.ErrConflictingUpdate), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, won)
}

func testConcurrentNotes(t *testing.T, sp persistence.StorageProvider) {
	ctx := context.Background()
	put(t, sp, quote.New("q1", quote.CategoryTailored, Parties("b1", "s1")))
	put(t, sp, quote.New("q2", quote.CategoryTailored, Parties("b1", "s1")))

	const writers = 10
	var wg sync.WaitGroup
	for i := range writers {
		for _, id := range []string{"q1", "q2"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := sp.AppendNote(ctx, id, quote.NewNote("b1", fmt.Sprintf("note %d", i), time.Now()))
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	for _, id := range []string{"q1", "q2"} {
		got, err := sp.GetNegotiation(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got.GetNotes(), writers)
	}
}
