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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/persistencetest"
	"github.com/luigi-borriello-dev/dome-quotes/quote/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTenderFollowsCoordinator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	put(t, store, coordinator(quote.StatePending), invitation("inv1", sellerID, quote.StatePending))
	engine := newEngine(store)

	_, err := engine.RequestTransition(ctx, "inv1", seller, quote.StateInProgress)
	require.ErrorIs(t, err, quote.ErrInvalidTransition)
	assert.ErrorContains(t, err, "cannot accept the invitation")

	_, err = engine.RequestTransition(ctx, coordID, buyer, quote.StateInProgress)
	require.NoError(t, err)
	_, err = engine.RequestTransition(ctx, "inv1", seller, quote.StateInProgress)
	require.NoError(t, err)

	_, err = engine.UploadAttachment(ctx, "inv1", seller, pdf("offer.pdf"))
	require.ErrorIs(t, err, quote.ErrValidation)

	_, err = engine.RequestTransition(ctx, coordID, buyer, quote.StateApproved)
	require.NoError(t, err)
	res, err := engine.UploadAttachment(ctx, "inv1", seller, pdf("offer.pdf"))
	require.NoError(t, err)
	assert.True(t, res.AutoApproved)

	_, err = engine.RequestTransition(ctx, "inv1", buyer, quote.StateAccepted)
	require.ErrorIs(t, err, quote.ErrInvalidTransition)
	assert.ErrorContains(t, err, "cannot accept the offer")

	_, err = engine.RequestTransition(ctx, coordID, buyer, quote.StateAccepted)
	require.NoError(t, err)
	n, err := engine.RequestTransition(ctx, "inv1", buyer, quote.StateAccepted)
	require.NoError(t, err)
	assert.Equal(t, quote.StateAccepted, n.GetState())
}

func TestTenderWithoutCoordinator(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	put(t, store, invitation("inv1", sellerID, quote.StatePending))
	_, err := newEngine(store).RequestTransition(context.Background(), "inv1", seller, quote.StateCancelled)
	require.ErrorIs(t, err, quote.ErrInvalidTransition)
	assert.ErrorContains(t, err, "does not exist")
}

func TestCoordinatorGuards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	put(t, store,
		coordinator(quote.StateApproved, quote.WithDate(quote.DateFulfillmentEnd, now.Add(48*time.Hour))))
	engine := newEngine(store)

	_, err := engine.RequestTransition(ctx, coordID, seller, quote.StateAccepted)
	assert.ErrorIs(t, err, quote.ErrInvalidTransition)
	_, err = engine.RequestTransition(ctx, coordID, quote.Actor{ID: "intruder", Role: quote.RoleBuyer}, quote.StateAccepted)
	assert.ErrorContains(t, err, "only the tender owner")
	_, err = engine.RequestTransition(ctx, coordID, buyer, quote.StateAccepted)
	assert.ErrorContains(t, err, "cannot close the tender before")
	_, err = engine.RequestTransition(ctx, coordID, buyer, quote.StateRejected)
	assert.ErrorContains(t, err, "cannot be rejected")
	_, err = engine.RequestTransition(ctx, coordID, buyer, quote.StateCancelled)
	assert.ErrorContains(t, err, "cancelled with its invitations")

	later := newEngine(store, statemachine.WithClock(func() time.Time { return now.Add(72 * time.Hour) }))
	n, err := later.RequestTransition(ctx, coordID, buyer, quote.StateAccepted)
	require.NoError(t, err)
	assert.Equal(t, quote.StateAccepted, n.GetState())
}

// tenderWithInvitations stores a launched tender with n open invitations of its buyer, one
// already cancelled invitation and one invitation of a different buyer.
func tenderWithInvitations(t *testing.T, store persistence.Importer, n int) []string {
	t.Helper()
	put(t, store, coordinator(quote.StateApproved))
	ids := make([]string, 0, n)
	for i := range n {
		id := fmt.Sprintf("inv%d", i)
		ids = append(ids, id)
		put(t, store, invitation(id, fmt.Sprintf("did:elsi:VATES-S%04d", i), quote.StateInProgress))
	}
	put(t, store, invitation("declined", sellerID, quote.StateCancelled))
	put(t, store, quote.New("foreign", quote.CategoryTender, persistencetest.Parties("did:elsi:OTHER", sellerID),
		quote.WithState(quote.StatePending), quote.WithExternalID(coordID)))
	return ids
}

func TestCancelCoordinatorCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	ids := tenderWithInvitations(t, store, 5)

	res, err := newEngine(store, statemachine.WithWorkers(2)).CancelCoordinator(ctx, coordID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, 5, res.ChildrenCancelled)
	assert.Equal(t, 0, res.ChildrenFailed)
	assert.Equal(t, 1, res.ChildrenSkipped)
	assert.Equal(t, quote.StateCancelled, res.Negotiation.GetState())
	assert.Equal(t, []string{"Status changed to: cancelled"}, noteTexts(res.Negotiation))

	for _, id := range ids {
		n, err := store.GetNegotiation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, quote.StateCancelled, n.GetState(), id)
	}
	foreign, err := store.GetNegotiation(ctx, "foreign")
	require.NoError(t, err)
	assert.Equal(t, quote.StatePending, foreign.GetState())
}

func TestCancelCoordinatorPartialFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	tenderWithInvitations(t, store, 4)
	gw := flaky(store)
	gw.failSetState["inv2"] = errors.New("storage unavailable")
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	gw.blockState["inv3"] = release

	res, err := newEngine(gw, statemachine.WithChildTimeout(50*time.Millisecond)).
		CancelCoordinator(ctx, coordID, buyerID)
	require.ErrorIs(t, err, quote.ErrPartialFailure)
	var perr *quote.PartialFailureError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Succeeded)
	assert.Equal(t, 2, perr.Failed)
	assert.Contains(t, perr.Failures, "inv2")
	assert.ErrorIs(t, perr.Failures["inv3"], context.DeadlineExceeded)

	assert.Equal(t, 2, res.ChildrenCancelled)
	assert.Equal(t, 2, res.ChildrenFailed)
	require.NotNil(t, res.Negotiation)
	assert.Equal(t, quote.StateCancelled, res.Negotiation.GetState())

	n, err := store.GetNegotiation(ctx, "inv2")
	require.NoError(t, err)
	assert.Equal(t, quote.StateInProgress, n.GetState())
}

func TestCancelCoordinatorRefusals(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	tenderWithInvitations(t, store, 1)
	put(t, store, tailored("q1", quote.StatePending))
	engine := newEngine(store)

	_, err := engine.CancelCoordinator(ctx, coordID, "did:elsi:OTHER")
	assert.ErrorContains(t, err, "only the tender owner")
	_, err = engine.CancelCoordinator(ctx, "q1", buyerID)
	assert.ErrorContains(t, err, "is not a tender")
	_, err = engine.CancelCoordinator(ctx, "missing", buyerID)
	assert.ErrorIs(t, err, quote.ErrNotFound)

	_, err = engine.CancelCoordinator(ctx, coordID, buyerID)
	require.NoError(t, err)
	_, err = engine.CancelCoordinator(ctx, coordID, buyerID)
	assert.ErrorIs(t, err, quote.ErrInvalidTransition)
	assert.ErrorContains(t, err, "tender is already cancelled")
}

func TestBroadcast(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	ids := tenderWithInvitations(t, store, 3)
	engine := newEngine(store)

	_, err := engine.Broadcast(ctx, coordID, buyerID, "   ")
	require.ErrorIs(t, err, quote.ErrValidation)
	_, err = engine.Broadcast(ctx, coordID, "did:elsi:OTHER", "hello")
	require.ErrorIs(t, err, quote.ErrInvalidTransition)
	assert.ErrorContains(t, err, "only the tender owner")

	res, err := engine.Broadcast(ctx, coordID, buyerID, "Deadline moved to Friday")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Recipients)
	assert.Equal(t, 4, res.Sent)
	assert.False(t, res.NoOp)
	for _, id := range append(ids, "declined") {
		n, err := store.GetNegotiation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"Deadline moved to Friday"}, noteTexts(n), id)
	}
	foreign, err := store.GetNegotiation(ctx, "foreign")
	require.NoError(t, err)
	assert.Empty(t, foreign.GetNotes())
}

func TestBroadcastPartialFailure(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	tenderWithInvitations(t, store, 2)
	gw := flaky(store)
	gw.failNote["inv1"] = errors.New("storage unavailable")

	res, err := newEngine(gw).Broadcast(context.Background(), coordID, buyerID, "hello")
	require.ErrorIs(t, err, quote.ErrPartialFailure)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Failures, "inv1")
}

func TestBroadcastRefusedOnDraft(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	put(t, store, coordinator(quote.StatePending))
	_, err := newEngine(store).Broadcast(context.Background(), coordID, buyerID, "hello")
	require.ErrorIs(t, err, quote.ErrValidation)
	assert.ErrorContains(t, err, "still a draft")
}

func TestBroadcastWithoutInvitationsIsNoOp(t *testing.T) {
	t.Parallel()

	gw := &mockGateway{}
	gw.On("GetNegotiation", mock.Anything, coordID).Return(coordinator(quote.StateInProgress), nil)
	gw.On("QueryNegotiations", mock.Anything, persistence.NewFilter(persistence.ChildrenOf(coordID, buyerID)...)).
		Return([]*quote.Negotiation{}, nil)

	res, err := newEngine(gw).Broadcast(context.Background(), coordID, buyerID, "hello")
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Zero(t, res.Sent)
	gw.AssertExpectations(t)
	gw.AssertNumberOfCalls(t, "AppendNote", 0)
}
