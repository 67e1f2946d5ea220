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

	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
)

// CascadeResult is the outcome of cancelling a tender.
type CascadeResult struct {
	// Negotiation is the cancelled coordinator, nil if its own cancellation failed.
	Negotiation       *quote.Negotiation
	ChildrenCancelled int
	ChildrenFailed    int
	// ChildrenSkipped counts children that were already terminal.
	ChildrenSkipped int
	Failures        map[string]error
}

// CancelCoordinator cancels a tender together with every invitation of it. The invitations are
// cancelled first, concurrently, then the coordinator is cancelled whatever their outcome. Failed
// invitations are reported with a *quote.PartialFailureError next to the result.
//
// The operation is not bound to the caller's cancellation once it started.
func (e *Engine) CancelCoordinator(ctx context.Context, coordinatorID, buyerID string) (*CascadeResult, error) {
	ctx = context.WithoutCancel(ctx)
	coord, err := e.gateway.GetNegotiation(ctx, coordinatorID)
	if err != nil {
		return nil, err
	}
	actor := quote.Actor{ID: buyerID, Role: quote.RoleBuyer}
	if err := checkOwnedCoordinator(coord, buyerID); err != nil {
		return nil, err
	}
	if coord.GetState().Terminal() {
		return nil, quote.Refuse(coord, quote.StateCancelled, actor.Role, "tender is already %s", coord.GetState())
	}
	ctx, logger := logging.InjectLabels(ctx, append(coord.GetLogFields(""), "actor_id", buyerID)...)

	children, err := e.gateway.QueryNegotiations(ctx, persistence.ChildrenOf(coordinatorID, buyerID)...)
	if err != nil {
		return nil, err
	}

	res := &CascadeResult{}
	childEnv := env{coordinator: coord, now: e.now()}
	jobs := make([]fanOutJob, 0, len(children))
	for _, child := range children {
		if child.GetState().Terminal() {
			res.ChildrenSkipped++
			continue
		}
		jobs = append(jobs, fanOutJob{
			id: child.GetID(),
			run: func(ctx context.Context) error {
				return e.cancelChild(ctx, child, actor, childEnv)
			},
		})
	}
	logger.Info("Cancelling tender", "children", len(jobs), "skipped", res.ChildrenSkipped)

	res.ChildrenCancelled, res.Failures = summarise(runFanOut(ctx, e.workers, e.childTimeout, jobs))
	res.ChildrenFailed = len(res.Failures)
	observeFanOut("cancel", res.ChildrenCancelled, res.ChildrenFailed, res.ChildrenSkipped)

	cancelled, err := e.commit(ctx, coord, actor, quote.StateCancelled)
	if err != nil {
		logger.Error("Could not cancel tender", "err", err)
		return res, err
	}
	res.Negotiation = cancelled
	logger.Info("Tender cancelled",
		"cancelled", res.ChildrenCancelled, "failed", res.ChildrenFailed, "skipped", res.ChildrenSkipped)

	if res.ChildrenFailed > 0 {
		return res, &quote.PartialFailureError{
			Operation: "cancel tender",
			Succeeded: res.ChildrenCancelled,
			Failed:    res.ChildrenFailed,
			Failures:  res.Failures,
		}
	}
	return res, nil
}

func (e *Engine) cancelChild(ctx context.Context, child *quote.Negotiation, actor quote.Actor, childEnv env) error {
	ctx, _ = logging.InjectLabels(ctx, child.GetLogFields("_child")...)
	if err := e.check(child, actor, quote.StateCancelled, childEnv); err != nil {
		return err
	}
	_, err := e.commit(ctx, child, actor, quote.StateCancelled)
	return err
}

// BroadcastResult is the outcome of a broadcast.
type BroadcastResult struct {
	Recipients int
	Sent       int
	Failed     int
	// NoOp is set when the tender had no invitations.
	NoOp     bool
	Failures map[string]error
}

// Broadcast appends the message as a note to every invitation of a launched tender.
func (e *Engine) Broadcast(ctx context.Context, coordinatorID, buyerID, message string) (*BroadcastResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, quote.Invalid("message", "message is empty")
	}
	if len(message) > maxNoteLength {
		return nil, quote.Invalid("message", "message is longer than %d bytes", maxNoteLength)
	}
	ctx = context.WithoutCancel(ctx)
	coord, err := e.gateway.GetNegotiation(ctx, coordinatorID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnedCoordinator(coord, buyerID); err != nil {
		return nil, err
	}
	if coord.GetState() == quote.StatePending {
		return nil, quote.Invalid("state", "cannot broadcast: the tender is still a draft")
	}
	ctx, logger := logging.InjectLabels(ctx, append(coord.GetLogFields(""), "actor_id", buyerID)...)

	children, err := e.gateway.QueryNegotiations(ctx, persistence.ChildrenOf(coordinatorID, buyerID)...)
	if err != nil {
		return nil, err
	}
	res := &BroadcastResult{Recipients: len(children)}
	if len(children) == 0 {
		res.NoOp = true
		logger.Info("Tender has no invitations, nothing to broadcast")
		return res, nil
	}

	now := e.now()
	jobs := make([]fanOutJob, 0, len(children))
	for _, child := range children {
		jobs = append(jobs, fanOutJob{
			id: child.GetID(),
			run: func(ctx context.Context) error {
				_, err := e.gateway.AppendNote(ctx, child.GetID(), quote.NewNote(buyerID, message, now))
				return err
			},
		})
	}
	res.Sent, res.Failures = summarise(runFanOut(ctx, e.workers, e.childTimeout, jobs))
	res.Failed = len(res.Failures)
	observeFanOut("broadcast", res.Sent, res.Failed, 0)
	logger.Info("Message broadcast", "sent", res.Sent, "failed", res.Failed)

	if res.Failed > 0 {
		return res, &quote.PartialFailureError{
			Operation: "broadcast",
			Succeeded: res.Sent,
			Failed:    res.Failed,
			Failures:  res.Failures,
		}
	}
	return res, nil
}

func checkOwnedCoordinator(coord *quote.Negotiation, buyerID string) *quote.TransitionError {
	if coord.GetCategory() != quote.CategoryCoordinator {
		return quote.Refuse(coord, quote.StateCancelled, quote.RoleBuyer, "%s is not a tender", coord.GetID())
	}
	if actor := (quote.Actor{ID: buyerID, Role: quote.RoleBuyer}); !isParty(coord, actor) {
		return quote.Refuse(coord, quote.StateCancelled, actor.Role, "%s", strangerReason(coord, actor))
	}
	return nil
}
