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

// Package statemachine contains the negotiation engine. It validates intents coming from buyers
// and sellers against the lifecycle graph and the category rules, and commits them through a
// persistence.Gateway. The engine holds no state of its own, every call reads a fresh snapshot.
package statemachine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/luigi-borriello-dev/dome-quotes/quote/registry"
)

const (
	DefaultWorkers           = 8
	DefaultChildTimeout      = 10 * time.Second
	DefaultMaxAttachmentSize = 10 << 20
)

// Engine applies intents to negotiations.
type Engine struct {
	gateway persistence.Gateway

	workers             int
	childTimeout        time.Duration
	maxAttachmentSize   int64
	requireExpectedDate bool
	now                 func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithWorkers bounds the number of concurrent child operations of a fan-out.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithChildTimeout sets the timeout of every child operation of a fan-out.
func WithChildTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.childTimeout = d
		}
	}
}

// WithMaxAttachmentSize sets the upload size limit in bytes.
func WithMaxAttachmentSize(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttachmentSize = n
		}
	}
}

// WithRequireExpectedDate makes a seller set the expected date before accepting a tailored
// request.
func WithRequireExpectedDate(b bool) Option {
	return func(e *Engine) { e.requireExpectedDate = b }
}

// WithClock replaces the clock used for notes and date checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine working on the given gateway.
func New(gateway persistence.Gateway, opts ...Option) *Engine {
	e := &Engine{
		gateway:           gateway,
		workers:           DefaultWorkers,
		childTimeout:      DefaultChildTimeout,
		maxAttachmentSize: DefaultMaxAttachmentSize,
		now:               time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Get returns a negotiation.
func (e *Engine) Get(ctx context.Context, id string) (*quote.Negotiation, error) {
	return e.gateway.GetNegotiation(ctx, id)
}

// List returns the negotiations matching the options.
func (e *Engine) List(ctx context.Context, opts ...persistence.QueryOption) ([]*quote.Negotiation, error) {
	return e.gateway.QueryNegotiations(ctx, opts...)
}

// Explain returns the explanation shown to a role for a state.
func (e *Engine) Explain(category quote.Category, state quote.State, role quote.Role) registry.Info {
	return registry.Explain(category, state, role)
}

// RequestTransition moves a negotiation to a new state on behalf of the actor. A refused request
// returns a *quote.TransitionError and leaves the negotiation untouched.
func (e *Engine) RequestTransition(
	ctx context.Context, id string, actor quote.Actor, to quote.State,
) (*quote.Negotiation, error) {
	n, err := e.gateway.GetNegotiation(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx, logger := logging.InjectLabels(ctx, append(
		n.GetLogFields(""), "actor_id", actor.ID, "actor_role", actor.Role, "target_state", to)...)

	env, err := e.environment(ctx, n)
	if err != nil {
		return nil, err
	}
	if err := e.check(n, actor, to, env); err != nil {
		logger.Info("Refused transition", "err", err)
		observeTransition(n.GetCategory(), to, err)
		return nil, err
	}
	return e.commit(ctx, n, actor, to)
}

// Actions returns the states the actor may currently move the negotiation to.
func (e *Engine) Actions(ctx context.Context, id string, actor quote.Actor) ([]quote.State, error) {
	n, err := e.gateway.GetNegotiation(ctx, id)
	if err != nil {
		return nil, err
	}
	env, err := e.environment(ctx, n)
	if err != nil {
		return nil, err
	}
	var allowed []quote.State
	for _, to := range quote.States {
		if e.check(n, actor, to, env) == nil {
			allowed = append(allowed, to)
		}
	}
	return allowed, nil
}

func (e *Engine) check(n *quote.Negotiation, actor quote.Actor, to quote.State, env env) error {
	if actor.Role != quote.RoleBuyer && actor.Role != quote.RoleSeller {
		return quote.Refuse(n, to, actor.Role, "unknown role %q", actor.Role)
	}
	if !isParty(n, actor) {
		return quote.Refuse(n, to, actor.Role, "%s", strangerReason(n, actor))
	}
	from := n.GetState()
	if from.Terminal() {
		return quote.Refuse(n, to, actor.Role, "negotiation is already %s", from)
	}
	if !quote.CanTransition(from, to) {
		return quote.Refuse(n, to, actor.Role, "cannot move from %s to %s", from, to)
	}
	v := variantOf(n.GetCategory())
	if v == nil {
		return quote.Refuse(n, to, actor.Role, "unknown category %q", n.GetCategory())
	}
	if v.needsCoordinator() && env.coordinator == nil {
		return quote.Refuse(n, to, actor.Role, "tender %s does not exist", n.GetExternalID())
	}
	return v.checkTransition(n, actor, to, env)
}

// environment loads what the guards of the negotiation's category need. A missing coordinator is
// left nil for the guards to refuse.
func (e *Engine) environment(ctx context.Context, n *quote.Negotiation) (env, error) {
	out := env{now: e.now(), requireExpectedDate: e.requireExpectedDate}
	v := variantOf(n.GetCategory())
	if v == nil || !v.needsCoordinator() {
		return out, nil
	}
	coord, err := e.gateway.GetNegotiation(ctx, n.GetExternalID())
	switch {
	case errors.Is(err, quote.ErrNotFound):
		return out, nil
	case err != nil:
		return out, fmt.Errorf("could not load tender %s: %w", n.GetExternalID(), err)
	}
	out.coordinator = coord
	return out, nil
}

// commit applies a checked transition and records the status change note. The state change is
// the operation's outcome, a failing note is logged and does not undo it.
func (e *Engine) commit(
	ctx context.Context, n *quote.Negotiation, actor quote.Actor, to quote.State,
) (*quote.Negotiation, error) {
	logger := logging.Extract(ctx)
	updated, err := e.gateway.SetState(ctx, n.GetID(), n.GetState(), to)
	observeTransition(n.GetCategory(), to, err)
	if err != nil {
		return nil, err
	}
	logger.Info("Negotiation state changed", "from", n.GetState(), "to", to)

	noted, err := e.gateway.AppendNote(ctx, n.GetID(), quote.NewNote(actor.ID, registry.StatusChangeNote(to), e.now()))
	if err != nil {
		logger.Warn("Could not record status change note", "err", err)
		return updated, nil
	}
	return noted, nil
}
