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
	"fmt"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
)

// env is what a guard may consult besides the negotiation itself.
type env struct {
	// coordinator is the parent tender of a tender child, nil for other categories.
	coordinator         *quote.Negotiation
	now                 time.Time
	requireExpectedDate bool
}

// variant holds the category specific rules. The engine has already checked that the actor role
// is known, the negotiation is not terminal and the edge is in the graph.
type variant interface {
	checkTransition(n *quote.Negotiation, actor quote.Actor, to quote.State, e env) error
	checkUpload(n *quote.Negotiation, actor quote.Actor, e env) error
	// autoApproves reports if a successful upload moves inProgress to approved.
	autoApproves() bool
	needsCoordinator() bool
}

func variantOf(c quote.Category) variant {
	switch c {
	case quote.CategoryTailored:
		return tailored{}
	case quote.CategoryTender:
		return tender{}
	case quote.CategoryCoordinator:
		return coordinator{}
	default:
		return nil
	}
}

func requireRole(n *quote.Negotiation, actor quote.Actor, to quote.State, role quote.Role, action string) error {
	if actor.Role != role {
		return quote.Refuse(n, to, actor.Role, "only the %s can %s", role, action)
	}
	return nil
}

// isParty reports if the actor is the party named for its role on the negotiation. A negotiation
// naming no party for the role accepts any actor in it.
func isParty(n *quote.Negotiation, actor quote.Actor) bool {
	var id string
	switch actor.Role {
	case quote.RoleBuyer:
		id = n.BuyerID()
	case quote.RoleSeller:
		id = n.SellerID()
	default:
		return false
	}
	return id == "" || id == actor.ID
}

// strangerReason is the refusal given to an actor that is not a party of the negotiation.
func strangerReason(n *quote.Negotiation, actor quote.Actor) string {
	if n.GetCategory() == quote.CategoryCoordinator {
		return "only the tender owner can manage the tender"
	}
	return fmt.Sprintf("%s is not the %s of this negotiation", actor.ID, actor.Role)
}

type tailored struct{}

func (tailored) checkTransition(n *quote.Negotiation, actor quote.Actor, to quote.State, e env) error {
	switch to {
	case quote.StateInProgress:
		if err := requireRole(n, actor, to, quote.RoleSeller, "accept the request"); err != nil {
			return err
		}
		if _, ok := n.GetDate(quote.DateExpected); e.requireExpectedDate && !ok {
			return quote.Refuse(n, to, actor.Role, "cannot accept: expected completion date not set")
		}
	case quote.StateApproved:
		return requireRole(n, actor, to, quote.RoleSeller, "submit the proposal")
	case quote.StateAccepted:
		return requireRole(n, actor, to, quote.RoleBuyer, "accept the proposal")
	case quote.StateRejected:
		return requireRole(n, actor, to, quote.RoleBuyer, "reject the proposal")
	}
	return nil
}

func (tailored) checkUpload(n *quote.Negotiation, actor quote.Actor, _ env) error {
	if actor.Role != quote.RoleSeller {
		return quote.Invalid("role", "only the seller can upload the proposal")
	}
	return uploadState(n, quote.StateInProgress, quote.StateApproved)
}

func (tailored) autoApproves() bool     { return true }
func (tailored) needsCoordinator() bool { return false }

type tender struct{}

func (tender) checkTransition(n *quote.Negotiation, actor quote.Actor, to quote.State, e env) error {
	coord := e.coordinator.GetState()
	switch to {
	case quote.StateInProgress:
		if err := requireRole(n, actor, to, quote.RoleSeller, "accept the invitation"); err != nil {
			return err
		}
		if coord != quote.StateInProgress {
			return quote.Refuse(n, to, actor.Role, "cannot accept the invitation: the tender is %s", coord)
		}
	case quote.StateApproved:
		if err := requireRole(n, actor, to, quote.RoleSeller, "submit the offer"); err != nil {
			return err
		}
		if coord != quote.StateApproved {
			return quote.Refuse(n, to, actor.Role, "cannot submit the offer: the tender is %s", coord)
		}
	case quote.StateAccepted:
		if err := requireRole(n, actor, to, quote.RoleBuyer, "accept the offer"); err != nil {
			return err
		}
		if coord != quote.StateAccepted {
			return quote.Refuse(n, to, actor.Role, "cannot accept the offer: the tender is %s", coord)
		}
	case quote.StateRejected:
		return requireRole(n, actor, to, quote.RoleBuyer, "reject the offer")
	}
	return nil
}

func (tender) checkUpload(n *quote.Negotiation, actor quote.Actor, e env) error {
	if actor.Role != quote.RoleSeller {
		return quote.Invalid("role", "only the seller can upload the offer")
	}
	if s := e.coordinator.GetState(); s != quote.StateApproved {
		return quote.Invalid("state", "cannot upload: the tender is %s", s)
	}
	return uploadState(n, quote.StateInProgress, quote.StateApproved)
}

func (tender) autoApproves() bool     { return true }
func (tender) needsCoordinator() bool { return true }

// coordinator is driven by its buyer alone. Cancelling it is only possible through the cascade.
type coordinator struct{}

func (coordinator) checkTransition(n *quote.Negotiation, actor quote.Actor, to quote.State, e env) error {
	if err := requireRole(n, actor, to, quote.RoleBuyer, "manage the tender"); err != nil {
		return err
	}
	switch to {
	case quote.StateAccepted:
		if end, ok := n.GetDate(quote.DateFulfillmentEnd); ok && e.now.Before(end) {
			return quote.Refuse(n, to, actor.Role, "cannot close the tender before %s", end.Format(time.DateOnly))
		}
	case quote.StateRejected:
		return quote.Refuse(n, to, actor.Role, "a tender cannot be rejected")
	case quote.StateCancelled:
		return quote.Refuse(n, to, actor.Role, "a tender must be cancelled with its invitations")
	}
	return nil
}

func (coordinator) checkUpload(n *quote.Negotiation, actor quote.Actor, _ env) error {
	if actor.Role != quote.RoleBuyer {
		return quote.Invalid("role", "only the tender owner can upload the tender document")
	}
	return uploadState(n, quote.StatePending, quote.StateInProgress)
}

func (coordinator) autoApproves() bool     { return false }
func (coordinator) needsCoordinator() bool { return false }

func uploadState(n *quote.Negotiation, allowed ...quote.State) error {
	for _, s := range allowed {
		if n.GetState() == s {
			return nil
		}
	}
	return quote.Invalid("state", "cannot upload: the negotiation is %s", n.GetState())
}
