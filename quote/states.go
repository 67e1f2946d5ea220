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
	"fmt"
	"slices"
	"strings"
)

// State is the lifecycle state of a negotiation.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "inProgress"
	StateApproved   State = "approved"
	StateAccepted   State = "accepted"
	StateRejected   State = "rejected"
	StateCancelled  State = "cancelled"
)

// States lists every state in lifecycle order.
var States = []State{
	StatePending,
	StateInProgress,
	StateApproved,
	StateAccepted,
	StateRejected,
	StateCancelled,
}

func (s State) String() string { return string(s) }

// Terminal reports if no transition can leave the state.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateRejected || s == StateCancelled
}

// ParseState parses a state name.
func ParseState[T ~string | ~[]byte](s T) (State, error) {
	state := State(s)
	if !slices.Contains(States, state) {
		return "", fmt.Errorf("invalid state: %s", string(s))
	}
	return state, nil
}

// Category is the shape of a negotiation.
type Category string

const (
	// CategoryTailored is a direct quote between one buyer and one seller.
	CategoryTailored Category = "tailored"
	// CategoryTender is one invited seller's response inside a tender.
	CategoryTender Category = "tender"
	// CategoryCoordinator is the buyer-owned tender umbrella.
	CategoryCoordinator Category = "coordinator"
)

// Categories lists every category.
var Categories = []Category{CategoryTailored, CategoryTender, CategoryCoordinator}

func (c Category) String() string { return string(c) }

// ParseCategory parses a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !slices.Contains(Categories, c) {
		return "", fmt.Errorf("invalid category: %s", s)
	}
	return c, nil
}

// Role is the side an actor acts for.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func (r Role) String() string { return string(r) }

// ParseRole parses an actor role, accepting the customer/provider aliases.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "buyer", "customer":
		return RoleBuyer, nil
	case "seller", "provider":
		return RoleSeller, nil
	default:
		return "", fmt.Errorf("invalid role: %s", s)
	}
}

// PartyRole is the role a related party plays in a negotiation.
type PartyRole string

const (
	PartyBuyer          PartyRole = "buyer"
	PartyBuyerOperator  PartyRole = "buyerOperator"
	PartySeller         PartyRole = "seller"
	PartySellerOperator PartyRole = "sellerOperator"
)

// PartyRoles lists every party role.
var PartyRoles = []PartyRole{PartyBuyer, PartyBuyerOperator, PartySeller, PartySellerOperator}

// ParsePartyRole parses a party role.
func ParsePartyRole(s string) (PartyRole, error) {
	r := PartyRole(s)
	if !slices.Contains(PartyRoles, r) {
		return "", fmt.Errorf("invalid party role: %s", s)
	}
	return r, nil
}

// DateKind selects one of the scheduling dates.
type DateKind string

const (
	DateRequested        DateKind = "requested"
	DateExpected         DateKind = "expected"
	DateFulfillmentStart DateKind = "fulfillmentStart"
	DateFulfillmentEnd   DateKind = "fulfillmentEnd"
)

// ParseDateKind parses a date kind.
func ParseDateKind(s string) (DateKind, error) {
	switch k := DateKind(s); k {
	case DateRequested, DateExpected, DateFulfillmentStart, DateFulfillmentEnd:
		return k, nil
	default:
		return "", fmt.Errorf("invalid date kind: %s", s)
	}
}

// Actor is the party issuing an intent, acting for one side of the negotiation.
type Actor struct {
	ID   string
	Role Role
}
