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

package registry

import "github.com/luigi-borriello-dev/dome-quotes/quote"

var labels = map[key]string{}

// Button texts shown next to the matching actions.
const (
	ActionAcceptQuoteProvider    = "Accept the request of the customer. Set an expected delivery Date first to proceed."
	ActionAcceptProposalCustomer = "Accept the proposal that has been sent to you by the provider."
	ActionCancelQuoteProvider    = "Cancel the quote request."
	ActionRejectProposalCustomer = "Reject the proposal."
	ActionCreateOffer            = "Create a customized offering based on this accepted quote."
	ActionExpectedDateRequired   = "Set an expected date for the delivery of the proposal first"
	ActionAcceptTenderInvite     = "Accept the invitation to the tender."
	ActionDeclineTenderInvite    = "Decline the invitation to the tender."
)

// ActionText returns the button text for moving a negotiation to the target state, empty if
// there is none.
func ActionText(category quote.Category, to quote.State, role quote.Role) string {
	switch {
	case category == quote.CategoryTender && role == quote.RoleSeller && to == quote.StateInProgress:
		return ActionAcceptTenderInvite
	case category == quote.CategoryTender && role == quote.RoleSeller && to == quote.StateCancelled:
		return ActionDeclineTenderInvite
	case role == quote.RoleSeller && to == quote.StateInProgress:
		return ActionAcceptQuoteProvider
	case role == quote.RoleSeller && to == quote.StateCancelled:
		return ActionCancelQuoteProvider
	case role == quote.RoleBuyer && to == quote.StateAccepted:
		return ActionAcceptProposalCustomer
	case role == quote.RoleBuyer && to == quote.StateRejected:
		return ActionRejectProposalCustomer
	}
	return ""
}

func labelRow(category quote.Category, role quote.Role, texts ...string) {
	for i, s := range quote.States {
		labels[key{category, s, role}] = texts[i]
	}
}

// Order follows quote.States: pending, inProgress, approved, accepted, rejected, cancelled.
func registerLabels() {
	labelRow(quote.CategoryTailored, quote.RoleBuyer,
		"request-sent-awaiting-feedback",
		"request-accepted-and-being-worked-on",
		"offering-submitted-by-provider",
		"offering-accepted",
		"rejected",
		"request-canceled",
	)
	labelRow(quote.CategoryTailored, quote.RoleSeller,
		"request-received-pending-feedback",
		"request-accepted",
		"offering-submitted",
		"offering-accepted-by-customer",
		"rejected",
		"request-canceled",
	)
	labelRow(quote.CategoryTender, quote.RoleBuyer,
		"invite-sent",
		"invite-accepted-by-provider",
		"offer-submitted-by-provider",
		"offering-accepted",
		"offering-rejected",
		"request-canceled",
	)
	labelRow(quote.CategoryTender, quote.RoleSeller,
		"invite-received-to-tender",
		"invitation-accepted",
		"offering-submitted",
		"offering-accepted-by-customer",
		"offering-rejected",
		"request-canceled",
	)
	for _, role := range []quote.Role{quote.RoleBuyer, quote.RoleSeller} {
		labelRow(quote.CategoryCoordinator, role,
			"not-yet-submitted",
			"invites-sent-waiting-acceptance",
			"tender-started",
			"tender-closed",
			"rejected",
			"cancelled",
		)
	}
}
