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

//nolint:lll // Texts are kept on one line so they can be grepped.
var tailoredMessages = map[quote.State]roleInfo{
	quote.StatePending: {
		provider: Info{
			Explanation:      "At this stage you can decide whether to accept or reject the quote request.",
			AvailableActions: "Send messages to customer (chat), accept or decline the quote.",
		},
		buyer: Info{
			Explanation:      "The quote is created and sent to the provider. At this stage the provider must either accept or decline the request.",
			AvailableActions: "Send messages to provider (chat), view quote request details or cancel the request.",
		},
	},
	quote.StateInProgress: {
		provider: Info{
			Explanation:      "At this point you need to provide a proposal in the form of a PDF attachment.",
			AvailableActions: "Send messages to customer (chat), upload attachment or decline the quote.",
		},
		buyer: Info{
			Explanation:      "Your quote request is being processed. The provider is currently building the proposal based on your specifications. You will be notified once the quote is ready for review and a PDF is uploaded.",
			AvailableActions: "Send messages to provider (chat), view quote details or cancel the request.",
		},
	},
	quote.StateApproved: {
		provider: Info{
			Explanation:      "The quote details are now locked and cannot be modified. The quote has been sent to the customer. You should wait for the customer to review the proposal and use the chat to get in touch with them.",
			AvailableActions: "Send messages to customer (chat) or cancel the quote.",
		},
		buyer: Info{
			Explanation:      "The provider has approved and sent you a quote proposal. Please review the details and attached documents. You can accept, reject, or request updates through the chat.",
			AvailableActions: "Send messages to provider (chat), accept the proposal or reject the proposal or cancel the quote.",
		},
	},
	quote.StateAccepted: {
		provider: Info{
			Explanation:      "The customer has accepted your quote proposal. You should now create a customized version of the offering that will be visible only to the customer. The chat remains open for further communication.",
			AvailableActions: "Send messages to customer (chat), create customized offering.",
		},
		buyer: Info{
			Explanation:      "You have accepted the quote proposal. The provider will now create a customized offering based on this agreement. Once available, you can proceed with the normal order process to subscribe to the service.",
			AvailableActions: "Send messages to provider (chat).",
		},
	},
	quote.StateRejected: {
		provider: Info{
			Explanation:      "The customer has rejected this quote proposal. The negotiation process has ended. You can reach out to the customer through the chat and consider submitting a new proposal.",
			AvailableActions: "View quote details and chat history.",
		},
		buyer: Info{
			Explanation:      "You have rejected this quote proposal. The negotiation process has been closed. If you wish, you can submit a new quote request with updated requirements.",
			AvailableActions: "View quote details and chat history.",
		},
	},
	quote.StateCancelled: {
		provider: Info{
			Explanation:      "This quote has been cancelled.",
			AvailableActions: "View quote details and chat history. No further actions available.",
		},
		buyer: Info{
			Explanation:      "This quote has been cancelled.",
			AvailableActions: "View quote details and chat history. No further actions available.",
		},
	},
}

//nolint:lll
var tenderMessages = map[quote.State]roleInfo{
	quote.StatePending: {
		provider: Info{
			Explanation:      "The tender request has been sent to you. At this stage you can decide whether to participate or not in this tender.",
			AvailableActions: "Send messages to buyer (chat), accept or decline the tender request or withdraw from the tender.",
		},
		buyer: Info{
			Explanation:      "The tender is created and sent to the provider. Waiting for the provider to accept or decline participation.",
			AvailableActions: "Send messages to provider (chat), view tender request details or cancel the request.",
		},
	},
	quote.StateInProgress: {
		provider: Info{
			Explanation:      "You are participating in this tender. Provide your offer as a PDF document to attach with all required details.",
			AvailableActions: "Send messages to buyer (chat), upload tender response documents or withdraw from tender.",
		},
		buyer: Info{
			Explanation:      "The provider is preparing their tender response. You will be notified once they submit their proposal.",
			AvailableActions: "Send messages to provider (chat), view tender details or cancel the tender.",
		},
	},
	quote.StateApproved: {
		provider: Info{
			Explanation:      "Your offer has been submitted and is under review by the buyer.",
			AvailableActions: "Send messages to buyer (chat) or withdraw your tender response.",
		},
		buyer: Info{
			Explanation:      "The provider has submitted their tender response. Please review the submission and all attached documents.",
			AvailableActions: "Send messages to provider (chat), accept the tender response, reject it, or request clarifications.",
		},
	},
	quote.StateAccepted: {
		provider: Info{
			Explanation:      "Congratulations! Your tender response has been accepted. You must now proceed with creating the customized offering.",
			AvailableActions: "Send messages to buyer (chat).",
		},
		buyer: Info{
			Explanation:      "You have accepted this offer. The provider must now proceed with creating the customized offering.",
			AvailableActions: "Send messages to provider (chat).",
		},
	},
	quote.StateRejected: {
		provider: Info{
			Explanation:      "Your offer was not selected for this tender.",
			AvailableActions: "View tender details and chat history.",
		},
		buyer: Info{
			Explanation:      "You have rejected this offer.",
			AvailableActions: "View tender details and chat history.",
		},
	},
	quote.StateCancelled: {
		provider: Info{
			Explanation:      "This offering has been cancelled.",
			AvailableActions: "View tender details and chat history. No further actions available.",
		},
		buyer: Info{
			Explanation:      "This offering has been cancelled.",
			AvailableActions: "View tender details and chat history. No further actions available.",
		},
	},
}

var unset = Info{Explanation: placeholder, AvailableActions: placeholder}

//nolint:lll
var coordinatorMessages = map[quote.State]roleInfo{
	quote.StatePending: {
		provider: unset,
		buyer: Info{
			Explanation:      "Tender is still in draft",
			AvailableActions: "Finish draft details",
		},
	},
	quote.StateInProgress: {
		provider: unset,
		buyer: Info{
			Explanation:      "The invited providers now have time to accept or decline the invite to the tender",
			AvailableActions: "View provider responses, send messages, monitor progress, or start the tender",
		},
	},
	quote.StateApproved: {
		provider: unset,
		buyer: Info{
			Explanation:      "The tendering is launched, the providers that have accepted the invitation must now provide an offer by attaching a PDF document. You must review and compare the offerings provided and will be able to accept the winning one once the End tender date has been reached and the tendering process is closed",
			AvailableActions: "Review responses, compare proposals, or request additional information.",
		},
	},
	quote.StateAccepted: {
		provider: unset,
		buyer: Info{
			Explanation:      "The tender is now closed. You can select the winning proposal and accept it",
			AvailableActions: "View tender details, communicate with winning provider",
		},
	},
	quote.StateRejected: {
		provider: unset,
		buyer:    unset,
	},
	quote.StateCancelled: {
		provider: Info{
			Explanation:      "This tender has been cancelled.",
			AvailableActions: "View tender details. No further actions available.",
		},
		buyer: Info{
			Explanation:      "This tender has been cancelled.",
			AvailableActions: "View tender details. No further actions available.",
		},
	},
}
