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

package shared

import (
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/quote/registry"
)

// Party is a related party with its resolved display name.
type Party struct {
	Role  string `json:"role" validate:"required"`
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	VATID string `json:"vatId,omitempty"`
}

// Product references the quoted product offering.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Note struct {
	ID       string    `json:"id"`
	AuthorID string    `json:"authorId"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
}

type Attachment struct {
	Name       string    `json:"name" validate:"required"`
	MIMEType   string    `json:"mimeType" validate:"required"`
	Size       int64     `json:"size" validate:"gt=0"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Dates holds the scheduling dates that are set.
type Dates struct {
	Requested        *time.Time `json:"requested,omitempty"`
	Expected         *time.Time `json:"expected,omitempty"`
	FulfillmentStart *time.Time `json:"fulfillmentStart,omitempty"`
	FulfillmentEnd   *time.Time `json:"fulfillmentEnd,omitempty"`
}

// Tender is the coordinator data shown on a tender invitation.
type Tender struct {
	ID             string `json:"id"`
	State          string `json:"state" validate:"quote_state"`
	Dates          Dates  `json:"dates"`
	AttachmentName string `json:"attachmentName,omitempty"`
}

// Negotiation is the enriched view of a negotiation.
type Negotiation struct {
	ID          string         `json:"id" validate:"required"`
	Category    string         `json:"category" validate:"quote_category"`
	State       string         `json:"state" validate:"quote_state"`
	Label       string         `json:"label,omitempty"`
	ExternalID  string         `json:"externalId,omitempty"`
	Description string         `json:"description,omitempty"`
	Product     Product        `json:"product"`
	Parties     []Party        `json:"relatedParty" validate:"dive"`
	Dates       Dates          `json:"dates"`
	Notes       []Note         `json:"notes"`
	Attachment  *Attachment    `json:"attachment,omitempty"`
	Tender      *Tender        `json:"tender,omitempty"`
	Status      *registry.Info `json:"status,omitempty"`
	Created     time.Time      `json:"created"`
	Updated     time.Time      `json:"updated"`
	Version     int64          `json:"version"`
}

// Summary is the list view of a negotiation.
type Summary struct {
	ID         string    `json:"id" validate:"required"`
	Category   string    `json:"category" validate:"quote_category"`
	State      string    `json:"state" validate:"quote_state"`
	ExternalID string    `json:"externalId,omitempty"`
	BuyerID    string    `json:"buyerId,omitempty"`
	SellerID   string    `json:"sellerId,omitempty"`
	Updated    time.Time `json:"updated"`
}

type List struct {
	Negotiations []Summary `json:"negotiations" validate:"dive"`
}

// Action is a state the actor may move a negotiation to.
type Action struct {
	State string `json:"state" validate:"quote_state"`
	Label string `json:"label"`
	Text  string `json:"text,omitempty"`
}

type Actions struct {
	ID      string   `json:"id"`
	Actions []Action `json:"actions" validate:"dive"`
}

type TransitionRequest struct {
	State string `json:"state" validate:"required,quote_state"`
}

type DateRequest struct {
	Date time.Time `json:"date" validate:"required"`
}

type NoteRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type BroadcastRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type UploadResult struct {
	Negotiation      Negotiation `json:"negotiation"`
	AutoApproved     bool        `json:"autoApproved"`
	AutoApproveError string      `json:"autoApproveError,omitempty"`
}

type CascadeResult struct {
	Negotiation       *Negotiation      `json:"negotiation,omitempty"`
	ChildrenCancelled int               `json:"childrenCancelled"`
	ChildrenFailed    int               `json:"childrenFailed"`
	ChildrenSkipped   int               `json:"childrenSkipped"`
	Failures          map[string]string `json:"failures,omitempty"`
	// Error is set when the invitations were visited but the tender itself could not be cancelled.
	Error             *Error            `json:"error,omitempty"`
}

type BroadcastResult struct {
	Recipients int               `json:"recipients"`
	Sent       int               `json:"sent"`
	Failed     int               `json:"failed"`
	NoOp       bool              `json:"noOp"`
	Failures   map[string]string `json:"failures,omitempty"`
}

// Explanation is the registry entry for a category, state and role.
type Explanation struct {
	Category string `json:"category" validate:"quote_category"`
	State    string `json:"state" validate:"quote_state"`
	Role     string `json:"role" validate:"actor_role"`
	Label    string `json:"label"`
	registry.Info
}

// Error is the body of every error response.
type Error struct {
	Code     string            `json:"code" validate:"required"`
	Message  string            `json:"message"`
	Field    string            `json:"field,omitempty"`
	Failures map[string]string `json:"failures,omitempty"`
}
