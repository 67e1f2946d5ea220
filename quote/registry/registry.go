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

// Package registry holds the static status tables: per (category, state, role) explanations,
// available actions and display labels. The tables are immutable after package init.
package registry

import (
	"fmt"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
)

const (
	// FallbackExplanation is returned when no entry exists.
	FallbackExplanation = "Status information unavailable."
	// FallbackActions is returned when no entry exists.
	FallbackActions = ""

	placeholder = "..."
)

// Audit note templates.
const (
	statusChangeNote     = "Status changed to: %s"
	attachmentUploadNote = "Attachment uploaded: %s"
)

// StatusChangeNote is the note text recorded for a transition.
func StatusChangeNote(s quote.State) string { return fmt.Sprintf(statusChangeNote, s) }

// AttachmentUploadNote is the note text recorded for an upload.
func AttachmentUploadNote(name string) string { return fmt.Sprintf(attachmentUploadNote, name) }

// Info is the explanation shown to one role for one state.
type Info struct {
	Explanation      string `json:"explanation"`
	AvailableActions string `json:"availableActions"`
}

type key struct {
	category quote.Category
	state    quote.State
	role     quote.Role
}

type roleInfo struct {
	provider Info
	buyer    Info
}

// Explain returns the explanation for the combination, or the fallback when none is registered.
func Explain(category quote.Category, state quote.State, role quote.Role) Info {
	info, ok := explanations[key{category, state, role}]
	if !ok || info.Explanation == placeholder {
		return Info{Explanation: FallbackExplanation, AvailableActions: FallbackActions}
	}
	if info.AvailableActions == placeholder {
		info.AvailableActions = FallbackActions
	}
	return info
}

// Label returns the display label for the combination, or the state name when none is registered.
func Label(category quote.Category, state quote.State, role quote.Role) string {
	if l, ok := labels[key{category, state, role}]; ok {
		return l
	}
	return state.String()
}

var explanations = map[key]Info{}

func register(category quote.Category, table map[quote.State]roleInfo) {
	for state, ri := range table {
		explanations[key{category, state, quote.RoleSeller}] = ri.provider
		explanations[key{category, state, quote.RoleBuyer}] = ri.buyer
	}
}

func init() {
	register(quote.CategoryTailored, tailoredMessages)
	register(quote.CategoryTender, tenderMessages)
	register(quote.CategoryCoordinator, coordinatorMessages)
	registerLabels()
}
