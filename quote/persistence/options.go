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

package persistence

import (
	"fmt"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
)

// Filter is the set of conditions a query applies, empty fields match everything.
type Filter struct {
	Category   quote.Category
	ExternalID string
	BuyerID    string
	State      quote.State
}

// QueryOption sets one condition of a query.
type QueryOption func(*Filter)

func WithCategory(c quote.Category) QueryOption {
	return func(f *Filter) { f.Category = c }
}

func WithExternalID(id string) QueryOption {
	return func(f *Filter) { f.ExternalID = id }
}

func WithBuyerID(id string) QueryOption {
	return func(f *Filter) { f.BuyerID = id }
}

func WithState(s quote.State) QueryOption {
	return func(f *Filter) { f.State = s }
}

// ChildrenOf selects the tender children of a coordinator, scoped to one buyer.
func ChildrenOf(coordinatorID, buyerID string) []QueryOption {
	return []QueryOption{
		WithCategory(quote.CategoryTender),
		WithExternalID(coordinatorID),
		WithBuyerID(buyerID),
	}
}

// NewFilter applies the options.
func NewFilter(opts ...QueryOption) Filter {
	var f Filter
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Match reports if the negotiation satisfies every condition.
func (f Filter) Match(n *quote.Negotiation) bool {
	switch {
	case f.Category != "" && n.GetCategory() != f.Category:
		return false
	case f.ExternalID != "" && n.GetExternalID() != f.ExternalID:
		return false
	case f.BuyerID != "" && n.BuyerID() != f.BuyerID:
		return false
	case f.State != "" && n.GetState() != f.State:
		return false
	}
	return true
}

// CheckFile validates the parts of a file every backend needs.
func CheckFile(file quote.File) error {
	if file.Name == "" {
		return quote.Invalid("name", "file name is empty")
	}
	if len(file.Content) == 0 {
		return quote.Invalid("content", "file is empty")
	}
	return nil
}

// NewAttachment builds the reference recorded for a stored file.
func NewAttachment(id string, file quote.File) quote.Attachment {
	return quote.Attachment{
		Name:       file.Name,
		MIMEType:   file.MIMEType,
		Size:       int64(len(file.Content)),
		Ref:        fmt.Sprintf("attachment-%s", id),
		UploadedAt: time.Now().UTC(),
	}
}
