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
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a negotiation id does not exist.
	ErrNotFound = errors.New("negotiation not found")
	// ErrInvalidTransition is returned when a requested edge is not permitted.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConflictingUpdate is returned when a concurrent writer raced the operation.
	// The whole operation can be retried from a fresh read.
	ErrConflictingUpdate = errors.New("conflicting update")
	// ErrValidation is returned for invalid input, no mutation has taken place.
	ErrValidation = errors.New("validation failed")
	// ErrTooLarge marks a validation error caused by an oversized attachment.
	ErrTooLarge = errors.New("attachment too large")
	// ErrPartialFailure is returned when some fan-out sub-operations failed.
	ErrPartialFailure = errors.New("partial failure")
)

// TransitionError describes a refused transition request.
type TransitionError struct {
	From     State
	To       State
	Category Category
	Role     Role
	Reason   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidTransition, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Refuse builds a TransitionError for the given negotiation.
func Refuse(n *Negotiation, to State, role Role, format string, args ...any) *TransitionError {
	return &TransitionError{
		From:     n.GetState(),
		To:       to,
		Category: n.GetCategory(),
		Role:     role,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// ValidationError describes rejected input.
type ValidationError struct {
	Field  string
	Reason string
	Cause  error
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrValidation, e.Cause}
	}
	return []error{ErrValidation}
}

// PartialFailureError aggregates the failed children of a fan-out operation.
type PartialFailureError struct {
	Operation string
	Succeeded int
	Failed    int
	Failures  map[string]error
}

func (e *PartialFailureError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("%s: %s: %d of %d children failed (%s)",
		ErrPartialFailure, e.Operation, e.Failed, e.Succeeded+e.Failed, strings.Join(ids, ", "))
}

func (e *PartialFailureError) Unwrap() error { return ErrPartialFailure }

// NotFound wraps ErrNotFound with the missing id.
func NotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Conflict wraps ErrConflictingUpdate with the contested id.
func Conflict(id string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConflictingUpdate, id, reason)
}
