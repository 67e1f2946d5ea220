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

package api

import (
	"errors"
	"net/http"

	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/shared"
)

// HTTPReturnError is an error that knows how it is rendered over HTTP.
type HTTPReturnError interface {
	error
	StatusCode() int
	Code() string
	Message() string
	Field() string
	Failures() map[string]string
}

type apiError struct {
	status   int
	code     string
	message  string
	field    string
	failures map[string]string
	err      error
}

func (e apiError) Error() string               { return e.err.Error() }
func (e apiError) Unwrap() error               { return e.err }
func (e apiError) StatusCode() int             { return e.status }
func (e apiError) Code() string                { return e.code }
func (e apiError) Message() string             { return e.message }
func (e apiError) Field() string               { return e.field }
func (e apiError) Failures() map[string]string { return e.failures }

var errNoActor = errors.New("request has no actor")

// toHTTPError maps the engine's error taxonomy to responses. Errors outside of it become nil and
// are answered with a generic 500.
func toHTTPError(err error) HTTPReturnError {
	var (
		httpErr    HTTPReturnError
		validation *quote.ValidationError
		transition *quote.TransitionError
		partial    *quote.PartialFailureError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, errNoActor):
		return apiError{http.StatusUnauthorized, "no-actor", "X-Actor-ID and X-Actor-Role headers are required", "", nil, err}
	case errors.As(err, &validation) && errors.Is(err, quote.ErrTooLarge):
		return apiError{http.StatusRequestEntityTooLarge, "too-large", validation.Reason, validation.Field, nil, err}
	case errors.As(err, &validation):
		return apiError{http.StatusBadRequest, "validation", validation.Reason, validation.Field, nil, err}
	case errors.Is(err, quote.ErrNotFound):
		return apiError{http.StatusNotFound, "not-found", err.Error(), "", nil, err}
	case errors.As(err, &transition):
		return apiError{http.StatusConflict, "invalid-transition", transition.Reason, "", nil, err}
	case errors.Is(err, quote.ErrConflictingUpdate):
		return apiError{
			http.StatusConflict, "conflicting-update",
			"the negotiation was changed concurrently, reload it and try again", "", nil, err,
		}
	case errors.As(err, &partial):
		return apiError{http.StatusMultiStatus, "partial-failure", err.Error(), "", failureStrings(partial.Failures), err}
	default:
		return nil
	}
}

func failureStrings(failures map[string]error) map[string]string {
	if len(failures) == 0 {
		return nil
	}
	out := make(map[string]string, len(failures))
	for id, err := range failures {
		out[id] = err.Error()
	}
	return out
}

// errorDoc renders err as the error document and status it is answered with.
func errorDoc(r *http.Request, err error) (int, shared.Error) {
	logger := logging.Extract(r.Context())
	httpErr := toHTTPError(err)
	if httpErr == nil {
		logger.Error("HTTP handler returned error", "err", err)
		return http.StatusInternalServerError, shared.Error{
			Code:    "internal",
			Message: "Internal Server Error",
		}
	}
	logger.Info("Request refused", "status", httpErr.StatusCode(), "code", httpErr.Code(), "err", err)
	return httpErr.StatusCode(), shared.Error{
		Code:     httpErr.Code(),
		Message:  httpErr.Message(),
		Field:    httpErr.Field(),
		Failures: httpErr.Failures(),
	}
}

// WrapHandlerWithError wraps a http handler that returns an error into a more generic
// http.Handler. Errors from the engine are rendered with their status and code, anything else
// becomes a 500 with a generic message.
func WrapHandlerWithError(h func(w http.ResponseWriter, r *http.Request) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		status, doc := errorDoc(r, err)
		if err := shared.EncodeValid(w, r, status, doc); err != nil {
			logging.Extract(r.Context()).Error("Error while encoding HTTP error", "err", err)
		}
	})
}
