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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	quoteshared "github.com/luigi-borriello-dev/dome-quotes/quote/shared"
)

const requestTimeout = 60 * time.Second

// APIError is an error document returned by the server.
type APIError struct {
	StatusCode int
	Doc        quoteshared.Error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d): %s", e.Doc.Code, e.StatusCode, e.Doc.Message)
	if e.Doc.Field != "" {
		fmt.Fprintf(&b, " [field %s]", e.Doc.Field)
	}
	ids := make([]string, 0, len(e.Doc.Failures))
	for id := range e.Doc.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&b, "\n  %s: %s", id, e.Doc.Failures[id])
	}
	return b.String()
}

// QuoteClient talks to the negotiation HTTP API.
type QuoteClient struct {
	base      *url.URL
	requester *quoteshared.HTTPRequester
}

// NewQuoteClient returns a client for the API at base using the given requester.
func NewQuoteClient(base *url.URL, requester *quoteshared.HTTPRequester) *QuoteClient {
	return &QuoteClient{base: base, requester: requester}
}

func (c *QuoteClient) url(query url.Values, elem ...string) *url.URL {
	u := c.base.JoinPath(elem...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u
}

func (c *QuoteClient) send(ctx context.Context, method string, u *url.URL, body any) ([]byte, error) {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("could not encode request: %w", err)
		}
	}
	b, err := c.requester.SendHTTPRequest(ctx, method, u, reqBody)
	return b, apiError(err)
}

func apiError(err error) error {
	var statusErr *quoteshared.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	var doc quoteshared.Error
	if jsonErr := json.Unmarshal(statusErr.Body, &doc); jsonErr != nil || doc.Code == "" {
		return err
	}
	return &APIError{StatusCode: statusErr.StatusCode, Doc: doc}
}

func do[T any](ctx context.Context, c *QuoteClient, method string, u *url.URL, body any) (T, error) {
	var zero T
	b, err := c.send(ctx, method, u, body)
	if err != nil {
		return zero, err
	}
	return quoteshared.UnmarshalAndValidate[T](ctx, b)
}

// Get returns one negotiation.
func (c *QuoteClient) Get(ctx context.Context, id string) (quoteshared.Negotiation, error) {
	return do[quoteshared.Negotiation](ctx, c, http.MethodGet, c.url(nil, "quotes", id), nil)
}

// List returns the negotiations matching the filter. Known keys are category, state, externalId
// and buyerId.
func (c *QuoteClient) List(ctx context.Context, filter url.Values) (quoteshared.List, error) {
	return do[quoteshared.List](ctx, c, http.MethodGet, c.url(filter, "quotes"), nil)
}

// Actions returns the states the actor can move the negotiation to.
func (c *QuoteClient) Actions(ctx context.Context, id string) (quoteshared.Actions, error) {
	return do[quoteshared.Actions](ctx, c, http.MethodGet, c.url(nil, "quotes", id, "actions"), nil)
}

// Explain describes a state for a role. An empty role uses the actor's.
func (c *QuoteClient) Explain(ctx context.Context, category, state, role string) (quoteshared.Explanation, error) {
	q := url.Values{"category": {category}, "state": {state}}
	if role != "" {
		q.Set("role", role)
	}
	return do[quoteshared.Explanation](ctx, c, http.MethodGet, c.url(q, "explain"), nil)
}

// Transition asks for a state change.
func (c *QuoteClient) Transition(ctx context.Context, id, state string) (quoteshared.Negotiation, error) {
	return do[quoteshared.Negotiation](ctx, c, http.MethodPost, c.url(nil, "quotes", id, "transitions"),
		quoteshared.TransitionRequest{State: state})
}

// SetDate sets one of the scheduled dates.
func (c *QuoteClient) SetDate(ctx context.Context, id, kind string, date time.Time) (quoteshared.Negotiation, error) {
	return do[quoteshared.Negotiation](ctx, c, http.MethodPut, c.url(nil, "quotes", id, "dates", kind),
		quoteshared.DateRequest{Date: date})
}

// AddNote appends a note.
func (c *QuoteClient) AddNote(ctx context.Context, id, text string) (quoteshared.Negotiation, error) {
	return do[quoteshared.Negotiation](ctx, c, http.MethodPost, c.url(nil, "quotes", id, "notes"),
		quoteshared.NoteRequest{Text: text})
}

// Upload sends an attachment as a multipart form.
func (c *QuoteClient) Upload(
	ctx context.Context, id, name, mimeType string, content []byte,
) (quoteshared.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return quoteshared.UploadResult{}, err
	}
	if _, err := part.Write(content); err != nil {
		return quoteshared.UploadResult{}, err
	}
	if err := mw.Close(); err != nil {
		return quoteshared.UploadResult{}, err
	}

	b, err := c.requester.SendRequest(ctx, http.MethodPut, c.url(nil, "quotes", id, "attachment"),
		mw.FormDataContentType(), &buf)
	if err != nil {
		return quoteshared.UploadResult{}, apiError(err)
	}
	return quoteshared.UnmarshalAndValidate[quoteshared.UploadResult](ctx, b)
}

// Download returns the attachment content.
func (c *QuoteClient) Download(ctx context.Context, id string) ([]byte, error) {
	return c.send(ctx, http.MethodGet, c.url(nil, "quotes", id, "attachment"), nil)
}

// CancelTender cancels a tender and its invitations. A partial failure is reported in the result,
// not as an error. When the tender itself could not be cancelled the counts of the invitations are
// returned next to an *APIError.
func (c *QuoteClient) CancelTender(ctx context.Context, id string) (quoteshared.CascadeResult, error) {
	b, err := c.send(ctx, http.MethodPost, c.url(nil, "tenders", id, "cancellation"), nil)
	var statusErr *quoteshared.StatusError
	if errors.As(err, &statusErr) {
		var res quoteshared.CascadeResult
		if jsonErr := json.Unmarshal(statusErr.Body, &res); jsonErr == nil && res.Error != nil {
			return res, &APIError{StatusCode: statusErr.StatusCode, Doc: *res.Error}
		}
	}
	if err != nil {
		return quoteshared.CascadeResult{}, err
	}
	return quoteshared.UnmarshalAndValidate[quoteshared.CascadeResult](ctx, b)
}

// Broadcast sends a note to every open invitation of a tender.
func (c *QuoteClient) Broadcast(ctx context.Context, id, message string) (quoteshared.BroadcastResult, error) {
	return do[quoteshared.BroadcastResult](ctx, c, http.MethodPost, c.url(nil, "tenders", id, "broadcast"),
		quoteshared.BroadcastRequest{Message: message})
}
