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

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/luigi-borriello-dev/dome-quotes/internal/auth"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/api"
	"github.com/luigi-borriello-dev/dome-quotes/quote/details"
	"github.com/luigi-borriello-dev/dome-quotes/quote/directory"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/badger"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/persistencetest"
	"github.com/luigi-borriello-dev/dome-quotes/quote/shared"
	"github.com/luigi-borriello-dev/dome-quotes/quote/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buyerID  = "did:elsi:VATES-B1"
	sellerID = "did:elsi:VATES-S1"
	maxSize  = 1024
)

var (
	buyer   = quote.Actor{ID: buyerID, Role: quote.RoleBuyer}
	seller  = quote.Actor{ID: sellerID, Role: quote.RoleSeller}
	pdfBody = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")
)

// failingNotes fails every note append on the listed ids.
type failingNotes struct {
	persistence.Gateway
	ids map[string]bool
}

func (f failingNotes) AppendNote(ctx context.Context, id string, note quote.Note) (*quote.Negotiation, error) {
	if f.ids[id] {
		return nil, errors.New("storage unavailable")
	}
	return f.Gateway.AppendNote(ctx, id, note)
}

// racedState answers every state change on the listed ids with a conflict.
type racedState struct {
	persistence.Gateway
	ids map[string]bool
}

func (r racedState) SetState(ctx context.Context, id string, from, to quote.State) (*quote.Negotiation, error) {
	if r.ids[id] {
		return nil, quote.Conflict(id, "changed concurrently")
	}
	return r.Gateway.SetState(ctx, id, from, to)
}

type env struct {
	store  *badger.StorageProvider
	server *httptest.Server
}

func newEnv(t *testing.T, wrap func(persistence.Gateway) persistence.Gateway) *env {
	t.Helper()
	store, err := badger.New(context.Background(), true, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var gw persistence.Gateway = store
	if wrap != nil {
		gw = wrap(store)
	}
	engine := statemachine.New(gw, statemachine.WithMaxAttachmentSize(maxSize))
	enricher := details.New(store, directory.NewStatic(nil, nil))
	srv := httptest.NewServer(auth.ActorInjector(api.GetRoutes(engine, enricher, store, maxSize)))
	t.Cleanup(srv.Close)
	return &env{store: store, server: srv}
}

func (e *env) put(t *testing.T, ns ...*quote.Negotiation) {
	t.Helper()
	for _, n := range ns {
		require.NoError(t, e.store.PutNegotiation(context.Background(), n))
	}
}

func (e *env) do(t *testing.T, method, path string, actor *quote.Actor, body any) (*http.Response, []byte) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, payload)
	require.NoError(t, err)
	if actor != nil {
		auth.SetHeaders(req.Header, *actor)
	}
	return send(t, req)
}

func (e *env) upload(t *testing.T, id string, actor quote.Actor, name, mimeType string, content []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPut, e.server.URL+"/quotes/"+id+"/attachment", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	auth.SetHeaders(req.Header, actor)
	return send(t, req)
}

func send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

func tailored(id string, state quote.State) *quote.Negotiation {
	return quote.New(id, quote.CategoryTailored, persistencetest.Parties(buyerID, sellerID), quote.WithState(state))
}

func TestTailoredFlowOverHTTP(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	e.put(t, tailored("q1", quote.StatePending))

	resp, body := e.do(t, http.MethodPost, "/quotes/q1/transitions", &seller, shared.TransitionRequest{State: "inProgress"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	doc := decode[shared.Negotiation](t, body)
	assert.Equal(t, "inProgress", doc.State)
	assert.Equal(t, "request-accepted", doc.Label)
	require.NotNil(t, doc.Status)

	resp, body = e.upload(t, "q1", seller, "proposal.pdf", "application/pdf", pdfBody)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	up := decode[shared.UploadResult](t, body)
	assert.True(t, up.AutoApproved)
	assert.Equal(t, "approved", up.Negotiation.State)

	resp, body = e.do(t, http.MethodGet, "/quotes/q1/attachment", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "proposal.pdf")
	assert.Equal(t, pdfBody, body)

	resp, body = e.do(t, http.MethodGet, "/quotes/q1/actions", &buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	actions := decode[shared.Actions](t, body)
	require.Len(t, actions.Actions, 3)
	assert.Equal(t, "accepted", actions.Actions[0].State)
	assert.NotEmpty(t, actions.Actions[0].Text)

	resp, _ = e.do(t, http.MethodPost, "/quotes/q1/transitions", &buyer, shared.TransitionRequest{State: "accepted"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = e.do(t, http.MethodPost, "/quotes/q1/notes", &buyer, shared.NoteRequest{Text: "thanks"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc = decode[shared.Negotiation](t, body)
	assert.Equal(t, "thanks", doc.Notes[len(doc.Notes)-1].Text)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	e.put(t, tailored("q1", quote.StatePending))

	tests := []struct {
		name   string
		method string
		path   string
		actor  *quote.Actor
		body   any
		status int
		code   string
	}{
		{"no actor", http.MethodPost, "/quotes/q1/transitions", nil, shared.TransitionRequest{State: "inProgress"}, http.StatusUnauthorized, "no-actor"},
		{"missing", http.MethodGet, "/quotes/nope", nil, nil, http.StatusNotFound, "not-found"},
		{"wrong role", http.MethodPost, "/quotes/q1/transitions", &buyer, shared.TransitionRequest{State: "inProgress"}, http.StatusConflict, "invalid-transition"},
		{"unknown state", http.MethodPost, "/quotes/q1/transitions", &seller, map[string]string{"state": "done"}, http.StatusBadRequest, "validation"},
		{"unknown date kind", http.MethodPut, "/quotes/q1/dates/someday", &seller, map[string]string{"date": "2099-01-01T00:00:00Z"}, http.StatusBadRequest, "validation"},
		{"empty note", http.MethodPost, "/quotes/q1/notes", &buyer, shared.NoteRequest{}, http.StatusBadRequest, "validation"},
		{"seller cancels tender", http.MethodPost, "/tenders/q1/cancellation", &seller, nil, http.StatusConflict, "invalid-transition"},
		{"bad filter", http.MethodGet, "/quotes?category=auction", nil, nil, http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, body := e.do(t, tt.method, tt.path, tt.actor, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			assert.Equal(t, tt.code, decode[shared.Error](t, body).Code)
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	e.put(t, tailored("q1", quote.StateInProgress))

	content := append(bytes.Clone(pdfBody), bytes.Repeat([]byte{' '}, maxSize)...)
	resp, body := e.upload(t, "q1", seller, "big.pdf", "application/pdf", content)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode, string(body))
	assert.Equal(t, "too-large", decode[shared.Error](t, body).Code)

	resp, body = e.upload(t, "q1", seller, "notes.txt", "text/plain", []byte("hello"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
	assert.Equal(t, "mimeType", decode[shared.Error](t, body).Field)
}

func TestDatesOverHTTP(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	e.put(t, tailored("q1", quote.StatePending))

	resp, body := e.do(t, http.MethodPut, "/quotes/q1/dates/expected", &seller,
		map[string]string{"date": "2099-01-31T00:00:00Z"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	doc := decode[shared.Negotiation](t, body)
	require.NotNil(t, doc.Dates.Expected)
	assert.Equal(t, 2099, doc.Dates.Expected.Year())
}

func tender(t *testing.T, e *env, children int) {
	t.Helper()
	e.put(t, quote.New("tender-1", quote.CategoryCoordinator,
		[]quote.RelatedParty{{Role: quote.PartyBuyer, ID: buyerID}}, quote.WithState(quote.StateApproved)))
	for _, id := range []string{"inv-a", "inv-b", "inv-c"}[:children] {
		e.put(t, quote.New(id, quote.CategoryTender, persistencetest.Parties(buyerID, sellerID),
			quote.WithState(quote.StateInProgress), quote.WithExternalID("tender-1")))
	}
}

func TestCancellationOverHTTP(t *testing.T) {
	t.Parallel()

	e := newEnv(t, func(gw persistence.Gateway) persistence.Gateway {
		return failingNotes{Gateway: gw, ids: map[string]bool{}}
	})
	tender(t, e, 2)

	resp, body := e.do(t, http.MethodPost, "/tenders/tender-1/cancellation", &buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	res := decode[shared.CascadeResult](t, body)
	assert.Equal(t, 2, res.ChildrenCancelled)
	require.NotNil(t, res.Negotiation)
	assert.Equal(t, "cancelled", res.Negotiation.State)
}

func TestCancellationKeepsCountsWhenTenderFails(t *testing.T) {
	t.Parallel()

	e := newEnv(t, func(gw persistence.Gateway) persistence.Gateway {
		return racedState{Gateway: gw, ids: map[string]bool{"tender-1": true}}
	})
	tender(t, e, 3)

	resp, body := e.do(t, http.MethodPost, "/tenders/tender-1/cancellation", &buyer, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(body))
	res := decode[shared.CascadeResult](t, body)
	assert.Equal(t, 3, res.ChildrenCancelled)
	assert.Zero(t, res.ChildrenFailed)
	assert.Nil(t, res.Negotiation)
	require.NotNil(t, res.Error)
	assert.Equal(t, "conflicting-update", res.Error.Code)

	for _, id := range []string{"inv-a", "inv-b", "inv-c"} {
		n, err := e.store.GetNegotiation(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, quote.StateCancelled, n.GetState(), id)
	}
	n, err := e.store.GetNegotiation(context.Background(), "tender-1")
	require.NoError(t, err)
	assert.Equal(t, quote.StateApproved, n.GetState())
}

func TestTenderOwnershipOverHTTP(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	tender(t, e, 1)
	other := quote.Actor{ID: "did:elsi:VATES-B9", Role: quote.RoleBuyer}

	resp, body := e.do(t, http.MethodPost, "/tenders/tender-1/cancellation", &other, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(body))
	assert.Equal(t, "invalid-transition", decode[shared.Error](t, body).Code)

	resp, body = e.do(t, http.MethodPost, "/tenders/tender-1/broadcast", &other, shared.BroadcastRequest{Message: "hello"})
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(body))
	assert.Equal(t, "invalid-transition", decode[shared.Error](t, body).Code)
}

func TestBroadcastPartialFailureOverHTTP(t *testing.T) {
	t.Parallel()

	e := newEnv(t, func(gw persistence.Gateway) persistence.Gateway {
		return failingNotes{Gateway: gw, ids: map[string]bool{"inv-b": true}}
	})
	tender(t, e, 3)

	resp, body := e.do(t, http.MethodPost, "/tenders/tender-1/broadcast", &buyer, shared.BroadcastRequest{Message: "hello"})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode, string(body))
	res := decode[shared.BroadcastResult](t, body)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Failures["inv-b"], "storage unavailable")
}

func TestListAndExplain(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	tender(t, e, 2)
	e.put(t, tailored("q1", quote.StatePending))

	resp, body := e.do(t, http.MethodGet, "/quotes?category=tender&externalId=tender-1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	list := decode[shared.List](t, body)
	assert.Len(t, list.Negotiations, 2)

	resp, body = e.do(t, http.MethodGet, "/explain?category=tailored&state=pending&role=customer", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	ex := decode[shared.Explanation](t, body)
	assert.Equal(t, "buyer", ex.Role)
	assert.Equal(t, "request-sent-awaiting-feedback", ex.Label)
	assert.NotEmpty(t, ex.Explanation)

	resp, _ = e.do(t, http.MethodGet, "/explain?category=tailored&state=pending", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/explain?category=tailored&state=pending", &seller, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "request-received-pending-feedback"))
}
