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

package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"valid", `{"state":"accepted"}`, ""},
		{"unknown state", `{"state":"done"}`, "state"},
		{"missing state", `{}`, "state"},
		{"malformed", `{"state":`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			got, err := shared.DecodeValid[shared.TransitionRequest](req)
			if tt.field == "" {
				require.NoError(t, err)
				assert.Equal(t, "accepted", got.State)
				return
			}
			require.ErrorIs(t, err, quote.ErrValidation)
			var verr *quote.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestUnmarshalAndValidateRoles(t *testing.T) {
	t.Parallel()

	_, err := shared.UnmarshalAndValidate[shared.Explanation](context.Background(),
		[]byte(`{"category":"tender","state":"pending","role":"customer"}`))
	assert.NoError(t, err)

	_, err = shared.UnmarshalAndValidate[shared.Explanation](context.Background(),
		[]byte(`{"category":"tender","state":"pending","role":"admin"}`))
	assert.ErrorIs(t, err, quote.ErrValidation)
}

func TestEncodeValidRefusesInvalidDocuments(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	err := shared.EncodeValid(rec, req, http.StatusOK, shared.Summary{ID: "q1", Category: "nope", State: "pending"})
	require.ErrorIs(t, err, quote.ErrValidation)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	err = shared.EncodeValid(rec, req, http.StatusCreated, shared.Summary{ID: "q1", Category: "tender", State: "pending"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestHTTPRequester(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "did:elsi:B1", r.Header.Get("X-Actor-ID"))
		if r.URL.Path == "/missing" {
			http.Error(w, `{"code":"not-found"}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	hr := &shared.HTTPRequester{Header: http.Header{"X-Actor-Id": {"did:elsi:B1"}}}
	body, err := hr.SendHTTPRequest(context.Background(), http.MethodGet, shared.MustParseURL(srv.URL+"/ok"), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	_, err = hr.SendHTTPRequest(context.Background(), http.MethodGet, shared.MustParseURL(srv.URL+"/missing"), nil)
	var serr *shared.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)
}
