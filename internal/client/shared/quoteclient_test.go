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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luigi-borriello-dev/dome-quotes/internal/client/shared"
	quoteshared "github.com/luigi-borriello-dev/dome-quotes/quote/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, status int, body any) *shared.QuoteClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return shared.NewQuoteClient(quoteshared.MustParseURL(srv.URL), &quoteshared.HTTPRequester{Client: srv.Client()})
}

func TestCancelTenderKeepsCountsOnFailure(t *testing.T) {
	t.Parallel()

	client := newClient(t, http.StatusConflict, quoteshared.CascadeResult{
		ChildrenCancelled: 3,
		Error:             &quoteshared.Error{Code: "conflicting-update", Message: "reload it"},
	})
	res, err := client.CancelTender(context.Background(), "tender-1")
	var apiErr *shared.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "conflicting-update", apiErr.Doc.Code)
	assert.Equal(t, 3, res.ChildrenCancelled)
	assert.Nil(t, res.Negotiation)
}

func TestCancelTenderPlainError(t *testing.T) {
	t.Parallel()

	client := newClient(t, http.StatusConflict, quoteshared.Error{Code: "invalid-transition", Message: "only the owner"})
	res, err := client.CancelTender(context.Background(), "tender-1")
	var apiErr *shared.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid-transition", apiErr.Doc.Code)
	assert.Nil(t, res.Error)
	assert.Zero(t, res.ChildrenCancelled)
}
