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

package authforwarder_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luigi-borriello-dev/dome-quotes/internal/authforwarder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwarding(t *testing.T) {
	t.Parallel()
	var seen []string
	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
	}))
	defer directory.Close()
	client := &http.Client{Transport: authforwarder.AuthRoundTripper{}}

	handler := authforwarder.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out, err := http.NewRequestWithContext(r.Context(), http.MethodGet, directory.URL, nil)
		require.NoError(t, err)
		if r.URL.Query().Get("own") != "" {
			out.Header.Set("Authorization", "Bearer own")
		}
		resp, err := client.Do(out)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}))

	for _, tc := range []struct {
		target string
		auth   string
	}{
		{"/", "Bearer caller"},
		{"/", ""},
		{"/?own=1", "Bearer caller"},
	} {
		req := httptest.NewRequest(http.MethodGet, tc.target, nil)
		if tc.auth != "" {
			req.Header.Set("Authorization", tc.auth)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, []string{"Bearer caller", "", "Bearer own"}, seen)
}
