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

package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	lvl, err := logging.ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
	_, err = logging.ParseLevel("loud")
	assert.Error(t, err)
	assert.Panics(t, func() { logging.NewWithWriter("loud", false, &bytes.Buffer{}) })
}

func TestInjectLabels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := logging.Inject(context.Background(), logging.NewWithWriter("debug", false, &buf))
	ctx, _ = logging.InjectLabels(ctx, "negotiation_id", "q1")
	logging.Extract(ctx).Info("hello", "state", "pending")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "q1", line["negotiation_id"])
	assert.Equal(t, "pending", line["state"])
}

func TestExtractFallsBackToDefault(t *testing.T) {
	t.Parallel()

	assert.Same(t, slog.Default(), logging.Extract(context.Background()))
}

func TestHTTPMiddlewareLabelsActor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	mw := logging.NewMiddleware(logging.NewWithWriter("info", false, &buf))
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Extract(r.Context()).Info("handled")
	}))
	req := httptest.NewRequest(http.MethodGet, "/quotes/q1", nil)
	req.Header.Set("X-Actor-ID", "did:elsi:B1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "/quotes/q1", line["path"])
	assert.Equal(t, "did:elsi:B1", line["actor_id"])
}

func TestHTTPMiddlewareRequestID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := logging.NewMiddleware(logging.NewWithWriter("info", false, &buf))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logging.Extract(r.Context()).Info("handled")
		}))

	req := httptest.NewRequest(http.MethodGet, "/quotes", nil)
	req.Header.Set(logging.RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get(logging.RequestIDHeader))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.NotContains(t, line, "actor_id")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quotes", nil))
	assert.NotEmpty(t, rec.Header().Get(logging.RequestIDHeader))
}
