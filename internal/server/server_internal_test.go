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

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCommand() *command {
	return &command{
		ListenAddr: "127.0.0.1",
		Port:       8080,
		GRPCPort:   8081,
		StorageConfig: StorageConfig{
			PersistenceBackend: BackendBadger,
			BadgerMemory:       true,
			LockTimeout:        time.Second,
		},
		Workers:           2,
		ChildTimeout:      time.Second,
		MaxAttachmentSize: 1 << 20,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	require.NoError(t, validCommand().validate())

	for _, tc := range []struct {
		name   string
		change func(c *command)
	}{
		{"bad port", func(c *command) { c.Port = 0 }},
		{"same ports", func(c *command) { c.GRPCPort = c.Port }},
		{"unknown backend", func(c *command) { c.PersistenceBackend = "mongo" }},
		{"postgres without dsn", func(c *command) { c.PersistenceBackend = BackendPostgres }},
		{"badger without path", func(c *command) { c.BadgerMemory = false }},
		{"sqlite without path", func(c *command) { c.PersistenceBackend = BackendSQLite }},
		{"zero lock timeout", func(c *command) { c.LockTimeout = 0 }},
		{"zero workers", func(c *command) { c.Workers = 0 }},
		{"negative child timeout", func(c *command) { c.ChildTimeout = -time.Second }},
		{"directory not a URL", func(c *command) { c.DirectoryURL = "catalog:8080" }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := validCommand()
			tc.change(c)
			assert.Error(t, c.validate())
		})
	}
}

func TestOpenStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for _, cfg := range []StorageConfig{
		{PersistenceBackend: BackendBadger, BadgerMemory: true, LockTimeout: time.Second},
		{PersistenceBackend: BackendSQLite, SQLiteMemory: true, LockTimeout: time.Second},
	} {
		t.Run(cfg.PersistenceBackend, func(t *testing.T) {
			t.Parallel()
			provider, err := OpenStorage(ctx, cfg)
			require.NoError(t, err)
			defer func() { require.NoError(t, provider.Close()) }()

			n := quote.New("q1", quote.CategoryTailored, []quote.RelatedParty{{Role: quote.PartyBuyer, ID: "b1"}})
			require.NoError(t, provider.PutNegotiation(ctx, n))
			got, err := provider.GetNegotiation(ctx, "q1")
			require.NoError(t, err)
			assert.Equal(t, "b1", got.BuyerID())
		})
	}
}

func TestContentTypeMiddleware(t *testing.T) {
	t.Parallel()
	handler := contentTypeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for _, tc := range []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"get", http.MethodGet, "", "", http.StatusNoContent},
		{"empty post", http.MethodPost, "", "", http.StatusNoContent},
		{"json", http.MethodPost, "{}", "application/json; charset=utf-8", http.StatusNoContent},
		{"multipart", http.MethodPut, "x", "multipart/form-data; boundary=b", http.StatusNoContent},
		{"text", http.MethodPost, "hi", "text/plain", http.StatusUnsupportedMediaType},
		{"missing", http.MethodPost, "{}", "", http.StatusUnsupportedMediaType},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tc.method, "/quotes/q1/notes", strings.NewReader(tc.body))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
