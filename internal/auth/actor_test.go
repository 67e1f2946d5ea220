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

package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luigi-borriello-dev/dome-quotes/internal/auth"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/stretchr/testify/assert"
)

func TestActorInjector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		id, role string
		status   int
		want     *quote.Actor
	}{
		{"no actor", "", "", http.StatusOK, nil},
		{"buyer", "did:elsi:B1", "buyer", http.StatusOK, &quote.Actor{ID: "did:elsi:B1", Role: quote.RoleBuyer}},
		{"provider alias", "did:elsi:S1", "provider", http.StatusOK, &quote.Actor{ID: "did:elsi:S1", Role: quote.RoleSeller}},
		{"bad role", "did:elsi:S1", "admin", http.StatusBadRequest, nil},
		{"id without role", "did:elsi:S1", "", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got *quote.Actor
			h := auth.ActorInjector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if a, ok := auth.ExtractActor(r.Context()); ok {
					got = &a
				}
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			auth.SetHeaders(req.Header, quote.Actor{ID: tt.id, Role: quote.Role(tt.role)})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.want, got)
		})
	}
}
