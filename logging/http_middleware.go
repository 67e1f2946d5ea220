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

package logging

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the id labelling every log line of a request. An incoming value is kept
// so that ids can be followed across services.
const RequestIDHeader = "X-Request-ID"

// NewMiddleware returns a middleware putting a request scoped logger in the context. The logger is
// labelled with the request id, the route and the acting party when one is given.
func NewMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			args := []any{"request_id", requestID, "method", r.Method, "path", r.URL.Path}
			if r.URL.RawQuery != "" {
				args = append(args, "query", r.URL.RawQuery)
			}
			if actor := r.Header.Get("X-Actor-ID"); actor != "" {
				args = append(args, "actor_id", actor, "actor_role", r.Header.Get("X-Actor-Role"))
			}
			next.ServeHTTP(w, r.WithContext(Inject(r.Context(), logger.With(args...))))
		})
	}
}
