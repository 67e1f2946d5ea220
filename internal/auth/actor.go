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

// Package auth contains the actor middleware. Callers identify themselves with headers,
// authenticating them is left to the gateway in front of the service.
package auth

import (
	"context"
	"net/http"

	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
)

type contextKeyType string

const contextKey contextKeyType = "actor"

// Headers carrying the actor.
const (
	ActorIDHeader   = "X-Actor-ID"
	ActorRoleHeader = "X-Actor-Role"
)

// ActorInjector puts the actor named by the request headers into the context. Requests without
// actor headers pass through without one, a malformed role is refused with 400.
func ActorInjector(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(ActorIDHeader)
		rawRole := req.Header.Get(ActorRoleHeader)
		if id == "" && rawRole == "" {
			next.ServeHTTP(w, req)
			return
		}
		role, err := quote.ParseRole(rawRole)
		if err != nil {
			logging.Extract(req.Context()).Info("Refusing request with invalid actor role", "role", rawRole)
			http.Error(w, "invalid actor role", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, req.WithContext(Inject(req.Context(), quote.Actor{ID: id, Role: role})))
	})
}

// Inject stores the actor in the context.
func Inject(ctx context.Context, actor quote.Actor) context.Context {
	return context.WithValue(ctx, contextKey, actor)
}

// ExtractActor returns the actor of the request, if any.
func ExtractActor(ctx context.Context) (quote.Actor, bool) {
	actor, ok := ctx.Value(contextKey).(quote.Actor)
	return actor, ok
}

// SetHeaders sets the actor headers on an outgoing request header.
func SetHeaders(h http.Header, actor quote.Actor) {
	if actor.ID != "" {
		h.Set(ActorIDHeader, actor.ID)
	}
	if actor.Role != "" {
		h.Set(ActorRoleHeader, actor.Role.String())
	}
}
