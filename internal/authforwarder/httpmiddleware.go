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

// Package authforwarder passes the "Authorization" header of an incoming request on to the
// outgoing HTTP requests made while serving it, such as the directory lookups.
package authforwarder

import (
	"context"
	"net/http"

	"github.com/luigi-borriello-dev/dome-quotes/logging"
)

type contextKeyType string

const contextKey contextKeyType = "authheader"

// HTTPMiddleware injects the authorization header into the context.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if authContents := req.Header.Get("Authorization"); authContents != "" {
			req = req.WithContext(Inject(req.Context(), authContents))
		}
		next.ServeHTTP(w, req)
	})
}

// Inject stores an authorization value in the context.
func Inject(ctx context.Context, authContents string) context.Context {
	return context.WithValue(ctx, contextKey, authContents)
}

// ExtractAuthorization returns the stored authorization value, or an empty string.
func ExtractAuthorization(ctx context.Context) string {
	val, _ := ctx.Value(contextKey).(string)
	return val
}

// AuthRoundTripper is a http client "middleware" that extracts the authorization value out of the
// context and sets it on the request, unless the request already carries one.
type AuthRoundTripper struct {
	Proxied http.RoundTripper
}

// RoundTrip does the actual injection.
func (art AuthRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	proxied := art.Proxied
	if proxied == nil {
		proxied = http.DefaultTransport
	}
	authVal := ExtractAuthorization(req.Context())
	if authVal == "" || req.Header.Get("Authorization") != "" {
		return proxied.RoundTrip(req)
	}
	logging.Extract(req.Context()).Debug("Forwarding authorization", "url", req.URL.String())
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", authVal)
	return proxied.RoundTrip(req)
}
