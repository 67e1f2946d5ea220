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
	"fmt"
	"mime"
	"net/http"

	"github.com/luigi-borriello-dev/dome-quotes/quote/shared"
)

// contentTypeMiddleware refuses request bodies that are neither JSON nor a multipart upload.
func contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength == 0 || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err == nil && (mediaType == "application/json" || mediaType == "multipart/form-data") {
			next.ServeHTTP(w, r)
			return
		}
		if err := shared.EncodeValid(w, r, http.StatusUnsupportedMediaType, shared.Error{
			Code:    "unsupported-media-type",
			Message: fmt.Sprintf("Unsupported content-type: %s", r.Header.Get("Content-Type")),
		}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
