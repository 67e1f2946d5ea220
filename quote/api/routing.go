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

// Package api serves the negotiation operations over HTTP with JSON bodies.
package api

import (
	"net/http"

	"github.com/luigi-borriello-dev/dome-quotes/quote/details"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/luigi-borriello-dev/dome-quotes/quote/statemachine"
)

// uploadOverhead is the room left for the multipart envelope around an attachment.
const uploadOverhead = 1 << 20

// GetRoutes returns the negotiation routes.
func GetRoutes(
	engine *statemachine.Engine,
	enricher *details.Enricher,
	attachments persistence.AttachmentReader,
	maxAttachmentSize int64,
) http.Handler {
	mux := http.NewServeMux()
	handleFunc := func(pattern, route string, h func(http.ResponseWriter, *http.Request) error) {
		mux.Handle(pattern, WrapHandlerWithMetrics(route, WrapHandlerWithError(h)))
	}

	qh := quoteHandlers{
		engine:         engine,
		enricher:       enricher,
		attachments:    attachments,
		maxUploadBytes: maxAttachmentSize + uploadOverhead,
	}

	handleFunc("GET /quotes", "quotes", qh.listHandler)
	handleFunc("GET /quotes/{id}", "quote", qh.getHandler)
	handleFunc("GET /quotes/{id}/actions", "quote_actions", qh.actionsHandler)
	handleFunc("POST /quotes/{id}/transitions", "quote_transitions", qh.transitionHandler)
	handleFunc("PUT /quotes/{id}/dates/{kind}", "quote_dates", qh.dateHandler)
	handleFunc("POST /quotes/{id}/notes", "quote_notes", qh.noteHandler)
	handleFunc("PUT /quotes/{id}/attachment", "quote_attachment_upload", qh.uploadHandler)
	handleFunc("GET /quotes/{id}/attachment", "quote_attachment", qh.downloadHandler)
	handleFunc("POST /tenders/{id}/cancellation", "tender_cancellation", qh.cancellationHandler)
	handleFunc("POST /tenders/{id}/broadcast", "tender_broadcast", qh.broadcastHandler)
	handleFunc("GET /explain", "explain", qh.explainHandler)

	return mux
}
