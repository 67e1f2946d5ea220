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

package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/luigi-borriello-dev/dome-quotes/internal/auth"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/details"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/luigi-borriello-dev/dome-quotes/quote/registry"
	"github.com/luigi-borriello-dev/dome-quotes/quote/shared"
	"github.com/luigi-borriello-dev/dome-quotes/quote/statemachine"
)

type quoteHandlers struct {
	engine         *statemachine.Engine
	enricher       *details.Enricher
	attachments    persistence.AttachmentReader
	maxUploadBytes int64
}

func requireActor(req *http.Request) (quote.Actor, error) {
	actor, ok := auth.ExtractActor(req.Context())
	if !ok || actor.ID == "" {
		return quote.Actor{}, errNoActor
	}
	return actor, nil
}

func (qh *quoteHandlers) details(req *http.Request, n *quote.Negotiation) shared.Negotiation {
	actor, _ := auth.ExtractActor(req.Context())
	return qh.enricher.Details(req.Context(), n, actor.Role)
}

func (qh *quoteHandlers) listHandler(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	var opts []persistence.QueryOption
	if s := q.Get("category"); s != "" {
		c, err := quote.ParseCategory(s)
		if err != nil {
			return quote.Invalid("category", "%s", err)
		}
		opts = append(opts, persistence.WithCategory(c))
	}
	if s := q.Get("state"); s != "" {
		st, err := quote.ParseState(s)
		if err != nil {
			return quote.Invalid("state", "%s", err)
		}
		opts = append(opts, persistence.WithState(st))
	}
	if s := q.Get("externalId"); s != "" {
		opts = append(opts, persistence.WithExternalID(s))
	}
	if s := q.Get("buyerId"); s != "" {
		opts = append(opts, persistence.WithBuyerID(s))
	}

	negotiations, err := qh.engine.List(req.Context(), opts...)
	if err != nil {
		return err
	}
	list := shared.List{Negotiations: make([]shared.Summary, 0, len(negotiations))}
	for _, n := range negotiations {
		list.Negotiations = append(list.Negotiations, details.Summary(n))
	}
	return shared.EncodeValid(w, req, http.StatusOK, list)
}

func (qh *quoteHandlers) getHandler(w http.ResponseWriter, req *http.Request) error {
	n, err := qh.engine.Get(req.Context(), req.PathValue("id"))
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusOK, qh.details(req, n))
}

func (qh *quoteHandlers) actionsHandler(w http.ResponseWriter, req *http.Request) error {
	actor, err := requireActor(req)
	if err != nil {
		return err
	}
	id := req.PathValue("id")
	n, err := qh.engine.Get(req.Context(), id)
	if err != nil {
		return err
	}
	states, err := qh.engine.Actions(req.Context(), id, actor)
	if err != nil {
		return err
	}
	doc := shared.Actions{ID: id, Actions: make([]shared.Action, 0, len(states))}
	for _, s := range states {
		doc.Actions = append(doc.Actions, shared.Action{
			State: s.String(),
			Label: registry.Label(n.GetCategory(), s, actor.Role),
			Text:  registry.ActionText(n.GetCategory(), s, actor.Role),
		})
	}
	return shared.EncodeValid(w, req, http.StatusOK, doc)
}

func (qh *quoteHandlers) transitionHandler(w http.ResponseWriter, req *http.Request) error {
	actor, err := requireActor(req)
	if err != nil {
		return err
	}
	body, err := shared.DecodeValid[shared.TransitionRequest](req)
	if err != nil {
		return err
	}
	to, err := quote.ParseState(body.State)
	if err != nil {
		return quote.Invalid("state", "%s", err)
	}
	n, err := qh.engine.RequestTransition(req.Context(), req.PathValue("id"), actor, to)
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusOK, qh.details(req, n))
}

func (qh *quoteHandlers) dateHandler(w http.ResponseWriter, req *http.Request) error {
	actor, err := requireActor(req)
	if err != nil {
		return err
	}
	kind, err := quote.ParseDateKind(req.PathValue("kind"))
	if err != nil {
		return quote.Invalid("kind", "%s", err)
	}
	body, err := shared.DecodeValid[shared.DateRequest](req)
	if err != nil {
		return err
	}
	n, err := qh.engine.SetScheduledDate(req.Context(), req.PathValue("id"), actor, kind, body.Date)
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusOK, qh.details(req, n))
}

func (qh *quoteHandlers) noteHandler(w http.ResponseWriter, req *http.Request) error {
	actor, err := requireActor(req)
	if err != nil {
		return err
	}
	body, err := shared.DecodeValid[shared.NoteRequest](req)
	if err != nil {
		return err
	}
	n, err := qh.engine.AddNote(req.Context(), req.PathValue("id"), actor, body.Text)
	if err != nil {
		return err
	}
	return shared.EncodeValid(w, req, http.StatusCreated, qh.details(req, n))
}

func (qh *quoteHandlers) uploadHandler(w http.ResponseWriter, req *http.Request) error {
	actor, err := requireActor(req)
	if err != nil {
		return err
	}
	file, err := qh.readUpload(w, req)
	if err != nil {
		return err
	}
	res, err := qh.engine.UploadAttachment(req.Context(), req.PathValue("id"), actor, file)
	if err != nil {
		return err
	}
	doc := shared.UploadResult{
		Negotiation:  qh.details(req, res.Negotiation),
		AutoApproved: res.AutoApproved,
	}
	if res.AutoApproveErr != nil {
		doc.AutoApproveError = res.AutoApproveErr.Error()
	}
	return shared.EncodeValid(w, req, http.StatusOK, doc)
}

func (qh *quoteHandlers) readUpload(w http.ResponseWriter, req *http.Request) (quote.File, error) {
	req.Body = http.MaxBytesReader(w, req.Body, qh.maxUploadBytes)
	f, header, err := req.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return quote.File{}, &quote.ValidationError{
				Field:  "file",
				Reason: fmt.Sprintf("request is larger than %d bytes", maxErr.Limit),
				Cause:  quote.ErrTooLarge,
			}
		}
		return quote.File{}, &quote.ValidationError{Field: "file", Reason: "a multipart file field is required", Cause: err}
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return quote.File{}, fmt.Errorf("could not read upload: %w", err)
	}
	mimeType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil {
		mimeType = ""
	}
	return quote.File{Name: header.Filename, MIMEType: mimeType, Content: content}, nil
}

func (qh *quoteHandlers) downloadHandler(w http.ResponseWriter, req *http.Request) error {
	att, content, err := qh.attachments.GetAttachment(req.Context(), req.PathValue("id"))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", att.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		logging.Extract(req.Context()).Warn("Could not write attachment", "err", err)
	}
	return nil
}

func (qh *quoteHandlers) requireBuyer(req *http.Request) (quote.Actor, error) {
	actor, err := requireActor(req)
	if err != nil {
		return actor, err
	}
	if actor.Role != quote.RoleBuyer {
		return actor, apiError{
			http.StatusConflict, "invalid-transition", "only the tender owner can do this", "", nil,
			fmt.Errorf("%s %s cannot manage a tender", actor.Role, actor.ID),
		}
	}
	return actor, nil
}

// cancellationHandler answers with the cascade counts once the invitations were visited, also when
// cancelling the tender itself failed afterwards. That failure is then carried in the error field.
func (qh *quoteHandlers) cancellationHandler(w http.ResponseWriter, req *http.Request) error {
	actor, err := qh.requireBuyer(req)
	if err != nil {
		return err
	}
	res, err := qh.engine.CancelCoordinator(req.Context(), req.PathValue("id"), actor.ID)
	if res == nil {
		return err
	}
	doc := shared.CascadeResult{
		ChildrenCancelled: res.ChildrenCancelled,
		ChildrenFailed:    res.ChildrenFailed,
		ChildrenSkipped:   res.ChildrenSkipped,
		Failures:          failureStrings(res.Failures),
	}
	status := http.StatusOK
	switch {
	case err != nil && res.Negotiation == nil:
		var cause shared.Error
		status, cause = errorDoc(req, err)
		doc.Error = &cause
	case errors.Is(err, quote.ErrPartialFailure):
		status = http.StatusMultiStatus
	case err != nil:
		return err
	}
	if res.Negotiation != nil {
		n := qh.details(req, res.Negotiation)
		doc.Negotiation = &n
	}
	return shared.EncodeValid(w, req, status, doc)
}

func (qh *quoteHandlers) broadcastHandler(w http.ResponseWriter, req *http.Request) error {
	actor, err := qh.requireBuyer(req)
	if err != nil {
		return err
	}
	body, err := shared.DecodeValid[shared.BroadcastRequest](req)
	if err != nil {
		return err
	}
	res, err := qh.engine.Broadcast(req.Context(), req.PathValue("id"), actor.ID, body.Message)
	status := http.StatusOK
	if err != nil {
		if res == nil || !errors.Is(err, quote.ErrPartialFailure) {
			return err
		}
		status = http.StatusMultiStatus
	}
	return shared.EncodeValid(w, req, status, shared.BroadcastResult{
		Recipients: res.Recipients,
		Sent:       res.Sent,
		Failed:     res.Failed,
		NoOp:       res.NoOp,
		Failures:   failureStrings(res.Failures),
	})
}

func (qh *quoteHandlers) explainHandler(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	doc := shared.Explanation{Category: q.Get("category"), State: q.Get("state"), Role: q.Get("role")}
	if doc.Role == "" {
		if actor, ok := auth.ExtractActor(req.Context()); ok {
			doc.Role = actor.Role.String()
		}
	}
	if err := shared.Validate(req.Context(), doc); err != nil {
		return err
	}
	category, _ := quote.ParseCategory(doc.Category)
	state, _ := quote.ParseState(doc.State)
	role, _ := quote.ParseRole(doc.Role)
	doc.Role = role.String()
	doc.Info = qh.engine.Explain(category, state, role)
	doc.Label = registry.Label(category, state, role)
	return shared.EncodeValid(w, req, http.StatusOK, doc)
}
