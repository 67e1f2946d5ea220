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

package statemachine

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/registry"
)

const pdfMIMEType = "application/pdf"

var validate = validator.New(validator.WithRequiredStructEnabled())

type uploadedFile struct {
	Name     string `validate:"required,max=255"`
	MIMEType string `validate:"required,eq=application/pdf"`
	Size     int    `validate:"gt=0"`
}

// UploadResult is the outcome of an upload. The upload itself succeeded, AutoApproveErr is set
// when the follow-up transition to approved was attempted and failed.
type UploadResult struct {
	Negotiation    *quote.Negotiation
	AutoApproved   bool
	AutoApproveErr error
}

// UploadAttachment stores a PDF on the negotiation, replacing any previous one. A seller's upload
// on an inProgress tailored or tender negotiation also submits it, moving it to approved.
func (e *Engine) UploadAttachment(
	ctx context.Context, id string, actor quote.Actor, file quote.File,
) (*UploadResult, error) {
	if err := e.checkFile(file); err != nil {
		return nil, err
	}
	n, err := e.gateway.GetNegotiation(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx, logger := logging.InjectLabels(ctx, append(
		n.GetLogFields(""), "actor_id", actor.ID, "actor_role", actor.Role, "file_name", file.Name)...)

	v := variantOf(n.GetCategory())
	if v == nil {
		return nil, quote.Invalid("category", "unknown category %q", n.GetCategory())
	}
	if !isParty(n, actor) {
		return nil, quote.Invalid("actor", "%s", strangerReason(n, actor))
	}
	if n.GetState().Terminal() {
		return nil, quote.Invalid("state", "cannot upload: negotiation is already %s", n.GetState())
	}
	env, err := e.environment(ctx, n)
	if err != nil {
		return nil, err
	}
	if v.needsCoordinator() && env.coordinator == nil {
		return nil, quote.Invalid("externalId", "tender %s does not exist", n.GetExternalID())
	}
	if err := v.checkUpload(n, actor, env); err != nil {
		return nil, err
	}

	current, err := e.gateway.StoreAttachment(ctx, id, file)
	if err != nil {
		return nil, err
	}
	logger.Info("Attachment stored", "size", len(file.Content))

	noted, err := e.gateway.AppendNote(ctx, id, quote.NewNote(actor.ID, registry.AttachmentUploadNote(file.Name), e.now()))
	if err != nil {
		logger.Warn("Could not record upload note", "err", err)
	} else {
		current = noted
	}

	res := &UploadResult{Negotiation: current}
	if !v.autoApproves() || current.GetState() != quote.StateInProgress {
		return res, nil
	}
	if err := e.check(current, actor, quote.StateApproved, env); err != nil {
		res.AutoApproveErr = err
		logger.Warn("Attachment stored but the negotiation could not be approved", "err", err)
		return res, nil
	}
	approved, err := e.commit(ctx, current, actor, quote.StateApproved)
	if err != nil {
		res.AutoApproveErr = err
		logger.Warn("Attachment stored but the negotiation could not be approved", "err", err)
		return res, nil
	}
	res.Negotiation = approved
	res.AutoApproved = true
	return res, nil
}

func (e *Engine) checkFile(file quote.File) error {
	err := validate.Struct(uploadedFile{Name: file.Name, MIMEType: file.MIMEType, Size: len(file.Content)})
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fe := verrs[0]
		switch fe.Field() {
		case "MIMEType":
			return quote.Invalid("mimeType", "only %s files are accepted, got %q", pdfMIMEType, file.MIMEType)
		case "Size":
			return quote.Invalid("content", "file is empty")
		default:
			return quote.Invalid("name", "file name fails %s", fe.Tag())
		}
	}
	if err != nil {
		return fmt.Errorf("could not validate file: %w", err)
	}
	if int64(len(file.Content)) > e.maxAttachmentSize {
		return &quote.ValidationError{
			Field:  "content",
			Reason: fmt.Sprintf("file is %d bytes, the limit is %d", len(file.Content), e.maxAttachmentSize),
			Cause:  quote.ErrTooLarge,
		}
	}
	if !mimetype.Detect(file.Content).Is(pdfMIMEType) {
		return quote.Invalid("content", "file content is not a PDF document")
	}
	return nil
}
