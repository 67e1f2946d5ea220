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

// Package shared contains the JSON documents exchanged over HTTP and the helpers to validate them
// on the way in and out.
package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonName)
	if err := RegisterValidators(validate); err != nil {
		panic(err)
	}
}

// jsonName makes validation errors name the field as it appears on the wire.
func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func quoteState(fl validator.FieldLevel) bool {
	_, err := quote.ParseState(fl.Field().String())
	return err == nil
}

func quoteCategory(fl validator.FieldLevel) bool {
	_, err := quote.ParseCategory(fl.Field().String())
	return err == nil
}

func actorRole(fl validator.FieldLevel) bool {
	_, err := quote.ParseRole(fl.Field().String())
	return err == nil
}

func dateKind(fl validator.FieldLevel) bool {
	_, err := quote.ParseDateKind(fl.Field().String())
	return err == nil
}

// RegisterValidators registers the custom tags used by the documents of this package.
func RegisterValidators(v *validator.Validate) error {
	for tag, fn := range map[string]validator.Func{
		"quote_state":    quoteState,
		"quote_category": quoteCategory,
		"actor_role":     actorRole,
		"date_kind":      dateKind,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// EncodeValid validates v and writes it as the JSON body of the response.
func EncodeValid[T any](w http.ResponseWriter, r *http.Request, status int, v T) error {
	if err := validate.Struct(v); err != nil {
		return handleValidationError(err, logging.Extract(r.Context()))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// DecodeValid reads a JSON body into T and validates it. Both a malformed body and a failed
// validation are returned as *quote.ValidationError.
func DecodeValid[T any](r *http.Request) (T, error) {
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, &quote.ValidationError{Field: "body", Reason: "malformed JSON document", Cause: err}
	}
	if err := validate.Struct(v); err != nil {
		return v, handleValidationError(err, logging.Extract(r.Context()))
	}
	return v, nil
}

// UnmarshalAndValidate is DecodeValid for a byte slice.
func UnmarshalAndValidate[T any](ctx context.Context, b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, &quote.ValidationError{Field: "body", Reason: "malformed JSON document", Cause: err}
	}
	if err := validate.Struct(v); err != nil {
		return v, handleValidationError(err, logging.Extract(ctx))
	}
	return v, nil
}

// Validate validates a document that was not decoded from a body, such as query parameters.
func Validate(ctx context.Context, v any) error {
	if err := validate.Struct(v); err != nil {
		return handleValidationError(err, logging.Extract(ctx))
	}
	return nil
}

func handleValidationError(err error, logger *slog.Logger) error {
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		logger.Error("Invalid validation", "err", err)
		return fmt.Errorf("invalid validation: %w", err)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		logger.Error("Unknown error", "err", err)
		return err
	}
	fe := verrs[0]
	logger.Debug(
		"Validation error",
		"Namespace", fe.Namespace(),
		"Field", fe.Field(),
		"Tag", fe.Tag(),
		"Param", fe.Param(),
		"Value", fe.Value(),
	)
	reason := fmt.Sprintf("fails %s", fe.Tag())
	if fe.Param() != "" {
		reason = fmt.Sprintf("fails %s=%s", fe.Tag(), fe.Param())
	}
	return quote.Invalid(fe.Field(), "%s", reason)
}
