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

// Package directory resolves organisation and product ids to display names.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote/shared"
)

// ErrUnknown is returned when the directory has no entry for an id.
var ErrUnknown = errors.New("unknown directory entry")

// OrganizationPrefix marks the party ids the directory can resolve.
const OrganizationPrefix = "urn:ngsi-ld:organization:"

// Directory looks up display names.
type Directory interface {
	OrganizationName(ctx context.Context, id string) (string, error)
	ProductName(ctx context.Context, id string) (string, error)
}

// Static is a Directory backed by fixed maps, typically loaded from configuration.
type Static struct {
	organizations map[string]string
	products      map[string]string
}

func NewStatic(organizations, products map[string]string) *Static {
	return &Static{organizations: organizations, products: products}
}

func (s *Static) OrganizationName(_ context.Context, id string) (string, error) {
	return lookup(s.organizations, id)
}

func (s *Static) ProductName(_ context.Context, id string) (string, error) {
	return lookup(s.products, id)
}

// lookup matches keys case insensitively, viper lowercases map keys read from configuration.
func lookup(m map[string]string, id string) (string, error) {
	if name, ok := m[id]; ok && name != "" {
		return name, nil
	}
	if name, ok := m[strings.ToLower(id)]; ok && name != "" {
		return name, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknown, id)
}

// HTTP is a Directory querying a TM Forum style party and product catalog API.
type HTTP struct {
	base      *url.URL
	requester shared.Requester
}

func NewHTTP(base *url.URL, requester shared.Requester) *HTTP {
	return &HTTP{base: base, requester: requester}
}

type organization struct {
	Name        string `json:"name"`
	TradingName string `json:"tradingName"`
}

type productOffering struct {
	Name string `json:"name"`
}

func (h *HTTP) OrganizationName(ctx context.Context, id string) (string, error) {
	var org organization
	if err := h.get(ctx, []string{"party", "organization", id}, &org); err != nil {
		return "", err
	}
	switch {
	case org.TradingName != "":
		return org.TradingName, nil
	case org.Name != "":
		return org.Name, nil
	default:
		return "", fmt.Errorf("%w: %s has no name", ErrUnknown, id)
	}
}

func (h *HTTP) ProductName(ctx context.Context, id string) (string, error) {
	var p productOffering
	if err := h.get(ctx, []string{"catalog", "productOffering", id}, &p); err != nil {
		return "", err
	}
	if p.Name == "" {
		return "", fmt.Errorf("%w: %s has no name", ErrUnknown, id)
	}
	return p.Name, nil
}

func (h *HTTP) get(ctx context.Context, path []string, v any) error {
	u := h.base.JoinPath(path...)
	body, err := h.requester.SendHTTPRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		var serr *shared.StatusError
		if errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrUnknown, path[len(path)-1])
		}
		logging.Extract(ctx).Warn("Directory lookup failed", "url", u.String(), "err", err)
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("could not decode directory entry: %w", err)
	}
	return nil
}
