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

package shared

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/logging"
)

const defaultTimeout = 30 * time.Second

// Requester sends JSON requests and returns the response body.
type Requester interface {
	SendHTTPRequest(ctx context.Context, method string, url *url.URL, reqBody []byte) ([]byte, error)
}

// StatusError is returned for a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received status code %d: %s", e.StatusCode, bytes.TrimSpace(e.Body))
}

// HTTPRequester is a Requester over net/http. Header is added to every request.
type HTTPRequester struct {
	Client *http.Client
	Header http.Header
}

func (hr *HTTPRequester) setDefaultClient() {
	hr.Client = &http.Client{Timeout: defaultTimeout}
}

// SendHTTPRequest sends a JSON body, reqBody may be nil.
func (hr *HTTPRequester) SendHTTPRequest(
	ctx context.Context, method string, url *url.URL, reqBody []byte,
) ([]byte, error) {
	var payload io.Reader
	if reqBody != nil {
		payload = bytes.NewReader(reqBody)
	}
	return hr.SendRequest(ctx, method, url, "application/json", payload)
}

// SendRequest sends a body of any content type.
func (hr *HTTPRequester) SendRequest(
	ctx context.Context, method string, url *url.URL, contentType string, payload io.Reader,
) ([]byte, error) {
	if hr.Client == nil {
		hr.setDefaultClient()
	}
	ctx, logger := logging.InjectLabels(ctx, "method", method, "target_url", url.String())
	logger.Debug("Doing HTTP request")

	req, err := http.NewRequestWithContext(ctx, method, url.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range hr.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hr.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug("Received non-2xx status code", "status_code", resp.StatusCode)
		return respBody, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

// MustParseURL parses a URL and panics if it's invalid.
func MustParseURL(u string) *url.URL {
	pu, err := url.Parse(u)
	if err != nil {
		panic(err.Error())
	}
	return pu
}
