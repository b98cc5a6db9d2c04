// Package api is the REST client for the campus backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"campus/portal/internal/metrics"
)

// TokenSource supplies the bearer credential; "" sends no Authorization header.
type TokenSource interface {
	Token() string
}

type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Error is a non-2xx answer. Detail is the backend's message when it sent
// one, the status text otherwise.
type Error struct {
	Status int
	Detail string
	Path   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Path, e.Status, e.Detail)
}

// IsUnauthorized reports a missing, expired or rejected token.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsAuth reports a rejected login, registration or OTP request: bad
// credentials, bad OTP or a refused registration.
func IsAuth(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) || !strings.HasPrefix(apiErr.Path, "/auth/") {
		return false
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// Detail returns the message to show for err: the backend detail for an
// *Error, fallback for anything else.
func Detail(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// New returns a client rooted at apiURL (the base URL plus "/api").
func New(apiURL string, tokens TokenSource, timeout time.Duration) *Client {
	if tokens == nil {
		tokens = StaticToken("")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(apiURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(method, "error").Observe(time.Since(start).Seconds())
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	metrics.APIRequests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp, path)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return nil
}

func errorFromResponse(resp *http.Response, path string) error {
	apiErr := &Error{Status: resp.StatusCode, Path: path, Detail: http.StatusText(resp.StatusCode)}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return apiErr
	}
	if detail := parseDetail(payload.Detail); detail != "" {
		apiErr.Detail = detail
	} else if payload.Error != "" {
		apiErr.Detail = payload.Error
	}
	return apiErr
}

// parseDetail reads a plain string detail or a list of validation entries.
func parseDetail(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var entries []struct {
		Msg string        `json:"msg"`
		Loc []interface{} `json:"loc"`
	}
	if err := json.Unmarshal(raw, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Msg != "" {
				msgs = append(msgs, e.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
