// Package breachapi is an upstream.Source backed by a remote breach lookup
// service speaking the same /api/v1/emails API that this service exposes.
package breachapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Strob0t/BreachCache/internal/adapter/otel"
	"github.com/Strob0t/BreachCache/internal/domain"
	"github.com/Strob0t/BreachCache/internal/port/upstream"
)

const maxErrorBody = 4 << 10

// Client calls a remote breach API.
type Client struct {
	baseURL string
	apiKey  func() string
	http    *http.Client
}

var _ upstream.Source = (*Client)(nil)

// New creates a Client for baseURL. apiKey is read on every request so a
// rotated key takes effect immediately; requests carry it as a bearer token
// when it is non-empty. Per-call deadlines come from the caller's context.
func New(baseURL string, apiKey func() string) *Client {
	if apiKey == nil {
		apiKey = func() string { return "" }
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Transport: otel.HTTPTransport(nil)},
	}
}

type detailsBody struct {
	Details *string `json:"details"`
}

// Fetch returns the remote details for email, or nil on 404.
func (c *Client) Fetch(ctx context.Context, email string) (*string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, email, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("breach api get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var body detailsBody
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("breach api decode: %w", err)
		}
		if body.Details == nil {
			empty := ""
			return &empty, nil
		}
		return body.Details, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, statusError("get", resp)
	}
}

// Add registers email remotely. A 409 means the remote kept an earlier
// record and is reported as domain.ErrConflict.
func (c *Client) Add(ctx context.Context, email, details string) error {
	payload, err := json.Marshal(detailsBody{Details: &details})
	if err != nil {
		return fmt.Errorf("breach api encode: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, email, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("breach api post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	case http.StatusConflict:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("breach api post %s: %w", email, domain.ErrConflict)
	default:
		return statusError("post", resp)
	}
}

func (c *Client) newRequest(ctx context.Context, method, email string, body io.Reader) (*http.Request, error) {
	u := c.baseURL + "/api/v1/emails/" + url.PathEscape(email)
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("breach api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if key := c.apiKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	return req, nil
}

func statusError(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("breach api %s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(msg)))
}
