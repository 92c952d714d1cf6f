// Package backend is the HTTP client for the platform API. It covers the
// surface the engine consumes: reports, public data, proximity, preferences,
// safe zones and routes. The backend owns all domain logic; this package only
// shapes requests and decodes responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mr1hm/crisiswatch/internal/auth"
)

const defaultTimeout = 30 * time.Second

// Client talks to the platform backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenProvider
	logger     *slog.Logger
}

// NewClient creates a backend client. tokens may be auth.Guest for
// unauthenticated sessions.
func NewClient(baseURL string, tokens auth.TokenProvider, logger *slog.Logger) *Client {
	if tokens == nil {
		tokens = auth.Guest
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		tokens: tokens,
		logger: logger,
	}
}

// SetTimeout overrides the default per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// do issues one request. When authed is true and a token is available it is
// attached as a bearer; endpoints with optional auth pass authed=true and
// degrade to anonymous when the provider has no token. A nil out discards the
// response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, authed bool, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authed {
		token, err := c.tokens.IDToken(ctx)
		if err != nil {
			return fmt.Errorf("fetch id token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
