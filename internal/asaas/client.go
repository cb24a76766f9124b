// Package asaas is a client for the Asaas billing and NFS-e REST API.
package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
)

// Base URLs per environment.
const (
	SandboxURL    = "https://sandbox.asaas.com/api/v3"
	ProductionURL = "https://api.asaas.com/v3"
)

const userAgent = "GestorFinanceiro/1.0"

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("asaas: api key not configured")

// APIError is a non-2xx answer from Asaas.
type APIError struct {
	StatusCode int
	Messages   []string // "code: description" per reported error
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return "asaas: " + strings.Join(e.Messages, "; ")
	}
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return "asaas: unauthorized (401); check that the api key matches the environment"
	case http.StatusForbidden:
		return "asaas: forbidden (403); the api key lacks permission for this operation"
	case http.StatusNotFound:
		return "asaas: endpoint not found (404)"
	}
	if e.Body != "" {
		return fmt.Sprintf("asaas: HTTP %d: %s", e.StatusCode, truncate(e.Body, 200))
	}
	return fmt.Sprintf("asaas: HTTP %d", e.StatusCode)
}

// Config selects the account and environment.
type Config struct {
	APIKey      string
	Environment string // "sandbox" or "production" (default)
	BaseURL     string // overrides Environment when set
}

// Client talks to the Asaas API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for cfg. It fails with ErrMissingAPIKey when the key
// is empty.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	base := cfg.BaseURL
	if base == "" {
		base = ProductionURL
		if cfg.Environment == "sandbox" {
			base = SandboxURL
		}
	}
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  cfg.APIKey,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL reports the API root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// do sends a request and decodes a JSON answer into out (which may be nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("asaas: marshal request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("asaas: create request: %w", err)
	}
	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("asaas: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("asaas: read response: %w", err)
	}
	c.logger.Debug("asaas.request", "method", method, "path", path,
		"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		if isJSON {
			apiErr.Messages = errorMessages(raw)
		}
		return apiErr
	}
	if !isJSON {
		return fmt.Errorf("asaas: unexpected content type %q (HTTP %d)", resp.Header.Get("Content-Type"), resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("asaas: invalid response: %w: %s", err, truncate(string(raw), 200))
	}
	return nil
}

// errorMessages pulls "code: description" pairs out of an Asaas error body.
func errorMessages(raw []byte) []string {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	val, err := jsonpath.Get("$.errors", doc)
	if err != nil {
		return nil
	}
	items, ok := val.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		code, _ := m["code"].(string)
		desc, _ := m["description"].(string)
		out = append(out, code+": "+desc)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// query builds "?k=v&..." from the non-empty pairs, or "".
func query(pairs ...string) string {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			v.Set(pairs[i], pairs[i+1])
		}
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}
