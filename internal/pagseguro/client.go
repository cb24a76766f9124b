// Package pagseguro is a client for the PagBank (PagSeguro) API.
package pagseguro

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dusk-indust/gestor/internal/store"
)

// Base URLs per environment.
const (
	SandboxURL    = "https://sandbox.api.pagseguro.com"
	ProductionURL = "https://api.pagseguro.com"
)

// Gateway is the name recorded in the gateway log.
const Gateway = "pagseguro"

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("pagseguro: token not configured")

// Recorder receives one entry per request, response and error.
type Recorder interface {
	Record(ctx context.Context, e store.GatewayLog)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, store.GatewayLog) {}

// Config selects the account and environment.
type Config struct {
	Token       string
	Environment string // "production" or "sandbox" (default)
	BaseURL     string // overrides Environment when set
}

// Client talks to the PagBank API.
type Client struct {
	http     *http.Client
	baseURL  string
	token    string
	recorder Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRecorder sets where gateway traffic is logged.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// New returns a Client. A missing token is reported per call, not here.
func New(cfg Config, opts ...Option) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = SandboxURL
		if cfg.Environment == "production" {
			base = ProductionURL
		}
	}
	c := &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		baseURL:  strings.TrimRight(base, "/"),
		token:    cfg.Token,
		recorder: nopRecorder{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PublicKey obtains the public key used to encrypt card data in the browser.
func (c *Client) PublicKey(ctx context.Context) (string, error) {
	var out struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.post(ctx, "/public-keys", map[string]string{"type": "card"}, &out); err != nil {
		return "", err
	}
	if out.PublicKey == "" {
		return "", fmt.Errorf("pagseguro: response carried no public key")
	}
	return out.PublicKey, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.token == "" {
		return ErrMissingToken
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("pagseguro: marshal request: %w", err)
	}

	entry := store.GatewayLog{Gateway: Gateway, Endpoint: path, Method: http.MethodPost}
	logReq := entry
	logReq.Kind = store.LogRequest
	logReq.Payload = string(payload)
	c.recorder.Record(ctx, logReq)

	fail := func(status int, resp string, err error) error {
		e := entry
		e.Kind = store.LogError
		e.StatusCode = status
		e.Response = resp
		e.Error = err.Error()
		c.recorder.Record(ctx, e)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fail(0, "", fmt.Errorf("pagseguro: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, "", fmt.Errorf("pagseguro: POST %s: %w", path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, "", fmt.Errorf("pagseguro: read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(resp.StatusCode, string(raw),
			fmt.Errorf("pagseguro: POST %s: HTTP %d", path, resp.StatusCode))
	}

	logResp := entry
	logResp.Kind = store.LogResponse
	logResp.StatusCode = resp.StatusCode
	logResp.Response = string(raw)
	c.recorder.Record(ctx, logResp)

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("pagseguro: decode response: %w", err)
	}
	return nil
}
