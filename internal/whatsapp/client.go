// Package whatsapp sends messages through the WhatsApp Business Cloud API and
// closes idle customer conversations.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
)

// DefaultBaseURL is the Graph API root.
const DefaultBaseURL = "https://graph.facebook.com"

// DefaultAPIVersion is the Graph API version used for sends.
const DefaultAPIVersion = "v21.0"

// ErrNotConfigured is returned when the phone number id or access token is missing.
var ErrNotConfigured = errors.New("whatsapp: credentials not configured")

// APIError is a non-2xx answer from the Graph API. Body holds the upstream
// JSON so callers can pass it through.
type APIError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp: send failed: HTTP %d", e.StatusCode)
}

// Config holds the Cloud API credentials.
type Config struct {
	PhoneNumberID string
	AccessToken   string
	VerifyToken   string
	APIVersion    string
	BaseURL       string
}

// ConfigStatus reports which credentials are present, never their values.
type ConfigStatus struct {
	PhoneNumberID bool `json:"phoneNumberId"`
	AccessToken   bool `json:"accessToken"`
	VerifyToken   bool `json:"verifyToken"`
}

// SendResult is a successful send.
type SendResult struct {
	MessageID string          `json:"messageId,omitempty"`
	Raw       json.RawMessage `json:"raw"`
}

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, to, message string) (*SendResult, error)
}

// Client is a Cloud API client.
type Client struct {
	http *http.Client
	cfg  Config
}

var _ Sender = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client. Missing credentials are reported by Send.
func New(cfg Config, opts ...Option) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		http: &http.Client{Timeout: 30 * time.Second},
		cfg:  cfg,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Status reports which credentials are configured.
func (c *Client) Status() ConfigStatus {
	return ConfigStatus{
		PhoneNumberID: c.cfg.PhoneNumberID != "",
		AccessToken:   c.cfg.AccessToken != "",
		VerifyToken:   c.cfg.VerifyToken != "",
	}
}

// Send posts a text message to the given phone number.
func (c *Client) Send(ctx context.Context, to, message string) (*SendResult, error) {
	if c.cfg.PhoneNumberID == "" || c.cfg.AccessToken == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": message},
	})
	if err != nil {
		return nil, fmt.Errorf("whatsapp: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", c.cfg.BaseURL, c.cfg.APIVersion, url.PathEscape(c.cfg.PhoneNumberID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: read response: %w", err)
	}
	if !json.Valid(raw) {
		raw, _ = json.Marshal(string(raw))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: raw}
	}
	return &SendResult{MessageID: messageID(raw), Raw: raw}, nil
}

// messageID extracts the id of the first accepted message, or "".
func messageID(raw []byte) string {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	v, err := jsonpath.Get("$.messages[0].id", doc)
	if err != nil {
		return ""
	}
	id, _ := v.(string)
	return id
}

// NormalizePhone strips everything but digits and prefixes Brazil's country
// code 55 when it is missing.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if d == "" || strings.HasPrefix(d, "55") {
		return d
	}
	return "55" + d
}
