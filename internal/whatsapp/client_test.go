package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{PhoneNumberID: "1234", AccessToken: "tok", BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
}

func TestSend(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/1234/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body struct {
			MessagingProduct string            `json:"messaging_product"`
			To               string            `json:"to"`
			Type             string            `json:"type"`
			Text             map[string]string `json:"text"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "whatsapp", body.MessagingProduct)
		assert.Equal(t, "5511999990000", body.To)
		assert.Equal(t, "text", body.Type)
		assert.Equal(t, "olá", body.Text["body"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.ABC"}]}`)
	})

	res, err := c.Send(context.Background(), "5511999990000", "olá")
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", res.MessageID)
	assert.JSONEq(t, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.ABC"}]}`, string(res.Raw))
}

func TestSend_UpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid parameter","code":100}}`)
	})

	_, err := c.Send(context.Background(), "x", "y")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.JSONEq(t, `{"error":{"message":"Invalid parameter","code":100}}`, string(apiErr.Body))
}

func TestSend_NonJSONErrorBodyIsQuoted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "bad gateway")
	})

	_, err := c.Send(context.Background(), "x", "y")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, `"bad gateway"`, string(apiErr.Body))
}

func TestSend_NotConfigured(t *testing.T) {
	c := New(Config{PhoneNumberID: "1234"})
	_, err := c.Send(context.Background(), "x", "y")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStatus(t *testing.T) {
	c := New(Config{PhoneNumberID: "1234", VerifyToken: "v"})
	assert.Equal(t, ConfigStatus{PhoneNumberID: true, AccessToken: false, VerifyToken: true}, c.Status())
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct{ in, want string }{
		{"(11) 99999-0000", "5511999990000"},
		{"+55 11 99999-0000", "5511999990000"},
		{"5511999990000", "5511999990000"},
		{"", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), tt.in)
	}
}
