package asaas

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

// newTestClient points a Client at an httptest server running handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIKey: "key-123", BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_MissingKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNew_EnvironmentSelectsBaseURL(t *testing.T) {
	sb, err := New(Config{APIKey: "k", Environment: "sandbox"})
	require.NoError(t, err)
	assert.Equal(t, SandboxURL, sb.BaseURL())

	prod, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProductionURL, prod.BaseURL())
}

// ---------------------------------------------------------------------------
// Invoices
// ---------------------------------------------------------------------------

func TestCancelInvoice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/invoices/inv_123", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("access_token"))
		assert.Equal(t, "GestorFinanceiro/1.0", r.Header.Get("User-Agent"))
		writeJSON(w, http.StatusOK, map[string]any{"id": "inv_123", "status": "PROCESSING_CANCELLATION"})
	})

	inv, err := c.CancelInvoice(context.Background(), "inv_123")
	require.NoError(t, err)
	assert.Equal(t, "PROCESSING_CANCELLATION", inv.Status)
}

func TestCancelInvoice_APIErrorMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []map[string]string{
				{"code": "invalid_action", "description": "Nota já cancelada"},
				{"code": "other", "description": "Segundo erro"},
			},
		})
	})

	_, err := c.CancelInvoice(context.Background(), "inv_1")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "asaas: invalid_action: Nota já cancelada; other: Segundo erro", err.Error())
}

func TestDo_NonJSONUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, "<html>denied</html>")
	})

	_, err := c.ListMunicipalServices(context.Background(), "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "unauthorized (401)")
}

func TestListMunicipalServices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoices/municipalServices", r.URL.Path)
		assert.Equal(t, "consultoria em ti", r.URL.Query().Get("description"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{{"id": "101", "description": "Consultoria em TI", "issTax": 2}},
		})
	})

	svcs, err := c.ListMunicipalServices(context.Background(), "consultoria em ti")
	require.NoError(t, err)
	require.Len(t, svcs, 1)
	assert.Equal(t, "101", svcs[0].ID)
}

func TestListMunicipalServices_EmptyIsNotNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	svcs, err := c.ListMunicipalServices(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, svcs)
	assert.Empty(t, svcs)
}

// ---------------------------------------------------------------------------
// Customers and payments
// ---------------------------------------------------------------------------

func TestGetOrCreateCustomer_Existing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method, "existing customer must not be recreated")
		assert.Equal(t, "12345678000190", r.URL.Query().Get("cpfCnpj"))
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"id": "cus_1", "name": "Acme"}}})
	})

	cust, err := c.GetOrCreateCustomer(context.Background(), Customer{Name: "Acme", CPFCNPJ: "12.345.678/0001-90"})
	require.NoError(t, err)
	assert.Equal(t, "cus_1", cust.ID)
}

func TestGetOrCreateCustomer_Creates(t *testing.T) {
	var created Customer
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		created.ID = "cus_new"
		writeJSON(w, http.StatusOK, created)
	})

	cust, err := c.GetOrCreateCustomer(context.Background(), Customer{Name: "Acme", CPFCNPJ: "123.456.789-09"})
	require.NoError(t, err)
	assert.Equal(t, "cus_new", cust.ID)
	assert.Equal(t, "12345678909", created.CPFCNPJ)
}

func TestPayments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/payments":
			var p Payment
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			p.ID = "pay_1"
			p.Status = "PENDING"
			writeJSON(w, http.StatusOK, p)
		case r.Method == http.MethodGet && r.URL.Path == "/payments/pay_1":
			writeJSON(w, http.StatusOK, Payment{ID: "pay_1", Status: "RECEIVED"})
		case r.Method == http.MethodGet && r.URL.Path == "/payments":
			assert.Equal(t, "PENDING", r.URL.Query().Get("status"))
			assert.Equal(t, "BOLETO", r.URL.Query().Get("billingType"))
			writeJSON(w, http.StatusOK, map[string]any{"data": []Payment{{ID: "pay_1"}}})
		case r.Method == http.MethodDelete && r.URL.Path == "/payments/pay_1":
			writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	p, err := c.CreatePayment(ctx, Payment{Customer: "cus_1", BillingType: "BOLETO", Value: 150.5, DueDate: "2024-02-10"})
	require.NoError(t, err)
	assert.Equal(t, "pay_1", p.ID)
	assert.Equal(t, 150.5, p.Value)

	got, err := c.GetPayment(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "RECEIVED", got.Status)

	list, err := c.ListPayments(ctx, PaymentFilter{Status: "PENDING", BillingType: "BOLETO"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, c.CancelPayment(ctx, "pay_1"))
}
