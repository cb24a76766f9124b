package asaas

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Customer is an Asaas customer record.
type Customer struct {
	ID                   string `json:"id,omitempty"`
	Name                 string `json:"name"`
	CPFCNPJ              string `json:"cpfCnpj"`
	Email                string `json:"email,omitempty"`
	Phone                string `json:"phone,omitempty"`
	MobilePhone          string `json:"mobilePhone,omitempty"`
	ExternalReference    string `json:"externalReference,omitempty"`
	NotificationDisabled bool   `json:"notificationDisabled,omitempty"`
}

// Adjustment is a fine, interest or discount rule.
type Adjustment struct {
	Value            float64 `json:"value"`
	Type             string  `json:"type,omitempty"` // PERCENTAGE or FIXED
	DueDateLimitDays int     `json:"dueDateLimitDays,omitempty"`
}

// Payment is a charge (boleto, PIX or card).
type Payment struct {
	ID                string      `json:"id,omitempty"`
	Customer          string      `json:"customer"`
	BillingType       string      `json:"billingType"`
	Value             float64     `json:"value"`
	DueDate           string      `json:"dueDate"`
	Description       string      `json:"description,omitempty"`
	ExternalReference string      `json:"externalReference,omitempty"`
	Fine              *Adjustment `json:"fine,omitempty"`
	Interest          *Adjustment `json:"interest,omitempty"`
	Discount          *Adjustment `json:"discount,omitempty"`

	Status        string `json:"status,omitempty"`
	InvoiceURL    string `json:"invoiceUrl,omitempty"`
	BankSlipURL   string `json:"bankSlipUrl,omitempty"`
	NossoNumero   string `json:"nossoNumero,omitempty"`
	BarCode       string `json:"barCode,omitempty"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
}

// PaymentFilter narrows ListPayments.
type PaymentFilter struct {
	Customer          string
	BillingType       string
	Status            string
	ExternalReference string
}

// CreateCustomer registers a new customer.
func (c *Client) CreateCustomer(ctx context.Context, cust Customer) (*Customer, error) {
	var out Customer
	if err := c.do(ctx, http.MethodPost, "/customers", cust, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindCustomers returns customers with the given CPF/CNPJ (punctuation ignored).
func (c *Client) FindCustomers(ctx context.Context, cpfCNPJ string) ([]Customer, error) {
	var resp listResponse[Customer]
	if err := c.do(ctx, http.MethodGet, "/customers"+query("cpfCnpj", digits(cpfCNPJ)), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetOrCreateCustomer returns the existing customer with cust's CPF/CNPJ, or
// creates one. A failed lookup falls through to creation, and a creation that
// reports an already-registered document retries the lookup.
func (c *Client) GetOrCreateCustomer(ctx context.Context, cust Customer) (*Customer, error) {
	cust.CPFCNPJ = digits(cust.CPFCNPJ)
	found, err := c.FindCustomers(ctx, cust.CPFCNPJ)
	if err == nil && len(found) > 0 {
		return &found[0], nil
	}
	if err != nil {
		c.logger.Warn("asaas.customer_lookup_failed", "error", err)
	}

	created, err := c.CreateCustomer(ctx, cust)
	if err == nil {
		return created, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Error(), "já cadastrado") {
		if found, ferr := c.FindCustomers(ctx, cust.CPFCNPJ); ferr == nil && len(found) > 0 {
			return &found[0], nil
		}
	}
	return nil, err
}

// CreatePayment creates a charge.
func (c *Client) CreatePayment(ctx context.Context, p Payment) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodPost, "/payments", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPayment fetches a charge by id.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelPayment deletes a charge.
func (c *Client) CancelPayment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/payments/"+url.PathEscape(id), nil, nil)
}

// ListPayments lists charges matching f.
func (c *Client) ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, error) {
	var resp listResponse[Payment]
	path := "/payments" + query(
		"customer", f.Customer,
		"billingType", f.BillingType,
		"status", f.Status,
		"externalReference", f.ExternalReference,
	)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
