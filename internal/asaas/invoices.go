package asaas

import (
	"context"
	"net/http"
	"net/url"
)

// MunicipalService is an entry of the municipal service catalogue used when
// issuing NFS-e.
type MunicipalService struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	IssTax      any    `json:"issTax,omitempty"`
}

// Invoice is the Asaas view of an NFS-e.
type Invoice struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Number string `json:"number,omitempty"`
}

type listResponse[T any] struct {
	Data       []T  `json:"data"`
	HasMore    bool `json:"hasMore"`
	TotalCount int  `json:"totalCount"`
}

// CancelInvoice requests cancellation of the NFS-e with the given id.
// Asaas processes the cancellation asynchronously.
func (c *Client) CancelInvoice(ctx context.Context, id string) (*Invoice, error) {
	var inv Invoice
	if err := c.do(ctx, http.MethodDelete, "/invoices/"+url.PathEscape(id), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListMunicipalServices searches the municipal service catalogue.
func (c *Client) ListMunicipalServices(ctx context.Context, description string) ([]MunicipalService, error) {
	var resp listResponse[MunicipalService]
	if err := c.do(ctx, http.MethodGet, "/invoices/municipalServices"+query("description", description), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = []MunicipalService{}
	}
	return resp.Data, nil
}
