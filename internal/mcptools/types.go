package mcptools

import (
	"github.com/dusk-indust/gestor/internal/boleto"
	"github.com/dusk-indust/gestor/internal/pdfmerge"
)

// --- MCP Tool Input/Output Types ---
// The MCP Go SDK derives each tool's JSON schema from these struct tags.

// NextOrderNumberInput is the input for the next_order_number tool.
type NextOrderNumberInput struct{}

// NextOrderNumberOutput is the result of the next_order_number tool.
type NextOrderNumberOutput struct {
	Number string `json:"number"`
}

// BoletoStatusInput is the input for the boleto_status_by_invoice tool.
type BoletoStatusInput struct{}

// BoletoStatusOutput is the result of the boleto_status_by_invoice tool.
type BoletoStatusOutput struct {
	Invoices map[string]boleto.InvoiceStatus `json:"invoices"`
}

// ListInvoicesInput is the input for the list_invoices tool.
type ListInvoicesInput struct {
	Status   string `json:"status,omitempty" jsonschema:"filter by status: draft, scheduled, issued, cancelling, cancelled, error (default: all)"`
	ClientID int64  `json:"clientId,omitempty" jsonschema:"only invoices of this client id"`
}

// InvoiceSummary is one row of list_invoices.
type InvoiceSummary struct {
	ID          int64  `json:"id"`
	Number      string `json:"number,omitempty"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amountCents"`
	Description string `json:"description"`
	IssueDate   string `json:"issueDate"`
	ClientName  string `json:"clientName,omitempty"`
}

// ListInvoicesOutput is the result of the list_invoices tool.
type ListInvoicesOutput struct {
	Invoices []InvoiceSummary `json:"invoices"`
	Total    int              `json:"total"`
}

// MergePDFsInput is the input for the merge_pdfs tool.
type MergePDFsInput struct {
	URLs       []string `json:"urls" jsonschema:"PDF URLs to merge, in output order"`
	OutputPath string   `json:"outputPath" jsonschema:"file the merged PDF is written to"`
}

// MergePDFsOutput is the result of the merge_pdfs tool.
type MergePDFsOutput struct {
	Path    string             `json:"path"`
	Pages   int                `json:"pages"`
	Merged  int                `json:"merged"`
	Skipped []pdfmerge.Skipped `json:"skipped,omitempty"`
}
