package mcptools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dusk-indust/gestor/internal/boleto"
	"github.com/dusk-indust/gestor/internal/invoice"
	"github.com/dusk-indust/gestor/internal/pdfmerge"
	"github.com/dusk-indust/gestor/internal/serviceorder"
	"github.com/dusk-indust/gestor/internal/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Service holds the back-office services used by MCP tool handlers.
type Service struct {
	orders   *serviceorder.Generator
	boletos  *boleto.Service
	invoices *invoice.Service
	merger   *pdfmerge.Merger
}

// NewService creates a Service over the given back-office services.
func NewService(orders *serviceorder.Generator, boletos *boleto.Service, invoices *invoice.Service, merger *pdfmerge.Merger) *Service {
	return &Service{orders: orders, boletos: boletos, invoices: invoices, merger: merger}
}

// NextOrderNumber returns the number the next service order will get.
func (s *Service) NextOrderNumber(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ NextOrderNumberInput,
) (*mcp.CallToolResult, NextOrderNumberOutput, error) {
	n, err := s.orders.Next(ctx)
	if err != nil {
		return nil, NextOrderNumberOutput{}, err
	}
	return nil, NextOrderNumberOutput{Number: n}, nil
}

// BoletoStatusByInvoice aggregates boleto state per base invoice number.
func (s *Service) BoletoStatusByInvoice(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ BoletoStatusInput,
) (*mcp.CallToolResult, BoletoStatusOutput, error) {
	st, err := s.boletos.StatusByInvoice(ctx)
	if err != nil {
		return nil, BoletoStatusOutput{}, err
	}
	return nil, BoletoStatusOutput{Invoices: st}, nil
}

// ListInvoices lists invoices newest first.
func (s *Service) ListInvoices(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListInvoicesInput,
) (*mcp.CallToolResult, ListInvoicesOutput, error) {
	f := store.InvoiceFilter{ClientID: input.ClientID}
	if input.Status != "" && input.Status != "all" {
		f.Status = store.InvoiceStatus(input.Status)
	}
	list, err := s.invoices.List(ctx, f)
	if err != nil {
		return nil, ListInvoicesOutput{}, err
	}

	out := ListInvoicesOutput{Invoices: make([]InvoiceSummary, 0, len(list)), Total: len(list)}
	for _, d := range list {
		row := InvoiceSummary{
			ID:          d.ID,
			Number:      d.Number,
			Status:      string(d.Status),
			AmountCents: d.AmountCents,
			Description: d.Description,
			IssueDate:   d.IssueDate,
		}
		if d.Client != nil {
			row.ClientName = d.Client.Name
		}
		out.Invoices = append(out.Invoices, row)
	}
	return nil, out, nil
}

// MergePDFs merges the given URLs and writes the result to OutputPath.
func (s *Service) MergePDFs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MergePDFsInput,
) (*mcp.CallToolResult, MergePDFsOutput, error) {
	if len(input.URLs) == 0 {
		return nil, MergePDFsOutput{}, fmt.Errorf("urls is required")
	}
	if input.OutputPath == "" {
		return nil, MergePDFsOutput{}, fmt.Errorf("outputPath is required")
	}

	res, err := s.merger.Merge(ctx, input.URLs)
	if err != nil {
		return nil, MergePDFsOutput{}, err
	}
	if err := os.MkdirAll(filepath.Dir(input.OutputPath), 0o755); err != nil {
		return nil, MergePDFsOutput{}, fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(input.OutputPath, res.PDF, 0o644); err != nil {
		return nil, MergePDFsOutput{}, fmt.Errorf("write %s: %w", input.OutputPath, err)
	}
	return nil, MergePDFsOutput{
		Path:    input.OutputPath,
		Pages:   res.Pages,
		Merged:  res.Merged,
		Skipped: res.Skipped,
	}, nil
}
