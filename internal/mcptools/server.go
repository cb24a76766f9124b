// Package mcptools exposes back-office operations as MCP tools.
package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with every gestor tool registered.
func NewMCPServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "gestor",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "next_order_number",
		Description: "Return the next service order number (YYYYMMDD followed by a three-digit monthly sequence).",
	}, svc.NextOrderNumber)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "boleto_status_by_invoice",
		Description: "For every invoice number with boletos, report whether a boleto exists and whether any is awaiting payment. Installment suffixes like -01 are folded into the base invoice number.",
	}, svc.BoletoStatusByInvoice)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_invoices",
		Description: "List notas fiscais newest first, optionally filtered by status and client.",
	}, svc.ListInvoices)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_pdfs",
		Description: "Download PDFs from the given URLs and merge them, in order, into one file. Sources that fail to download or parse are skipped and reported.",
	}, svc.MergePDFs)

	return server
}

// Run serves the tools over stdio until ctx is cancelled or the client
// disconnects.
func Run(ctx context.Context, svc *Service) error {
	return NewMCPServer(svc).Run(ctx, &mcp.StdioTransport{})
}
