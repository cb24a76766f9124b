package store

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Store is the persistence interface for all back-office records.
// Implementations: SQLiteStore and KuzuStore (production), MemStore (testing).
// Lookups return (nil, nil) when the record does not exist.
type Store interface {
	io.Closer

	// Schema setup; safe to call more than once.
	InitSchema(ctx context.Context) error

	// Clients.
	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, id int64) (*Client, error)

	// Invoices.
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	DeleteInvoice(ctx context.Context, id int64) error

	// Boletos.
	CreateBoleto(ctx context.Context, b *Boleto) error
	GetBoleto(ctx context.Context, id int64) (*Boleto, error)
	ListBoletos(ctx context.Context, f BoletoFilter) ([]Boleto, error)
	UpdateBoleto(ctx context.Context, b *Boleto) error

	// Service orders.
	CreateServiceOrder(ctx context.Context, o *ServiceOrder) error
	LastServiceOrderNumber(ctx context.Context, prefix string) (string, error)

	// WhatsApp conversations.
	SaveConversation(ctx context.Context, c *Conversation) error
	ListConversations(ctx context.Context, status ConversationStatus) ([]Conversation, error)

	// Gateway transaction log.
	AppendGatewayLog(ctx context.Context, e *GatewayLog) error
	ListGatewayLogs(ctx context.Context, f GatewayLogFilter) ([]GatewayLog, error)
	PurgeGatewayLogs(ctx context.Context, before time.Time) (int, error)
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverKuzu   = "kuzu"
)

// Open returns a Store for the named driver with its schema initialized.
// path is ignored by the memory driver.
func Open(ctx context.Context, driver, path string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case DriverMemory, "":
		s = NewMemStore()
	case DriverSQLite:
		s, err = NewSQLiteStore(path)
	case DriverKuzu:
		s, err = NewKuzuFileStore(path)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.InitSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
