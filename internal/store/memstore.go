package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu            sync.RWMutex
	nextID        int64
	clients       map[int64]Client
	invoices      map[int64]Invoice
	boletos       map[int64]Boleto
	orders        map[int64]ServiceOrder
	conversations map[string]Conversation
	logs          []GatewayLog
	now           func() time.Time
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		clients:       make(map[int64]Client),
		invoices:      make(map[int64]Invoice),
		boletos:       make(map[int64]Boleto),
		orders:        make(map[int64]ServiceOrder),
		conversations: make(map[string]Conversation),
		now:           time.Now,
	}
}

// id hands out the next identifier. Callers must hold mu.
func (m *MemStore) id() int64 {
	m.nextID++
	return m.nextID
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// CreateClient stores c and assigns its ID.
func (m *MemStore) CreateClient(_ context.Context, c *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	m.clients[c.ID] = *c
	return nil
}

// GetClient returns the client with the given ID, or nil if not found.
func (m *MemStore) GetClient(_ context.Context, id int64) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// CreateInvoice stores inv, assigning its ID and timestamps.
func (m *MemStore) CreateInvoice(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv.ID = m.id()
	now := m.now()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now
	m.invoices[inv.ID] = *inv
	return nil
}

// GetInvoice returns the invoice with the given ID, or nil if not found.
func (m *MemStore) GetInvoice(_ context.Context, id int64) (*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

// ListInvoices returns matching invoices, newest first.
func (m *MemStore) ListInvoices(_ context.Context, f InvoiceFilter) ([]Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.ClientID != 0 && inv.ClientID != f.ClientID {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateInvoice replaces the stored invoice and bumps UpdatedAt.
func (m *MemStore) UpdateInvoice(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[inv.ID]; !ok {
		return nil
	}
	inv.UpdatedAt = m.now()
	m.invoices[inv.ID] = *inv
	return nil
}

// DeleteInvoice removes the invoice; deleting a missing ID is not an error.
func (m *MemStore) DeleteInvoice(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.invoices, id)
	return nil
}

// CreateBoleto stores b and assigns its ID.
func (m *MemStore) CreateBoleto(_ context.Context, b *Boleto) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.id()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = m.now()
	}
	m.boletos[b.ID] = *b
	return nil
}

// GetBoleto returns the boleto with the given ID, or nil if not found.
func (m *MemStore) GetBoleto(_ context.Context, id int64) (*Boleto, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.boletos[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// ListBoletos returns matching boletos, newest first and by installment.
func (m *MemStore) ListBoletos(_ context.Context, f BoletoFilter) ([]Boleto, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Boleto, 0, len(m.boletos))
	for _, b := range m.boletos {
		if f.Number != "" && b.Number != f.Number {
			continue
		}
		if f.NumberPrefix != "" && !strings.HasPrefix(b.Number, f.NumberPrefix) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.DueDate != "" && b.DueDate != f.DueDate {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		if out[i].Installment != out[j].Installment {
			return out[i].Installment < out[j].Installment
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateBoleto replaces the stored boleto.
func (m *MemStore) UpdateBoleto(_ context.Context, b *Boleto) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boletos[b.ID]; ok {
		m.boletos[b.ID] = *b
	}
	return nil
}

// CreateServiceOrder stores o and assigns its ID.
func (m *MemStore) CreateServiceOrder(_ context.Context, o *ServiceOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.id()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = m.now()
	}
	m.orders[o.ID] = *o
	return nil
}

// LastServiceOrderNumber returns the greatest order number starting with
// prefix, compared as strings, or "" when there is none.
func (m *MemStore) LastServiceOrderNumber(_ context.Context, prefix string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last string
	for _, o := range m.orders {
		if strings.HasPrefix(o.Number, prefix) && o.Number > last {
			last = o.Number
		}
	}
	return last, nil
}

// SaveConversation upserts a conversation keyed by phone.
func (m *MemStore) SaveConversation(_ context.Context, c *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = m.now()
	}
	m.conversations[c.Phone] = *c
	return nil
}

// ListConversations returns conversations with the given status, ordered by phone.
func (m *MemStore) ListConversations(_ context.Context, status ConversationStatus) ([]Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Conversation
	for _, c := range m.conversations {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}

// AppendGatewayLog appends e and assigns its ID.
func (m *MemStore) AppendGatewayLog(_ context.Context, e *GatewayLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	m.logs = append(m.logs, *e)
	return nil
}

// ListGatewayLogs returns matching entries, newest first.
func (m *MemStore) ListGatewayLogs(_ context.Context, f GatewayLogFilter) ([]GatewayLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []GatewayLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		e := m.logs[i]
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		if f.BoletoID != 0 && e.BoletoID != f.BoletoID {
			continue
		}
		if f.ChargeID != "" && e.ChargeID != f.ChargeID {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Offset, f.Limit), nil
}

// PurgeGatewayLogs deletes entries created before the cutoff. A zero cutoff
// deletes everything.
func (m *MemStore) PurgeGatewayLogs(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.logs[:0]
	removed := 0
	for _, e := range m.logs {
		if before.IsZero() || e.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.logs = kept
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// paginate applies offset/limit to a slice. limit <= 0 means no limit.
func paginate[T any](in []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
