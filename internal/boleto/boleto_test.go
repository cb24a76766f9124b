package boleto

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dusk-indust/gestor/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is 15:00 UTC on 2024-01-15, which is 12:00 at UTC-3.
var clock = func() time.Time { return time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC) }

func newTestService(t *testing.T, opts ...Option) (*Service, *store.MemStore) {
	t.Helper()
	s := store.NewMemStore()
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewService(s, slog.New(slog.NewTextHandler(io.Discard, nil)), -3, opts...), s
}

// ---------------------------------------------------------------------------
// Status by invoice
// ---------------------------------------------------------------------------

func TestAggregateByInvoice(t *testing.T) {
	got := AggregateByInvoice([]store.Boleto{
		{InvoiceNumber: "100-01", Status: store.BoletoAwaitingPayment},
		{InvoiceNumber: "100-02", Status: store.BoletoPaid},
		{InvoiceNumber: "200", Status: store.BoletoAwaitingPayment},
	})
	assert.Equal(t, map[string]InvoiceStatus{
		"100": {HasBoleto: true, AwaitingPayment: true},
		"200": {HasBoleto: true, AwaitingPayment: true},
	}, got)
}

func TestAggregateByInvoice_PaidOnlyAndBlank(t *testing.T) {
	got := AggregateByInvoice([]store.Boleto{
		{InvoiceNumber: "300-1", Status: store.BoletoPaid},
		{InvoiceNumber: "", Status: store.BoletoAwaitingPayment},
	})
	assert.Equal(t, map[string]InvoiceStatus{"300": {HasBoleto: true}}, got)
}

func TestBaseInvoiceNumber(t *testing.T) {
	assert.Equal(t, "100", BaseInvoiceNumber("100-01"))
	assert.Equal(t, "NF-100", BaseInvoiceNumber("NF-100-3"))
	assert.Equal(t, "NF-A", BaseInvoiceNumber("NF-A"))
}

func TestStatusByInvoice_FromStore(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.CreateBoleto(ctx, &store.Boleto{Number: "1", InvoiceNumber: "100-01", Status: store.BoletoAwaitingPayment}))
	require.NoError(t, s.CreateBoleto(ctx, &store.Boleto{Number: "2", InvoiceNumber: "100-02", Status: store.BoletoPaid}))

	got, err := svc.StatusByInvoice(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]InvoiceStatus{"100": {HasBoleto: true, AwaitingPayment: true}}, got)
}

// ---------------------------------------------------------------------------
// Create and mark paid
// ---------------------------------------------------------------------------

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Create(ctx, &store.Boleto{Number: "1"}), ErrInvalid)
	require.ErrorIs(t, svc.Create(ctx, &store.Boleto{Number: "1", AmountCents: 100, DueDate: "15/01/2024"}), ErrInvalid)

	b := &store.Boleto{Number: "1", AmountCents: 100, DueDate: "2024-01-20"}
	require.NoError(t, svc.Create(ctx, b))
	assert.Equal(t, store.BoletoPending, b.Status)
	assert.Equal(t, 1, b.Installment)
}

func TestMarkPaid_Defaults(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	b := &store.Boleto{Number: "B-1", AmountCents: 12345, DueDate: "2024-01-20", Status: store.BoletoPending}
	require.NoError(t, s.CreateBoleto(ctx, b))

	res, err := svc.MarkPaid(ctx, b.ID, Payment{})
	require.NoError(t, err)
	assert.Equal(t, store.BoletoPending, res.PreviousStatus)
	assert.Equal(t, store.BoletoPaid, res.Status)
	assert.Equal(t, "2024-01-15", res.PaidAt)
	assert.Equal(t, int64(12345), res.PaidCents)

	stored, err := s.GetBoleto(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, store.BoletoPaid, stored.Status)
	assert.Equal(t, int64(12345), stored.PaidCents)
}

func TestMarkPaid_ExplicitValues(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	b := &store.Boleto{Number: "B-2", AmountCents: 10000, DueDate: "2024-01-20", Status: store.BoletoOverdue}
	require.NoError(t, s.CreateBoleto(ctx, b))

	res, err := svc.MarkPaid(ctx, b.ID, Payment{Date: "2024-01-22", AmountCents: 10500})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-22", res.PaidAt)
	assert.Equal(t, int64(10500), res.PaidCents)
}

func TestMarkPaid_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.MarkPaid(context.Background(), 99, Payment{})
	assert.ErrorIs(t, err, ErrNotFound)
}
