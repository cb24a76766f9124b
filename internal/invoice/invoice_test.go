package invoice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dusk-indust/gestor/internal/asaas"
	"github.com/dusk-indust/gestor/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway records cancellations and returns canned catalogue entries.
type fakeGateway struct {
	cancelled []string
	cancelErr error
	services  []asaas.MunicipalService
	query     string
}

func (f *fakeGateway) CancelInvoice(_ context.Context, id string) (*asaas.Invoice, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return &asaas.Invoice{ID: id, Status: "PROCESSING_CANCELLATION"}, nil
}

func (f *fakeGateway) ListMunicipalServices(_ context.Context, description string) ([]asaas.MunicipalService, error) {
	f.query = description
	return f.services, nil
}

func newTestService(t *testing.T, gw Gateway) (*Service, *store.MemStore) {
	t.Helper()
	s := store.NewMemStore()
	opts := []Option{WithClock(func() time.Time { return time.Date(2024, 1, 16, 2, 0, 0, 0, time.UTC) })}
	if gw != nil {
		opts = append(opts, WithGateway(gw))
	}
	return NewService(s, slog.New(slog.NewTextHandler(io.Discard, nil)), -3, opts...), s
}

func seedInvoice(t *testing.T, s store.Store, inv store.Invoice) int64 {
	t.Helper()
	require.NoError(t, s.CreateInvoice(context.Background(), &inv))
	return inv.ID
}

// ---------------------------------------------------------------------------
// List / Get
// ---------------------------------------------------------------------------

func TestList_FiltersAndClient(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()

	c := &store.Client{Name: "Acme", CNPJ: "123", Email: "a@acme.test"}
	require.NoError(t, s.CreateClient(ctx, c))
	seedInvoice(t, s, store.Invoice{ClientID: c.ID, Status: store.InvoiceDraft, Description: "a"})
	seedInvoice(t, s, store.Invoice{ClientID: c.ID, Status: store.InvoiceIssued, Description: "b"})
	seedInvoice(t, s, store.Invoice{ClientID: 999, Status: store.InvoiceIssued, Description: "orphan"})

	all, err := svc.List(ctx, store.InvoiceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	issued, err := svc.List(ctx, store.InvoiceFilter{Status: store.InvoiceIssued, ClientID: c.ID})
	require.NoError(t, err)
	require.Len(t, issued, 1)
	assert.Equal(t, "b", issued[0].Description)
	require.NotNil(t, issued[0].Client)
	assert.Equal(t, "Acme", issued[0].Client.Name)

	orphan, err := svc.List(ctx, store.InvoiceFilter{ClientID: 999})
	require.NoError(t, err)
	require.Len(t, orphan, 1)
	assert.Nil(t, orphan[0].Client)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

// ---------------------------------------------------------------------------
// Create / Update / Delete
// ---------------------------------------------------------------------------

func TestCreate_DefaultsDates(t *testing.T) {
	svc, _ := newTestService(t, nil)

	inv, err := svc.Create(context.Background(), CreateInput{ClientID: 1, AmountCents: 1000, Description: "Suporte"})
	require.NoError(t, err)
	assert.Equal(t, store.InvoiceDraft, inv.Status)
	// 02:00 UTC on the 16th is still the 15th at UTC-3.
	assert.Equal(t, "2024-01-15", inv.IssueDate)
	assert.Equal(t, "2024-01-15", inv.CompetenceDate)
}

func TestCreate_RequiresFields(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.Create(context.Background(), CreateInput{ClientID: 1, AmountCents: 1000})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdate_DraftOnly(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()
	draft := seedInvoice(t, s, store.Invoice{ClientID: 1, Status: store.InvoiceDraft, AmountCents: 100, Description: "old", Notes: "n"})
	issued := seedInvoice(t, s, store.Invoice{ClientID: 1, Status: store.InvoiceIssued, AmountCents: 100, Description: "old"})

	amount := int64(250)
	iss := 5.0
	ok, err := svc.Update(ctx, draft, UpdateInput{AmountCents: &amount, ISS: &iss})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetInvoice(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.AmountCents)
	assert.Equal(t, "old", got.Description, "nil fields keep the stored value")
	assert.Equal(t, "", got.Notes, "notes are always replaced")
	assert.Equal(t, 5.0, got.Taxes.ISS)

	ok, err = svc.Update(ctx, issued, UpdateInput{AmountCents: &amount})
	require.NoError(t, err)
	assert.False(t, ok)
	unchanged, err := s.GetInvoice(ctx, issued)
	require.NoError(t, err)
	assert.Equal(t, int64(100), unchanged.AmountCents)
}

func TestDelete(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()
	draft := seedInvoice(t, s, store.Invoice{Status: store.InvoiceDraft})
	failed := seedInvoice(t, s, store.Invoice{Status: store.InvoiceError})
	issued := seedInvoice(t, s, store.Invoice{Status: store.InvoiceIssued})

	require.NoError(t, svc.Delete(ctx, draft))
	require.NoError(t, svc.Delete(ctx, failed))
	assert.ErrorIs(t, svc.Delete(ctx, issued), ErrNotDeletable)
	assert.ErrorIs(t, svc.Delete(ctx, draft), ErrNotFound)
}

// ---------------------------------------------------------------------------
// Cancel
// ---------------------------------------------------------------------------

func TestCancel_Local(t *testing.T) {
	gw := &fakeGateway{}
	svc, s := newTestService(t, gw)
	ctx := context.Background()
	id := seedInvoice(t, s, store.Invoice{Status: store.InvoiceIssued})

	res, err := svc.Cancel(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Local)
	assert.Equal(t, store.InvoiceCancelled, res.Status)
	assert.Empty(t, gw.cancelled)
}

func TestCancel_AtAsaas(t *testing.T) {
	gw := &fakeGateway{}
	svc, s := newTestService(t, gw)
	ctx := context.Background()
	id := seedInvoice(t, s, store.Invoice{Status: store.InvoiceIssued, ExternalID: "inv_9"})

	res, err := svc.Cancel(ctx, id)
	require.NoError(t, err)
	assert.False(t, res.Local)
	assert.Equal(t, store.InvoiceCancelling, res.Status)
	assert.Equal(t, []string{"inv_9"}, gw.cancelled)

	got, err := s.GetInvoice(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.InvoiceCancelling, got.Status)
}

func TestCancel_AsaasFailureKeepsStatus(t *testing.T) {
	gw := &fakeGateway{cancelErr: errors.New("asaas: invalid_action: already cancelled")}
	svc, s := newTestService(t, gw)
	ctx := context.Background()
	id := seedInvoice(t, s, store.Invoice{Status: store.InvoiceIssued, ExternalID: "inv_9"})

	_, err := svc.Cancel(ctx, id)
	require.Error(t, err)
	assert.Equal(t, "error cancelling NFS-e at Asaas: asaas: invalid_action: already cancelled", err.Error())

	got, err := s.GetInvoice(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.InvoiceIssued, got.Status)
}

func TestCancel_NoGateway(t *testing.T) {
	svc, s := newTestService(t, nil)
	id := seedInvoice(t, s, store.Invoice{Status: store.InvoiceIssued, ExternalID: "inv_9"})

	_, err := svc.Cancel(context.Background(), id)
	assert.ErrorIs(t, err, ErrNoGateway)
}

func TestCancel_NotFound(t *testing.T) {
	svc, _ := newTestService(t, &fakeGateway{})
	_, err := svc.Cancel(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

// ---------------------------------------------------------------------------
// Municipal services
// ---------------------------------------------------------------------------

func TestMunicipalServices(t *testing.T) {
	gw := &fakeGateway{services: []asaas.MunicipalService{{ID: "1", Description: "Consultoria"}}}
	svc, _ := newTestService(t, gw)

	out, err := svc.MunicipalServices(context.Background(), "consult")
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "consult", gw.query)

	none, _ := newTestService(t, nil)
	_, err = none.MunicipalServices(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoGateway)
}
