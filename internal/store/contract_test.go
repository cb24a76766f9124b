package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory returns a fresh Store with an initialized schema.
type storeFactory func(t *testing.T) Store

// base is a fixed reference time used to make ordering assertions deterministic.
var base = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// runStoreContract exercises the behavior every Store backend must share.
func runStoreContract(t *testing.T, newStore storeFactory) {
	t.Helper()

	t.Run("InitSchemaIdempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.InitSchema(context.Background()))
	})

	t.Run("ClientRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c := &Client{Name: "Acme Ltda", CNPJ: "12345678000190", Phone: "11999990000"}
		require.NoError(t, s.CreateClient(ctx, c))
		assert.NotZero(t, c.ID)

		got, err := s.GetClient(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, *c, *got)

		missing, err := s.GetClient(ctx, c.ID+1000)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("FirstIDIsOne", func(t *testing.T) {
		ctx := context.Background()
		creators := map[string]func(Store) (int64, error){
			"client": func(s Store) (int64, error) {
				c := &Client{Name: "Acme Ltda"}
				err := s.CreateClient(ctx, c)
				return c.ID, err
			},
			"invoice": func(s Store) (int64, error) {
				inv := &Invoice{ClientID: 1, Status: InvoiceDraft, Description: "Consultoria"}
				err := s.CreateInvoice(ctx, inv)
				return inv.ID, err
			},
			"boleto": func(s Store) (int64, error) {
				b := &Boleto{Number: "1001-1", Installment: 1, Status: BoletoPending}
				err := s.CreateBoleto(ctx, b)
				return b.ID, err
			},
			"service order": func(s Store) (int64, error) {
				o := &ServiceOrder{Number: "20240115001", ClientID: 1, Description: "Troca de placa", Status: "open"}
				err := s.CreateServiceOrder(ctx, o)
				return o.ID, err
			},
			"gateway log": func(s Store) (int64, error) {
				e := &GatewayLog{Kind: LogRequest, Gateway: "asaas"}
				err := s.AppendGatewayLog(ctx, e)
				return e.ID, err
			},
		}
		for name, create := range creators {
			id, err := create(newStore(t))
			require.NoError(t, err, name)
			assert.Equal(t, int64(1), id, name)
		}
	})

	t.Run("InvoiceLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		inv := &Invoice{
			ClientID:    7,
			Status:      InvoiceDraft,
			AmountCents: 150000,
			Description: "Consultoria",
			IssueDate:   "2024-01-15",
			Taxes:       Taxes{ISS: 2, PIS: 0.65},
			WithholdISS: true,
		}
		require.NoError(t, s.CreateInvoice(ctx, inv))
		assert.NotZero(t, inv.ID)
		assert.False(t, inv.CreatedAt.IsZero())

		got, err := s.GetInvoice(ctx, inv.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, inv.Description, got.Description)
		assert.Equal(t, inv.Taxes, got.Taxes)
		assert.True(t, got.WithholdISS)
		assert.Equal(t, InvoiceDraft, got.Status)

		got.Status = InvoiceIssued
		got.Number = "NF-1"
		require.NoError(t, s.UpdateInvoice(ctx, got))

		updated, err := s.GetInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, InvoiceIssued, updated.Status)
		assert.Equal(t, "NF-1", updated.Number)

		require.NoError(t, s.DeleteInvoice(ctx, inv.ID))
		gone, err := s.GetInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("ListInvoicesFiltersAndOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		older := &Invoice{ClientID: 1, Status: InvoiceDraft, Description: "older", CreatedAt: base}
		newer := &Invoice{ClientID: 1, Status: InvoiceIssued, Description: "newer", CreatedAt: base.Add(time.Hour)}
		other := &Invoice{ClientID: 2, Status: InvoiceDraft, Description: "other", CreatedAt: base.Add(30 * time.Minute)}
		for _, inv := range []*Invoice{older, newer, other} {
			require.NoError(t, s.CreateInvoice(ctx, inv))
		}

		all, err := s.ListInvoices(ctx, InvoiceFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"newer", "other", "older"},
			[]string{all[0].Description, all[1].Description, all[2].Description})

		drafts, err := s.ListInvoices(ctx, InvoiceFilter{Status: InvoiceDraft, ClientID: 1})
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, "older", drafts[0].Description)
	})

	t.Run("BoletoFiltersAndOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seed := []*Boleto{
			{Number: "1001-2", Installment: 2, DueDate: "2024-02-10", Status: BoletoPending, CreatedAt: base},
			{Number: "1001-1", Installment: 1, DueDate: "2024-01-10", Status: BoletoPaid, CreatedAt: base},
			{Number: "1002-1", Installment: 1, DueDate: "2024-01-10", Status: BoletoPending, CreatedAt: base.Add(time.Hour)},
		}
		for _, b := range seed {
			require.NoError(t, s.CreateBoleto(ctx, b))
		}

		all, err := s.ListBoletos(ctx, BoletoFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"1002-1", "1001-1", "1001-2"},
			[]string{all[0].Number, all[1].Number, all[2].Number})

		prefixed, err := s.ListBoletos(ctx, BoletoFilter{NumberPrefix: "1001"})
		require.NoError(t, err)
		assert.Len(t, prefixed, 2)

		due, err := s.ListBoletos(ctx, BoletoFilter{Status: BoletoPending, DueDate: "2024-01-10"})
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "1002-1", due[0].Number)

		b := due[0]
		b.Reminders |= ReminderDueToday
		b.Status = BoletoPaid
		b.PaidAt = "2024-01-10"
		b.PaidCents = 5000
		require.NoError(t, s.UpdateBoleto(ctx, &b))

		got, err := s.GetBoleto(ctx, b.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Reminders.Has(ReminderDueToday))
		assert.False(t, got.Reminders.Has(ReminderOverdue))
		assert.Equal(t, BoletoPaid, got.Status)
		assert.Equal(t, int64(5000), got.PaidCents)
	})

	t.Run("LastServiceOrderNumber", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		last, err := s.LastServiceOrderNumber(ctx, "202401")
		require.NoError(t, err)
		assert.Empty(t, last)

		for _, n := range []string{"20240110001", "20240115002", "20231231009"} {
			require.NoError(t, s.CreateServiceOrder(ctx, &ServiceOrder{Number: n, ClientID: 1, Status: "open"}))
		}

		last, err = s.LastServiceOrderNumber(ctx, "202401")
		require.NoError(t, err)
		assert.Equal(t, "20240115002", last)
	})

	t.Run("ConversationUpsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c := &Conversation{Phone: "5511999990000", Step: "menu", Status: ConversationActive, UpdatedAt: base}
		require.NoError(t, s.SaveConversation(ctx, c))
		require.NoError(t, s.SaveConversation(ctx, &Conversation{
			Phone: "5511888880000", Step: "done", Status: ConversationCompleted, UpdatedAt: base,
		}))

		c.WarningSent = true
		require.NoError(t, s.SaveConversation(ctx, c))

		active, err := s.ListConversations(ctx, ConversationActive)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "5511999990000", active[0].Phone)
		assert.True(t, active[0].WarningSent)
		assert.WithinDuration(t, base, active[0].UpdatedAt, time.Second)

		all, err := s.ListConversations(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("GatewayLogListAndPurge", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i, kind := range []LogKind{LogRequest, LogResponse, LogError, LogRequest} {
			require.NoError(t, s.AppendGatewayLog(ctx, &GatewayLog{
				Kind:      kind,
				Gateway:   "pagseguro",
				Endpoint:  "/charges",
				Method:    "POST",
				BoletoID:  int64(i%2 + 1),
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		all, err := s.ListGatewayLogs(ctx, GatewayLogFilter{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.True(t, all[0].CreatedAt.After(all[3].CreatedAt), "newest first")

		reqs, err := s.ListGatewayLogs(ctx, GatewayLogFilter{Kind: LogRequest})
		require.NoError(t, err)
		assert.Len(t, reqs, 2)

		page, err := s.ListGatewayLogs(ctx, GatewayLogFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, LogResponse, page[1].Kind)

		byBoleto, err := s.ListGatewayLogs(ctx, GatewayLogFilter{BoletoID: 1})
		require.NoError(t, err)
		assert.Len(t, byBoleto, 2)

		removed, err := s.PurgeGatewayLogs(ctx, base.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		removed, err = s.PurgeGatewayLogs(ctx, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		empty, err := s.ListGatewayLogs(ctx, GatewayLogFilter{})
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
