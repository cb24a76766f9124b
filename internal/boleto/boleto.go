// Package boleto tracks payment slips: listing, payment confirmation,
// per-invoice status and due-date reminders.
package boleto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/dusk-indust/gestor/internal/store"
	"github.com/dusk-indust/gestor/internal/whatsapp"
)

// Sentinel errors.
var (
	ErrNotFound = errors.New("boleto: not found")
	ErrInvalid  = errors.New("boleto: invalid input")
)

const dateLayout = "2006-01-02"

// Service implements the boleto operations.
type Service struct {
	store       store.Store
	sender      whatsapp.Sender
	logger      *slog.Logger
	loc         *time.Location
	concurrency int
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSender sets the channel used for due-date reminders.
func WithSender(sender whatsapp.Sender) Option {
	return func(s *Service) { s.sender = sender }
}

// WithConcurrency bounds how many reminders are sent at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService returns a Service whose calendar day is computed at the given
// UTC offset in hours.
func NewService(s store.Store, logger *slog.Logger, utcOffsetHours int, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		store:       s,
		logger:      logger,
		loc:         time.FixedZone(fmt.Sprintf("UTC%+d", utcOffsetHours), utcOffsetHours*3600),
		concurrency: 4,
		now:         time.Now,
	}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// today returns the current calendar date in the service's zone.
func (s *Service) today() time.Time {
	t := s.now().In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

// List returns boletos matching f.
func (s *Service) List(ctx context.Context, f store.BoletoFilter) ([]store.Boleto, error) {
	out, err := s.store.ListBoletos(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("boleto: list: %w", err)
	}
	return out, nil
}

// Get returns the boleto with the given id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*store.Boleto, error) {
	b, err := s.store.GetBoleto(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("boleto: get: %w", err)
	}
	if b == nil {
		return nil, ErrNotFound
	}
	return b, nil
}

// Create stores a new pending boleto.
func (s *Service) Create(ctx context.Context, b *store.Boleto) error {
	if b.Number == "" || b.AmountCents <= 0 || b.DueDate == "" {
		return fmt.Errorf("%w: number, amount and due date are required", ErrInvalid)
	}
	if _, err := time.Parse(dateLayout, b.DueDate); err != nil {
		return fmt.Errorf("%w: due date must be YYYY-MM-DD", ErrInvalid)
	}
	if b.Status == "" {
		b.Status = store.BoletoPending
	}
	if b.Installment == 0 {
		b.Installment = 1
	}
	if err := s.store.CreateBoleto(ctx, b); err != nil {
		return fmt.Errorf("boleto: create: %w", err)
	}
	return nil
}

// Payment carries the optional fields of a payment confirmation.
type Payment struct {
	Date        string // YYYY-MM-DD; empty means today
	AmountCents int64  // zero means the boleto amount
}

// PaidResult describes a confirmed payment.
type PaidResult struct {
	ID             int64              `json:"id"`
	Number         string             `json:"number"`
	PreviousStatus store.BoletoStatus `json:"previousStatus"`
	Status         store.BoletoStatus `json:"status"`
	PaidAt         string             `json:"paidAt"`
	PaidCents      int64              `json:"paidCents"`
}

// MarkPaid records a payment on the boleto with the given id.
func (s *Service) MarkPaid(ctx context.Context, id int64, p Payment) (*PaidResult, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Date == "" {
		p.Date = s.today().Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, p.Date); err != nil {
		return nil, fmt.Errorf("%w: payment date must be YYYY-MM-DD", ErrInvalid)
	}
	if p.AmountCents <= 0 {
		p.AmountCents = b.AmountCents
	}

	prev := b.Status
	b.Status = store.BoletoPaid
	b.PaidAt = p.Date
	b.PaidCents = p.AmountCents
	if err := s.store.UpdateBoleto(ctx, b); err != nil {
		return nil, fmt.Errorf("boleto: mark paid: %w", err)
	}
	s.logger.Info("boleto.paid", "id", b.ID, "number", b.Number, "previous_status", prev)
	return &PaidResult{
		ID:             b.ID,
		Number:         b.Number,
		PreviousStatus: prev,
		Status:         b.Status,
		PaidAt:         b.PaidAt,
		PaidCents:      b.PaidCents,
	}, nil
}

// InvoiceStatus summarises the boletos issued for one invoice.
type InvoiceStatus struct {
	HasBoleto       bool `json:"hasBoleto"`
	AwaitingPayment bool `json:"awaitingPayment"`
}

var installmentSuffix = regexp.MustCompile(`-\d+$`)

// BaseInvoiceNumber strips a trailing installment suffix such as "-02".
func BaseInvoiceNumber(n string) string {
	return installmentSuffix.ReplaceAllString(n, "")
}

// StatusByInvoice groups boletos by base invoice number.
func (s *Service) StatusByInvoice(ctx context.Context) (map[string]InvoiceStatus, error) {
	all, err := s.store.ListBoletos(ctx, store.BoletoFilter{})
	if err != nil {
		return nil, fmt.Errorf("boleto: status by invoice: %w", err)
	}
	return AggregateByInvoice(all), nil
}

// AggregateByInvoice builds the per-invoice status map. Boletos without an
// invoice number are ignored.
func AggregateByInvoice(boletos []store.Boleto) map[string]InvoiceStatus {
	out := make(map[string]InvoiceStatus)
	for _, b := range boletos {
		if b.InvoiceNumber == "" {
			continue
		}
		base := BaseInvoiceNumber(b.InvoiceNumber)
		st := out[base]
		st.HasBoleto = true
		if b.Status == store.BoletoAwaitingPayment {
			st.AwaitingPayment = true
		}
		out[base] = st
	}
	return out
}
