// Package invoice manages nota fiscal records and their cancellation at Asaas.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dusk-indust/gestor/internal/asaas"
	"github.com/dusk-indust/gestor/internal/store"
)

// Sentinel errors.
var (
	ErrNotFound      = errors.New("invoice: not found")
	ErrNotDeletable  = errors.New("invoice: only draft or failed invoices can be deleted")
	ErrInvalid       = errors.New("invoice: invalid input")
	ErrNoGateway     = errors.New("invoice: asaas is not configured")
	errGatewayCancel = errors.New("error cancelling NFS-e at Asaas")
)

// Gateway is the subset of the Asaas API the service calls.
type Gateway interface {
	CancelInvoice(ctx context.Context, id string) (*asaas.Invoice, error)
	ListMunicipalServices(ctx context.Context, description string) ([]asaas.MunicipalService, error)
}

// ClientSummary is the part of the client shown next to an invoice.
type ClientSummary struct {
	Name  string `json:"name"`
	CNPJ  string `json:"cnpj,omitempty"`
	CPF   string `json:"cpf,omitempty"`
	Email string `json:"email,omitempty"`
}

// Detail is an invoice with its client summary. Client is nil when the
// client record no longer exists.
type Detail struct {
	store.Invoice
	Client *ClientSummary `json:"client"`
}

// Service implements the invoice operations.
type Service struct {
	store   store.Store
	gateway Gateway
	logger  *slog.Logger
	loc     *time.Location
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithGateway sets the Asaas client used for cancellation and the municipal
// service catalogue.
func WithGateway(g Gateway) Option {
	return func(s *Service) { s.gateway = g }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service whose default dates are computed at the given
// UTC offset in hours.
func NewService(s store.Store, logger *slog.Logger, utcOffsetHours int, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		store:  s,
		logger: logger,
		loc:    time.FixedZone(fmt.Sprintf("UTC%+d", utcOffsetHours), utcOffsetHours*3600),
		now:    time.Now,
	}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// List returns invoices matching f, newest first, each with its client.
func (s *Service) List(ctx context.Context, f store.InvoiceFilter) ([]Detail, error) {
	invs, err := s.store.ListInvoices(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("invoice: list: %w", err)
	}
	clients := make(map[int64]*ClientSummary)
	out := make([]Detail, 0, len(invs))
	for _, inv := range invs {
		cs, ok := clients[inv.ClientID]
		if !ok {
			cs, err = s.clientSummary(ctx, inv.ClientID)
			if err != nil {
				return nil, err
			}
			clients[inv.ClientID] = cs
		}
		out = append(out, Detail{Invoice: inv, Client: cs})
	}
	return out, nil
}

// Get returns one invoice with its client, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	cs, err := s.clientSummary(ctx, inv.ClientID)
	if err != nil {
		return nil, err
	}
	return &Detail{Invoice: *inv, Client: cs}, nil
}

func (s *Service) load(ctx context.Context, id int64) (*store.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("invoice: get: %w", err)
	}
	if inv == nil {
		return nil, ErrNotFound
	}
	return inv, nil
}

func (s *Service) clientSummary(ctx context.Context, id int64) (*ClientSummary, error) {
	if id == 0 {
		return nil, nil
	}
	c, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("invoice: client %d: %w", id, err)
	}
	if c == nil {
		return nil, nil
	}
	return &ClientSummary{Name: c.Name, CNPJ: c.CNPJ, CPF: c.CPF, Email: c.Email}, nil
}

// CreateInput holds the fields of a new draft.
type CreateInput struct {
	ClientID             int64       `json:"clientId"`
	AmountCents          int64       `json:"amountCents"`
	Description          string      `json:"description"`
	Notes                string      `json:"notes,omitempty"`
	IssueDate            string      `json:"issueDate,omitempty"`
	CompetenceDate       string      `json:"competenceDate,omitempty"`
	MunicipalServiceID   string      `json:"municipalServiceId,omitempty"`
	MunicipalServiceCode string      `json:"municipalServiceCode,omitempty"`
	MunicipalServiceName string      `json:"municipalServiceName,omitempty"`
	Taxes                store.Taxes `json:"taxes"`
	WithholdISS          bool        `json:"withholdIss"`
	DeductionsCents      int64       `json:"deductionsCents"`
}

// Create stores a draft invoice. Issue date defaults to today and the
// competence date to the issue date.
func (s *Service) Create(ctx context.Context, in CreateInput) (*store.Invoice, error) {
	if in.ClientID == 0 || in.AmountCents <= 0 || in.Description == "" {
		return nil, fmt.Errorf("%w: client, amount and service description are required", ErrInvalid)
	}
	issue := in.IssueDate
	if issue == "" {
		issue = s.now().In(s.loc).Format("2006-01-02")
	}
	comp := in.CompetenceDate
	if comp == "" {
		comp = issue
	}
	inv := &store.Invoice{
		ClientID:             in.ClientID,
		Status:               store.InvoiceDraft,
		AmountCents:          in.AmountCents,
		Description:          in.Description,
		Notes:                in.Notes,
		IssueDate:            issue,
		CompetenceDate:       comp,
		MunicipalServiceID:   in.MunicipalServiceID,
		MunicipalServiceCode: in.MunicipalServiceCode,
		MunicipalServiceName: in.MunicipalServiceName,
		Taxes:                in.Taxes,
		WithholdISS:          in.WithholdISS,
		DeductionsCents:      in.DeductionsCents,
	}
	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("invoice: create: %w", err)
	}
	s.logger.Info("invoice.created", "id", inv.ID, "client_id", inv.ClientID)
	return inv, nil
}

// UpdateInput holds a partial update. Nil pointers keep the stored value;
// notes and the municipal service are always replaced.
type UpdateInput struct {
	AmountCents          *int64   `json:"amountCents"`
	Description          *string  `json:"description"`
	Notes                string   `json:"notes"`
	IssueDate            *string  `json:"issueDate"`
	CompetenceDate       *string  `json:"competenceDate"`
	MunicipalServiceID   string   `json:"municipalServiceId"`
	MunicipalServiceCode string   `json:"municipalServiceCode"`
	MunicipalServiceName string   `json:"municipalServiceName"`
	ISS                  *float64 `json:"iss"`
	COFINS               *float64 `json:"cofins"`
	CSLL                 *float64 `json:"csll"`
	INSS                 *float64 `json:"inss"`
	IR                   *float64 `json:"ir"`
	PIS                  *float64 `json:"pis"`
	WithholdISS          *bool    `json:"withholdIss"`
	DeductionsCents      *int64   `json:"deductionsCents"`
}

// Update applies in to a draft invoice. Invoices past the draft stage are
// left untouched and reported with updated=false.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (updated bool, err error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	if inv.Status != store.InvoiceDraft {
		return false, nil
	}
	setInt(&inv.AmountCents, in.AmountCents)
	setString(&inv.Description, in.Description)
	inv.Notes = in.Notes
	setString(&inv.IssueDate, in.IssueDate)
	setString(&inv.CompetenceDate, in.CompetenceDate)
	inv.MunicipalServiceID = in.MunicipalServiceID
	inv.MunicipalServiceCode = in.MunicipalServiceCode
	inv.MunicipalServiceName = in.MunicipalServiceName
	setFloat(&inv.Taxes.ISS, in.ISS)
	setFloat(&inv.Taxes.COFINS, in.COFINS)
	setFloat(&inv.Taxes.CSLL, in.CSLL)
	setFloat(&inv.Taxes.INSS, in.INSS)
	setFloat(&inv.Taxes.IR, in.IR)
	setFloat(&inv.Taxes.PIS, in.PIS)
	if in.WithholdISS != nil {
		inv.WithholdISS = *in.WithholdISS
	}
	setInt(&inv.DeductionsCents, in.DeductionsCents)

	if err := s.store.UpdateInvoice(ctx, inv); err != nil {
		return false, fmt.Errorf("invoice: update: %w", err)
	}
	return true, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Delete removes a draft or failed invoice.
func (s *Service) Delete(ctx context.Context, id int64) error {
	inv, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != store.InvoiceDraft && inv.Status != store.InvoiceError {
		return ErrNotDeletable
	}
	if err := s.store.DeleteInvoice(ctx, id); err != nil {
		return fmt.Errorf("invoice: delete: %w", err)
	}
	return nil
}

// CancelResult tells how a cancellation was handled.
type CancelResult struct {
	Status store.InvoiceStatus `json:"status"`
	Local  bool                `json:"local"`
}

// Cancel cancels an invoice. One that never reached Asaas is cancelled
// locally; otherwise cancellation is requested at Asaas and the invoice
// moves to cancelling until Asaas confirms.
func (s *Service) Cancel(ctx context.Context, id int64) (*CancelResult, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.ExternalID == "" {
		inv.Status = store.InvoiceCancelled
		if err := s.store.UpdateInvoice(ctx, inv); err != nil {
			return nil, fmt.Errorf("invoice: cancel: %w", err)
		}
		return &CancelResult{Status: inv.Status, Local: true}, nil
	}

	if s.gateway == nil {
		return nil, fmt.Errorf("%w: %w", errGatewayCancel, ErrNoGateway)
	}
	if _, err := s.gateway.CancelInvoice(ctx, inv.ExternalID); err != nil {
		s.logger.Error("invoice.cancel_failed", "id", id, "external_id", inv.ExternalID, "error", err)
		return nil, fmt.Errorf("%w: %w", errGatewayCancel, err)
	}

	inv.Status = store.InvoiceCancelling
	if err := s.store.UpdateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("invoice: cancel: %w", err)
	}
	s.logger.Info("invoice.cancel_requested", "id", id, "external_id", inv.ExternalID)
	return &CancelResult{Status: inv.Status}, nil
}

// MunicipalServices searches the Asaas municipal service catalogue.
func (s *Service) MunicipalServices(ctx context.Context, description string) ([]asaas.MunicipalService, error) {
	if s.gateway == nil {
		return nil, ErrNoGateway
	}
	out, err := s.gateway.ListMunicipalServices(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("invoice: municipal services: %w", err)
	}
	return out, nil
}
