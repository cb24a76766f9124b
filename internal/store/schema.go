package store

import "time"

// --- Enums ---

// InvoiceStatus is the lifecycle state of a nota fiscal.
type InvoiceStatus string

const (
	InvoiceDraft      InvoiceStatus = "draft"
	InvoiceScheduled  InvoiceStatus = "scheduled"
	InvoiceIssued     InvoiceStatus = "issued"
	InvoiceCancelling InvoiceStatus = "cancelling"
	InvoiceCancelled  InvoiceStatus = "cancelled"
	InvoiceError      InvoiceStatus = "error"
)

// BoletoStatus is the payment state of a boleto.
type BoletoStatus string

const (
	BoletoPending         BoletoStatus = "pending"
	BoletoAwaitingPayment BoletoStatus = "awaiting_payment"
	BoletoPaid            BoletoStatus = "paid"
	BoletoOverdue         BoletoStatus = "overdue"
	BoletoCancelled       BoletoStatus = "cancelled"
)

// ConversationStatus tells whether a WhatsApp conversation is still open.
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationCompleted ConversationStatus = "completed"
)

// LogKind classifies a gateway log entry.
type LogKind string

const (
	LogRequest  LogKind = "request"
	LogResponse LogKind = "response"
	LogError    LogKind = "error"
	LogWebhook  LogKind = "webhook"
)

// Reminder is a bit set of due-date notifications already sent for a boleto.
type Reminder uint8

const (
	ReminderThreeDays Reminder = 1 << iota
	ReminderDueToday
	ReminderOverdue
)

// Has reports whether r includes flag.
func (r Reminder) Has(flag Reminder) bool { return r&flag != 0 }

// --- Models ---

// Client is a customer that invoices and boletos are issued to.
type Client struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	CNPJ  string `json:"cnpj,omitempty"`
	CPF   string `json:"cpf,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Taxes holds the withholding percentages of a service invoice.
type Taxes struct {
	ISS    float64 `json:"iss"`
	COFINS float64 `json:"cofins"`
	CSLL   float64 `json:"csll"`
	INSS   float64 `json:"inss"`
	IR     float64 `json:"ir"`
	PIS    float64 `json:"pis"`
}

// Invoice is a nota fiscal (NF-e / NFS-e) record.
type Invoice struct {
	ID                   int64         `json:"id"`
	ClientID             int64         `json:"clientId"`
	Number               string        `json:"number,omitempty"`
	ExternalID           string        `json:"externalId,omitempty"`
	Status               InvoiceStatus `json:"status"`
	AmountCents          int64         `json:"amountCents"`
	Description          string        `json:"description"`
	Notes                string        `json:"notes,omitempty"`
	IssueDate            string        `json:"issueDate"`
	CompetenceDate       string        `json:"competenceDate"`
	MunicipalServiceID   string        `json:"municipalServiceId,omitempty"`
	MunicipalServiceCode string        `json:"municipalServiceCode,omitempty"`
	MunicipalServiceName string        `json:"municipalServiceName,omitempty"`
	Taxes                Taxes         `json:"taxes"`
	WithholdISS          bool          `json:"withholdIss"`
	DeductionsCents      int64         `json:"deductionsCents"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// InvoiceFilter narrows ListInvoices. Zero values mean "any".
type InvoiceFilter struct {
	Status   InvoiceStatus
	ClientID int64
}

// Boleto is a payment slip, usually one installment of an invoice.
type Boleto struct {
	ID            int64        `json:"id"`
	ClientID      int64        `json:"clientId"`
	Number        string       `json:"number"`
	InvoiceNumber string       `json:"invoiceNumber,omitempty"`
	Installment   int          `json:"installment"`
	AmountCents   int64        `json:"amountCents"`
	DueDate       string       `json:"dueDate"`
	Status        BoletoStatus `json:"status"`
	PaidAt        string       `json:"paidAt,omitempty"`
	PaidCents     int64        `json:"paidCents,omitempty"`
	PDFURL        string       `json:"pdfUrl,omitempty"`
	ExternalID    string       `json:"externalId,omitempty"`
	Reminders     Reminder     `json:"reminders"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// BoletoFilter narrows ListBoletos. Zero values mean "any".
type BoletoFilter struct {
	Number       string
	NumberPrefix string
	Status       BoletoStatus
	DueDate      string
}

// ServiceOrder is an ordem de serviço.
type ServiceOrder struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	ClientID    int64     `json:"clientId"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Conversation tracks a WhatsApp customer conversation.
type Conversation struct {
	Phone       string             `json:"phone"`
	Step        string             `json:"step"`
	Status      ConversationStatus `json:"status"`
	WarningSent bool               `json:"warningSent"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// GatewayLog is one entry of the payment-gateway transaction log.
type GatewayLog struct {
	ID         int64     `json:"id"`
	Kind       LogKind   `json:"kind"`
	Gateway    string    `json:"gateway"`
	Endpoint   string    `json:"endpoint"`
	Method     string    `json:"method"`
	Payload    string    `json:"payload,omitempty"`
	Response   string    `json:"response,omitempty"`
	StatusCode int       `json:"statusCode,omitempty"`
	BoletoID   int64     `json:"boletoId,omitempty"`
	ChargeID   string    `json:"chargeId,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GatewayLogFilter narrows ListGatewayLogs. Limit <= 0 returns all entries.
type GatewayLogFilter struct {
	Kind     LogKind
	BoletoID int64
	ChargeID string
	Limit    int
	Offset   int
}
