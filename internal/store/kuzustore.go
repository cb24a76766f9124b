//go:build cgo

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the embedded backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
// Timestamps are stored as INT64 unix nanoseconds.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
	now  func() time.Time
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path. KuzuDB creates the directory itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn, now: time.Now}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Sequences must precede the node tables that draw ids from them, and node
// tables must precede relationship tables. Ids start at 1 because a zero id
// means "not stored".
var ddlStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS client_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS invoice_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS boleto_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS service_order_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS gateway_log_id_seq START 1`,
	`CREATE NODE TABLE IF NOT EXISTS Client(
		id INT64 DEFAULT nextval('client_id_seq'),
		name STRING,
		cnpj STRING,
		cpf STRING,
		email STRING,
		phone STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Invoice(
		id INT64 DEFAULT nextval('invoice_id_seq'),
		client_id INT64,
		number STRING,
		external_id STRING,
		status STRING,
		amount_cents INT64,
		description STRING,
		notes STRING,
		issue_date STRING,
		competence_date STRING,
		municipal_service_id STRING,
		municipal_service_code STRING,
		municipal_service_name STRING,
		taxes STRING,
		withhold_iss BOOLEAN,
		deductions_cents INT64,
		created_at INT64,
		updated_at INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Boleto(
		id INT64 DEFAULT nextval('boleto_id_seq'),
		client_id INT64,
		number STRING,
		invoice_number STRING,
		installment INT64,
		amount_cents INT64,
		due_date STRING,
		status STRING,
		paid_at STRING,
		paid_cents INT64,
		pdf_url STRING,
		external_id STRING,
		reminders INT64,
		created_at INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS ServiceOrder(
		id INT64 DEFAULT nextval('service_order_id_seq'),
		number STRING,
		client_id INT64,
		description STRING,
		status STRING,
		created_at INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Conversation(
		phone STRING,
		step STRING,
		status STRING,
		warning_sent BOOLEAN,
		updated_at INT64,
		PRIMARY KEY(phone)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS GatewayLog(
		id INT64 DEFAULT nextval('gateway_log_id_seq'),
		kind STRING,
		gateway STRING,
		endpoint STRING,
		method STRING,
		payload STRING,
		response STRING,
		status_code INT64,
		boleto_id INT64,
		charge_id STRING,
		error STRING,
		created_at INT64,
		PRIMARY KEY(id)
	)`,
}

// InitSchema creates all node tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Clients ----------

// CreateClient inserts a Client node and assigns its ID.
func (s *KuzuStore) CreateClient(_ context.Context, c *Client) error {
	id, err := s.insert(
		`CREATE (c:Client {name: $name, cnpj: $cnpj, cpf: $cpf, email: $email, phone: $phone}) RETURN c.id`,
		map[string]any{
			"name":  c.Name,
			"cnpj":  c.CNPJ,
			"cpf":   c.CPF,
			"email": c.Email,
			"phone": c.Phone,
		},
	)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// GetClient retrieves a Client node by ID, or returns nil if not found.
func (s *KuzuStore) GetClient(_ context.Context, id int64) (*Client, error) {
	rows, err := s.query(
		"MATCH (c:Client {id: $id}) RETURN c.id, c.name, c.cnpj, c.cpf, c.email, c.phone",
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &Client{
		ID:    toInt64(r[0]),
		Name:  toString(r[1]),
		CNPJ:  toString(r[2]),
		CPF:   toString(r[3]),
		Email: toString(r[4]),
		Phone: toString(r[5]),
	}, nil
}

// ---------- Invoices ----------

const invoiceReturn = `RETURN i.id, i.client_id, i.number, i.external_id, i.status, i.amount_cents,
	i.description, i.notes, i.issue_date, i.competence_date, i.municipal_service_id,
	i.municipal_service_code, i.municipal_service_name, i.taxes, i.withhold_iss,
	i.deductions_cents, i.created_at, i.updated_at`

// invoiceParams maps every stored column of inv to its Cypher parameter.
func invoiceParams(inv *Invoice) (map[string]any, error) {
	taxes, err := json.Marshal(inv.Taxes)
	if err != nil {
		return nil, fmt.Errorf("kuzu: marshal taxes: %w", err)
	}
	return map[string]any{
		"client":      inv.ClientID,
		"number":      inv.Number,
		"ext":         inv.ExternalID,
		"status":      string(inv.Status),
		"amount":      inv.AmountCents,
		"description": inv.Description,
		"notes":       inv.Notes,
		"issue":       inv.IssueDate,
		"comp":        inv.CompetenceDate,
		"svc_id":      inv.MunicipalServiceID,
		"svc_code":    inv.MunicipalServiceCode,
		"svc_name":    inv.MunicipalServiceName,
		"taxes":       string(taxes),
		"withhold":    inv.WithholdISS,
		"deduct":      inv.DeductionsCents,
		"updatedAt":   inv.UpdatedAt.UnixNano(),
	}, nil
}

// CreateInvoice inserts an Invoice node, assigning its ID and timestamps.
func (s *KuzuStore) CreateInvoice(_ context.Context, inv *Invoice) error {
	now := s.now()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now
	params, err := invoiceParams(inv)
	if err != nil {
		return err
	}
	params["createdAt"] = inv.CreatedAt.UnixNano()
	id, err := s.insert(`CREATE (i:Invoice {
			client_id: $client, number: $number, external_id: $ext, status: $status,
			amount_cents: $amount, description: $description, notes: $notes, issue_date: $issue,
			competence_date: $comp, municipal_service_id: $svc_id, municipal_service_code: $svc_code,
			municipal_service_name: $svc_name, taxes: $taxes, withhold_iss: $withhold,
			deductions_cents: $deduct, created_at: $createdAt, updated_at: $updatedAt
		}) RETURN i.id`, params)
	if err != nil {
		return err
	}
	inv.ID = id
	return nil
}

// GetInvoice retrieves an Invoice node by ID, or returns nil if not found.
func (s *KuzuStore) GetInvoice(_ context.Context, id int64) (*Invoice, error) {
	rows, err := s.query("MATCH (i:Invoice {id: $id}) "+invoiceReturn, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToInvoice(rows[0])
}

// ListInvoices returns matching invoices, newest first.
func (s *KuzuStore) ListInvoices(_ context.Context, f InvoiceFilter) ([]Invoice, error) {
	var conds []string
	params := map[string]any{}
	if f.Status != "" {
		conds = append(conds, "i.status = $status")
		params["status"] = string(f.Status)
	}
	if f.ClientID != 0 {
		conds = append(conds, "i.client_id = $client")
		params["client"] = f.ClientID
	}
	rows, err := s.query(
		"MATCH (i:Invoice)"+where(conds)+" "+invoiceReturn+" ORDER BY i.created_at DESC, i.id DESC",
		params,
	)
	if err != nil {
		return nil, err
	}
	out := make([]Invoice, 0, len(rows))
	for _, r := range rows {
		inv, err := rowToInvoice(r)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, nil
}

// UpdateInvoice writes every mutable property of inv and bumps UpdatedAt.
func (s *KuzuStore) UpdateInvoice(_ context.Context, inv *Invoice) error {
	inv.UpdatedAt = s.now()
	params, err := invoiceParams(inv)
	if err != nil {
		return err
	}
	params["id"] = inv.ID
	return s.exec(`MATCH (i:Invoice {id: $id}) SET
			i.client_id = $client, i.number = $number, i.external_id = $ext, i.status = $status,
			i.amount_cents = $amount, i.description = $description, i.notes = $notes, i.issue_date = $issue,
			i.competence_date = $comp, i.municipal_service_id = $svc_id,
			i.municipal_service_code = $svc_code, i.municipal_service_name = $svc_name,
			i.taxes = $taxes, i.withhold_iss = $withhold, i.deductions_cents = $deduct,
			i.updated_at = $updatedAt`, params)
}

// DeleteInvoice removes the Invoice node with the given ID.
func (s *KuzuStore) DeleteInvoice(_ context.Context, id int64) error {
	return s.exec("MATCH (i:Invoice {id: $id}) DELETE i", map[string]any{"id": id})
}

// rowToInvoice converts an invoiceReturn row into an Invoice.
func rowToInvoice(r []any) (*Invoice, error) {
	inv := &Invoice{
		ID:                   toInt64(r[0]),
		ClientID:             toInt64(r[1]),
		Number:               toString(r[2]),
		ExternalID:           toString(r[3]),
		Status:               InvoiceStatus(toString(r[4])),
		AmountCents:          toInt64(r[5]),
		Description:          toString(r[6]),
		Notes:                toString(r[7]),
		IssueDate:            toString(r[8]),
		CompetenceDate:       toString(r[9]),
		MunicipalServiceID:   toString(r[10]),
		MunicipalServiceCode: toString(r[11]),
		MunicipalServiceName: toString(r[12]),
		WithholdISS:          toBool(r[14]),
		DeductionsCents:      toInt64(r[15]),
		CreatedAt:            fromNanos(r[16]),
		UpdatedAt:            fromNanos(r[17]),
	}
	if taxes := toString(r[13]); taxes != "" {
		if err := json.Unmarshal([]byte(taxes), &inv.Taxes); err != nil {
			return nil, fmt.Errorf("kuzu: decode taxes: %w", err)
		}
	}
	return inv, nil
}

// ---------- Boletos ----------

const boletoReturn = `RETURN b.id, b.client_id, b.number, b.invoice_number, b.installment, b.amount_cents,
	b.due_date, b.status, b.paid_at, b.paid_cents, b.pdf_url, b.external_id, b.reminders, b.created_at`

func boletoParams(b *Boleto) map[string]any {
	return map[string]any{
		"client":    b.ClientID,
		"number":    b.Number,
		"invoice":   b.InvoiceNumber,
		"inst":      int64(b.Installment),
		"amount":    b.AmountCents,
		"due":       b.DueDate,
		"status":    string(b.Status),
		"paidAt":    b.PaidAt,
		"paid":      b.PaidCents,
		"pdf":       b.PDFURL,
		"ext":       b.ExternalID,
		"reminders": int64(b.Reminders),
	}
}

// CreateBoleto inserts a Boleto node and assigns its ID.
func (s *KuzuStore) CreateBoleto(_ context.Context, b *Boleto) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	params := boletoParams(b)
	params["createdAt"] = b.CreatedAt.UnixNano()
	id, err := s.insert(`CREATE (b:Boleto {
			client_id: $client, number: $number, invoice_number: $invoice, installment: $inst,
			amount_cents: $amount, due_date: $due, status: $status, paid_at: $paidAt,
			paid_cents: $paid, pdf_url: $pdf, external_id: $ext, reminders: $reminders,
			created_at: $createdAt
		}) RETURN b.id`, params)
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

// GetBoleto retrieves a Boleto node by ID, or returns nil if not found.
func (s *KuzuStore) GetBoleto(_ context.Context, id int64) (*Boleto, error) {
	rows, err := s.query("MATCH (b:Boleto {id: $id}) "+boletoReturn, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToBoleto(rows[0]), nil
}

// ListBoletos returns matching boletos, newest first and by installment.
func (s *KuzuStore) ListBoletos(_ context.Context, f BoletoFilter) ([]Boleto, error) {
	var conds []string
	params := map[string]any{}
	if f.Number != "" {
		conds = append(conds, "b.number = $number")
		params["number"] = f.Number
	}
	if f.NumberPrefix != "" {
		conds = append(conds, "b.number STARTS WITH $prefix")
		params["prefix"] = f.NumberPrefix
	}
	if f.Status != "" {
		conds = append(conds, "b.status = $status")
		params["status"] = string(f.Status)
	}
	if f.DueDate != "" {
		conds = append(conds, "b.due_date = $due")
		params["due"] = f.DueDate
	}
	rows, err := s.query(
		"MATCH (b:Boleto)"+where(conds)+" "+boletoReturn+" ORDER BY b.created_at DESC, b.installment ASC, b.id ASC",
		params,
	)
	if err != nil {
		return nil, err
	}
	out := make([]Boleto, 0, len(rows))
	for _, r := range rows {
		out = append(out, *rowToBoleto(r))
	}
	return out, nil
}

// UpdateBoleto writes every mutable property of b.
func (s *KuzuStore) UpdateBoleto(_ context.Context, b *Boleto) error {
	params := boletoParams(b)
	params["id"] = b.ID
	return s.exec(`MATCH (b:Boleto {id: $id}) SET
			b.client_id = $client, b.number = $number, b.invoice_number = $invoice,
			b.installment = $inst, b.amount_cents = $amount, b.due_date = $due, b.status = $status,
			b.paid_at = $paidAt, b.paid_cents = $paid, b.pdf_url = $pdf, b.external_id = $ext,
			b.reminders = $reminders`, params)
}

func rowToBoleto(r []any) *Boleto {
	return &Boleto{
		ID:            toInt64(r[0]),
		ClientID:      toInt64(r[1]),
		Number:        toString(r[2]),
		InvoiceNumber: toString(r[3]),
		Installment:   int(toInt64(r[4])),
		AmountCents:   toInt64(r[5]),
		DueDate:       toString(r[6]),
		Status:        BoletoStatus(toString(r[7])),
		PaidAt:        toString(r[8]),
		PaidCents:     toInt64(r[9]),
		PDFURL:        toString(r[10]),
		ExternalID:    toString(r[11]),
		Reminders:     Reminder(toInt64(r[12])),
		CreatedAt:     fromNanos(r[13]),
	}
}

// ---------- Service orders ----------

// CreateServiceOrder inserts a ServiceOrder node and assigns its ID.
func (s *KuzuStore) CreateServiceOrder(_ context.Context, o *ServiceOrder) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	id, err := s.insert(
		`CREATE (o:ServiceOrder {number: $number, client_id: $client, description: $description,
			status: $status, created_at: $createdAt}) RETURN o.id`,
		map[string]any{
			"number":      o.Number,
			"client":      o.ClientID,
			"description": o.Description,
			"status":      o.Status,
			"createdAt":   o.CreatedAt.UnixNano(),
		},
	)
	if err != nil {
		return err
	}
	o.ID = id
	return nil
}

// LastServiceOrderNumber returns the greatest order number starting with
// prefix, or "" when there is none.
func (s *KuzuStore) LastServiceOrderNumber(_ context.Context, prefix string) (string, error) {
	rows, err := s.query(
		`MATCH (o:ServiceOrder) WHERE o.number STARTS WITH $prefix
		 RETURN o.number ORDER BY o.number DESC LIMIT 1`,
		map[string]any{"prefix": prefix},
	)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return toString(rows[0][0]), nil
}

// ---------- Conversations ----------

// SaveConversation upserts a Conversation node keyed by phone.
func (s *KuzuStore) SaveConversation(_ context.Context, c *Conversation) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = s.now()
	}
	return s.exec(
		`MERGE (c:Conversation {phone: $phone})
		 SET c.step = $step, c.status = $status, c.warning_sent = $warn, c.updated_at = $at`,
		map[string]any{
			"phone":  c.Phone,
			"step":   c.Step,
			"status": string(c.Status),
			"warn":   c.WarningSent,
			"at":     c.UpdatedAt.UnixNano(),
		},
	)
}

// ListConversations returns conversations with the given status, ordered by phone.
func (s *KuzuStore) ListConversations(_ context.Context, status ConversationStatus) ([]Conversation, error) {
	var conds []string
	params := map[string]any{}
	if status != "" {
		conds = append(conds, "c.status = $status")
		params["status"] = string(status)
	}
	rows, err := s.query(
		"MATCH (c:Conversation)"+where(conds)+
			" RETURN c.phone, c.step, c.status, c.warning_sent, c.updated_at ORDER BY c.phone",
		params,
	)
	if err != nil {
		return nil, err
	}
	out := make([]Conversation, 0, len(rows))
	for _, r := range rows {
		out = append(out, Conversation{
			Phone:       toString(r[0]),
			Step:        toString(r[1]),
			Status:      ConversationStatus(toString(r[2])),
			WarningSent: toBool(r[3]),
			UpdatedAt:   fromNanos(r[4]),
		})
	}
	return out, nil
}

// ---------- Gateway log ----------

// AppendGatewayLog inserts a GatewayLog node and assigns its ID.
func (s *KuzuStore) AppendGatewayLog(_ context.Context, e *GatewayLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	id, err := s.insert(
		`CREATE (l:GatewayLog {kind: $kind, gateway: $gateway, endpoint: $endpoint, method: $method,
			payload: $payload, response: $response, status_code: $code, boleto_id: $boleto,
			charge_id: $charge, error: $err, created_at: $createdAt}) RETURN l.id`,
		map[string]any{
			"kind":      string(e.Kind),
			"gateway":   e.Gateway,
			"endpoint":  e.Endpoint,
			"method":    e.Method,
			"payload":   e.Payload,
			"response":  e.Response,
			"code":      int64(e.StatusCode),
			"boleto":    e.BoletoID,
			"charge":    e.ChargeID,
			"err":       e.Error,
			"createdAt": e.CreatedAt.UnixNano(),
		},
	)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListGatewayLogs returns matching entries, newest first.
func (s *KuzuStore) ListGatewayLogs(_ context.Context, f GatewayLogFilter) ([]GatewayLog, error) {
	var conds []string
	params := map[string]any{}
	if f.Kind != "" {
		conds = append(conds, "l.kind = $kind")
		params["kind"] = string(f.Kind)
	}
	if f.BoletoID != 0 {
		conds = append(conds, "l.boleto_id = $boleto")
		params["boleto"] = f.BoletoID
	}
	if f.ChargeID != "" {
		conds = append(conds, "l.charge_id = $charge")
		params["charge"] = f.ChargeID
	}
	cypher := "MATCH (l:GatewayLog)" + where(conds) +
		` RETURN l.id, l.kind, l.gateway, l.endpoint, l.method, l.payload, l.response, l.status_code,
		  l.boleto_id, l.charge_id, l.error, l.created_at ORDER BY l.created_at DESC, l.id DESC`
	// Offset and limit are ints, not user-controlled strings.
	if f.Offset > 0 {
		cypher += fmt.Sprintf(" SKIP %d", f.Offset)
	}
	if f.Limit > 0 {
		cypher += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]GatewayLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, GatewayLog{
			ID:         toInt64(r[0]),
			Kind:       LogKind(toString(r[1])),
			Gateway:    toString(r[2]),
			Endpoint:   toString(r[3]),
			Method:     toString(r[4]),
			Payload:    toString(r[5]),
			Response:   toString(r[6]),
			StatusCode: int(toInt64(r[7])),
			BoletoID:   toInt64(r[8]),
			ChargeID:   toString(r[9]),
			Error:      toString(r[10]),
			CreatedAt:  fromNanos(r[11]),
		})
	}
	return out, nil
}

// PurgeGatewayLogs deletes entries created before the cutoff. A zero cutoff
// deletes everything.
func (s *KuzuStore) PurgeGatewayLogs(_ context.Context, before time.Time) (int, error) {
	cond := ""
	params := map[string]any{}
	if !before.IsZero() {
		cond = " WHERE l.created_at < $before"
		params["before"] = before.UnixNano()
	}
	rows, err := s.query("MATCH (l:GatewayLog)"+cond+" RETURN count(l)", params)
	if err != nil {
		return 0, err
	}
	n := 0
	if len(rows) > 0 && len(rows[0]) > 0 {
		n = int(toInt64(rows[0][0]))
	}
	if n == 0 {
		return 0, nil
	}
	if err := s.exec("MATCH (l:GatewayLog)"+cond+" DELETE l", params); err != nil {
		return 0, err
	}
	return n, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	if len(params) == 0 {
		res, err := s.conn.Query(cypher)
		if err != nil {
			return fmt.Errorf("kuzu: execute: %w", err)
		}
		res.Close()
		return nil
	}
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// insert runs a CREATE ... RETURN x.id statement and returns the new ID.
func (s *KuzuStore) insert(cypher string, params map[string]any) (int64, error) {
	rows, err := s.query(cypher, params)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, fmt.Errorf("kuzu: insert returned no id")
	}
	return toInt64(rows[0][0]), nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// where joins conditions into a WHERE clause, or "" when there are none.
func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}

func fromNanos(v any) time.Time {
	n := toInt64(v)
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
