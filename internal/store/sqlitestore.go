//go:build cgo

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a SQLite database file.
// It requires CGO because go-sqlite3 wraps the SQLite C library.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time check that SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath. The special path
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create parent directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		cnpj TEXT NOT NULL DEFAULT '',
		cpf TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL,
		number TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		description TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		issue_date TEXT NOT NULL DEFAULT '',
		competence_date TEXT NOT NULL DEFAULT '',
		municipal_service_id TEXT NOT NULL DEFAULT '',
		municipal_service_code TEXT NOT NULL DEFAULT '',
		municipal_service_name TEXT NOT NULL DEFAULT '',
		taxes TEXT NOT NULL DEFAULT '{}',
		withhold_iss INTEGER NOT NULL DEFAULT 0,
		deductions_cents INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS boletos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL,
		number TEXT NOT NULL,
		invoice_number TEXT NOT NULL DEFAULT '',
		installment INTEGER NOT NULL DEFAULT 1,
		amount_cents INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_at TEXT NOT NULL DEFAULT '',
		paid_cents INTEGER NOT NULL DEFAULT 0,
		pdf_url TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL DEFAULT '',
		reminders INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS service_orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		number TEXT NOT NULL UNIQUE,
		client_id INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		phone TEXT PRIMARY KEY,
		step TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		warning_sent INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS gateway_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		gateway TEXT NOT NULL DEFAULT '',
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL DEFAULT 0,
		boleto_id INTEGER NOT NULL DEFAULT 0,
		charge_id TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);
	CREATE INDEX IF NOT EXISTS idx_boletos_number ON boletos(number);
	CREATE INDEX IF NOT EXISTS idx_boletos_due ON boletos(due_date, status);
	CREATE INDEX IF NOT EXISTS idx_gateway_logs_created ON gateway_logs(created_at);
`

// InitSchema creates all tables and indexes if they do not exist.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("sqlite: init schema: %w", err)
	}
	return nil
}

// ---------- Clients ----------

// CreateClient inserts c and assigns its ID.
func (s *SQLiteStore) CreateClient(ctx context.Context, c *Client) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (name, cnpj, cpf, email, phone) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.CNPJ, c.CPF, c.Email, c.Phone)
	if err != nil {
		return fmt.Errorf("sqlite: insert client: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

// GetClient returns the client with the given ID, or nil if not found.
func (s *SQLiteStore) GetClient(ctx context.Context, id int64) (*Client, error) {
	var c Client
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, cnpj, cpf, email, phone FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.CNPJ, &c.CPF, &c.Email, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get client: %w", err)
	}
	return &c, nil
}

// ---------- Invoices ----------

const invoiceColumns = `id, client_id, number, external_id, status, amount_cents, description, notes,
	issue_date, competence_date, municipal_service_id, municipal_service_code, municipal_service_name,
	taxes, withhold_iss, deductions_cents, created_at, updated_at`

// CreateInvoice inserts inv, assigning its ID and timestamps.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, inv *Invoice) error {
	now := s.now().UTC()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = now
	taxes, err := json.Marshal(inv.Taxes)
	if err != nil {
		return fmt.Errorf("sqlite: marshal taxes: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (client_id, number, external_id, status, amount_cents, description, notes,
			issue_date, competence_date, municipal_service_id, municipal_service_code, municipal_service_name,
			taxes, withhold_iss, deductions_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ClientID, inv.Number, inv.ExternalID, string(inv.Status), inv.AmountCents, inv.Description, inv.Notes,
		inv.IssueDate, inv.CompetenceDate, inv.MunicipalServiceID, inv.MunicipalServiceCode, inv.MunicipalServiceName,
		string(taxes), inv.WithholdISS, inv.DeductionsCents, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: insert invoice: %w", err)
	}
	inv.ID, err = res.LastInsertId()
	return err
}

// GetInvoice returns the invoice with the given ID, or nil if not found.
func (s *SQLiteStore) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get invoice: %w", err)
	}
	invs, err := scanInvoices(rows)
	if err != nil || len(invs) == 0 {
		return nil, err
	}
	return &invs[0], nil
}

// ListInvoices returns matching invoices, newest first.
func (s *SQLiteStore) ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.ClientID != 0 {
		conds = append(conds, "client_id = ?")
		args = append(args, f.ClientID)
	}
	q := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list invoices: %w", err)
	}
	return scanInvoices(rows)
}

// UpdateInvoice writes every mutable column of inv and bumps UpdatedAt.
func (s *SQLiteStore) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	inv.UpdatedAt = s.now().UTC()
	taxes, err := json.Marshal(inv.Taxes)
	if err != nil {
		return fmt.Errorf("sqlite: marshal taxes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE invoices SET client_id = ?, number = ?, external_id = ?, status = ?, amount_cents = ?,
			description = ?, notes = ?, issue_date = ?, competence_date = ?, municipal_service_id = ?,
			municipal_service_code = ?, municipal_service_name = ?, taxes = ?, withhold_iss = ?,
			deductions_cents = ?, updated_at = ?
		WHERE id = ?`,
		inv.ClientID, inv.Number, inv.ExternalID, string(inv.Status), inv.AmountCents,
		inv.Description, inv.Notes, inv.IssueDate, inv.CompetenceDate, inv.MunicipalServiceID,
		inv.MunicipalServiceCode, inv.MunicipalServiceName, string(taxes), inv.WithholdISS,
		inv.DeductionsCents, inv.UpdatedAt, inv.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update invoice: %w", err)
	}
	return nil
}

// DeleteInvoice removes the invoice with the given ID.
func (s *SQLiteStore) DeleteInvoice(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete invoice: %w", err)
	}
	return nil
}

func scanInvoices(rows *sql.Rows) ([]Invoice, error) {
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		var (
			inv    Invoice
			status string
			taxes  string
		)
		if err := rows.Scan(&inv.ID, &inv.ClientID, &inv.Number, &inv.ExternalID, &status, &inv.AmountCents,
			&inv.Description, &inv.Notes, &inv.IssueDate, &inv.CompetenceDate, &inv.MunicipalServiceID,
			&inv.MunicipalServiceCode, &inv.MunicipalServiceName, &taxes, &inv.WithholdISS,
			&inv.DeductionsCents, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan invoice: %w", err)
		}
		inv.Status = InvoiceStatus(status)
		if err := json.Unmarshal([]byte(taxes), &inv.Taxes); err != nil {
			return nil, fmt.Errorf("sqlite: decode taxes: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ---------- Boletos ----------

const boletoColumns = `id, client_id, number, invoice_number, installment, amount_cents, due_date, status,
	paid_at, paid_cents, pdf_url, external_id, reminders, created_at`

// CreateBoleto inserts b and assigns its ID.
func (s *SQLiteStore) CreateBoleto(ctx context.Context, b *Boleto) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	b.CreatedAt = b.CreatedAt.UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO boletos (client_id, number, invoice_number, installment, amount_cents, due_date, status,
			paid_at, paid_cents, pdf_url, external_id, reminders, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ClientID, b.Number, b.InvoiceNumber, b.Installment, b.AmountCents, b.DueDate, string(b.Status),
		b.PaidAt, b.PaidCents, b.PDFURL, b.ExternalID, int64(b.Reminders), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: insert boleto: %w", err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

// GetBoleto returns the boleto with the given ID, or nil if not found.
func (s *SQLiteStore) GetBoleto(ctx context.Context, id int64) (*Boleto, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+boletoColumns+` FROM boletos WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get boleto: %w", err)
	}
	bs, err := scanBoletos(rows)
	if err != nil || len(bs) == 0 {
		return nil, err
	}
	return &bs[0], nil
}

// ListBoletos returns matching boletos, newest first and by installment.
func (s *SQLiteStore) ListBoletos(ctx context.Context, f BoletoFilter) ([]Boleto, error) {
	var (
		conds []string
		args  []any
	)
	if f.Number != "" {
		conds = append(conds, "number = ?")
		args = append(args, f.Number)
	}
	if f.NumberPrefix != "" {
		conds = append(conds, "substr(number, 1, ?) = ?")
		args = append(args, len(f.NumberPrefix), f.NumberPrefix)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.DueDate != "" {
		conds = append(conds, "due_date = ?")
		args = append(args, f.DueDate)
	}
	q := `SELECT ` + boletoColumns + ` FROM boletos`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC, installment ASC, id ASC"
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list boletos: %w", err)
	}
	return scanBoletos(rows)
}

// UpdateBoleto writes every mutable column of b.
func (s *SQLiteStore) UpdateBoleto(ctx context.Context, b *Boleto) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boletos SET client_id = ?, number = ?, invoice_number = ?, installment = ?, amount_cents = ?,
			due_date = ?, status = ?, paid_at = ?, paid_cents = ?, pdf_url = ?, external_id = ?, reminders = ?
		WHERE id = ?`,
		b.ClientID, b.Number, b.InvoiceNumber, b.Installment, b.AmountCents,
		b.DueDate, string(b.Status), b.PaidAt, b.PaidCents, b.PDFURL, b.ExternalID, int64(b.Reminders), b.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update boleto: %w", err)
	}
	return nil
}

func scanBoletos(rows *sql.Rows) ([]Boleto, error) {
	defer rows.Close()
	var out []Boleto
	for rows.Next() {
		var (
			b         Boleto
			status    string
			reminders int64
		)
		if err := rows.Scan(&b.ID, &b.ClientID, &b.Number, &b.InvoiceNumber, &b.Installment, &b.AmountCents,
			&b.DueDate, &status, &b.PaidAt, &b.PaidCents, &b.PDFURL, &b.ExternalID, &reminders, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan boleto: %w", err)
		}
		b.Status = BoletoStatus(status)
		b.Reminders = Reminder(reminders)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ---------- Service orders ----------

// CreateServiceOrder inserts o and assigns its ID.
func (s *SQLiteStore) CreateServiceOrder(ctx context.Context, o *ServiceOrder) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO service_orders (number, client_id, description, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		o.Number, o.ClientID, o.Description, o.Status, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: insert service order: %w", err)
	}
	o.ID, err = res.LastInsertId()
	return err
}

// LastServiceOrderNumber returns the greatest order number starting with
// prefix, or "" when there is none.
func (s *SQLiteStore) LastServiceOrderNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	err := s.db.QueryRowContext(ctx,
		`SELECT number FROM service_orders WHERE substr(number, 1, ?) = ? ORDER BY number DESC LIMIT 1`,
		len(prefix), prefix).Scan(&number)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: last service order: %w", err)
	}
	return number, nil
}

// ---------- Conversations ----------

// SaveConversation upserts a conversation keyed by phone.
func (s *SQLiteStore) SaveConversation(ctx context.Context, c *Conversation) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (phone, step, status, warning_sent, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET step = excluded.step, status = excluded.status,
			warning_sent = excluded.warning_sent, updated_at = excluded.updated_at`,
		c.Phone, c.Step, string(c.Status), c.WarningSent, c.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: save conversation: %w", err)
	}
	return nil
}

// ListConversations returns conversations with the given status, ordered by phone.
func (s *SQLiteStore) ListConversations(ctx context.Context, status ConversationStatus) ([]Conversation, error) {
	q := `SELECT phone, step, status, warning_sent, updated_at FROM conversations`
	var args []any
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, string(status))
	}
	q += " ORDER BY phone"
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list conversations: %w", err)
	}
	defer rows.Close()
	var out []Conversation
	for rows.Next() {
		var (
			c  Conversation
			st string
		)
		if err := rows.Scan(&c.Phone, &c.Step, &st, &c.WarningSent, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan conversation: %w", err)
		}
		c.Status = ConversationStatus(st)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---------- Gateway log ----------

// AppendGatewayLog inserts e and assigns its ID.
func (s *SQLiteStore) AppendGatewayLog(ctx context.Context, e *GatewayLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO gateway_logs (kind, gateway, endpoint, method, payload, response, status_code,
			boleto_id, charge_id, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Kind), e.Gateway, e.Endpoint, e.Method, e.Payload, e.Response, e.StatusCode,
		e.BoletoID, e.ChargeID, e.Error, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: insert gateway log: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

// ListGatewayLogs returns matching entries, newest first.
func (s *SQLiteStore) ListGatewayLogs(ctx context.Context, f GatewayLogFilter) ([]GatewayLog, error) {
	q := `SELECT id, kind, gateway, endpoint, method, payload, response, status_code, boleto_id, charge_id,
		error, created_at FROM gateway_logs WHERE 1=1`
	var args []any
	if f.Kind != "" {
		q += " AND kind = ?"
		args = append(args, string(f.Kind))
	}
	if f.BoletoID != 0 {
		q += " AND boleto_id = ?"
		args = append(args, f.BoletoID)
	}
	if f.ChargeID != "" {
		q += " AND charge_id = ?"
		args = append(args, f.ChargeID)
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, f.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list gateway logs: %w", err)
	}
	defer rows.Close()
	var out []GatewayLog
	for rows.Next() {
		var (
			e    GatewayLog
			kind string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Gateway, &e.Endpoint, &e.Method, &e.Payload, &e.Response,
			&e.StatusCode, &e.BoletoID, &e.ChargeID, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan gateway log: %w", err)
		}
		e.Kind = LogKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeGatewayLogs deletes entries created before the cutoff. A zero cutoff
// deletes everything.
func (s *SQLiteStore) PurgeGatewayLogs(ctx context.Context, before time.Time) (int, error) {
	var (
		res sql.Result
		err error
	)
	if before.IsZero() {
		res, err = s.db.ExecContext(ctx, `DELETE FROM gateway_logs`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM gateway_logs WHERE created_at < ?`, before.UTC())
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge gateway logs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
