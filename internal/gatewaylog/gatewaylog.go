// Package gatewaylog records payment-gateway traffic for later inspection.
package gatewaylog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dusk-indust/gestor/internal/store"
)

// Recorder writes and reads gateway log entries.
type Recorder struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Recorder backed by s.
func New(s store.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, logger: logger, now: time.Now}
}

// Record appends e. A failure to persist is logged and swallowed so that
// logging never breaks the gateway call being logged.
func (r *Recorder) Record(ctx context.Context, e store.GatewayLog) {
	if err := r.store.AppendGatewayLog(ctx, &e); err != nil {
		r.logger.Error("gatewaylog.record_failed",
			"gateway", e.Gateway, "kind", e.Kind, "endpoint", e.Endpoint, "error", err)
	}
}

// JSON renders v for the payload or response column. nil renders as "".
func JSON(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case json.RawMessage:
		return string(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// List returns entries matching f, newest first.
func (r *Recorder) List(ctx context.Context, f store.GatewayLogFilter) ([]store.GatewayLog, error) {
	logs, err := r.store.ListGatewayLogs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("gatewaylog: list: %w", err)
	}
	return logs, nil
}

// Clear deletes every entry.
func (r *Recorder) Clear(ctx context.Context) (int, error) {
	n, err := r.store.PurgeGatewayLogs(ctx, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("gatewaylog: clear: %w", err)
	}
	return n, nil
}

// PurgeOlderThan deletes entries older than the given number of days.
func (r *Recorder) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		return r.Clear(ctx)
	}
	n, err := r.store.PurgeGatewayLogs(ctx, r.now().AddDate(0, 0, -days))
	if err != nil {
		return 0, fmt.Errorf("gatewaylog: purge: %w", err)
	}
	return n, nil
}

const separator = "--------------------------------------------------------------------------------"

// WriteText renders entries as a plain-text report, one block per entry.
func WriteText(w io.Writer, entries []store.GatewayLog) error {
	var b strings.Builder
	fmt.Fprintf(&b, "GATEWAY LOG (%d entries)\n%s\n", len(entries), separator)
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s %s %s\n",
			e.CreatedAt.UTC().Format(time.RFC3339),
			strings.ToUpper(string(e.Kind)), e.Method, e.Endpoint)
		if e.Gateway != "" {
			fmt.Fprintf(&b, "  Gateway:  %s\n", e.Gateway)
		}
		if e.StatusCode != 0 {
			fmt.Fprintf(&b, "  Status:   %d\n", e.StatusCode)
		}
		if e.BoletoID != 0 {
			fmt.Fprintf(&b, "  Boleto:   %d\n", e.BoletoID)
		}
		if e.ChargeID != "" {
			fmt.Fprintf(&b, "  Charge:   %s\n", e.ChargeID)
		}
		if e.Payload != "" {
			fmt.Fprintf(&b, "  Payload:  %s\n", e.Payload)
		}
		if e.Response != "" {
			fmt.Fprintf(&b, "  Response: %s\n", e.Response)
		}
		if e.Error != "" {
			fmt.Fprintf(&b, "  Error:    %s\n", e.Error)
		}
		b.WriteString(separator + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
