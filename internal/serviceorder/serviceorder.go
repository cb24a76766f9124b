// Package serviceorder numbers and records ordens de serviço.
package serviceorder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dusk-indust/gestor/internal/store"
)

// ErrClientRequired is returned when an order has no client.
var ErrClientRequired = errors.New("serviceorder: client id is required")

// Generator hands out sequential order numbers of the form YYYYMMDDNNN.
// The sequence continues across days within a month.
type Generator struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator returns a Generator whose calendar day is computed at the given
// UTC offset in hours (Brasília is -3).
func NewGenerator(s store.Store, utcOffsetHours int, opts ...Option) *Generator {
	g := &Generator{
		store: s,
		loc:   time.FixedZone(fmt.Sprintf("UTC%+d", utcOffsetHours), utcOffsetHours*3600),
		now:   time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Next returns the next order number. It does not reserve it; two concurrent
// callers may receive the same number until one of them is stored.
func (g *Generator) Next(ctx context.Context) (string, error) {
	today := g.now().In(g.loc)
	last, err := g.store.LastServiceOrderNumber(ctx, today.Format("200601"))
	if err != nil {
		return "", fmt.Errorf("serviceorder: last number: %w", err)
	}
	return today.Format("20060102") + fmt.Sprintf("%03d", nextSequence(last)), nil
}

// nextSequence reads the number leading the last three characters of last
// and adds one. A suffix that does not start with a digit counts as 0, so
// "12x" continues at 13 and "x12" restarts at 1.
func nextSequence(last string) int {
	suffix := strings.TrimLeft(last[max(0, len(last)-3):], " \t\n")
	suffix = strings.TrimPrefix(suffix, "+")
	end := 0
	for end < len(suffix) && suffix[end] >= '0' && suffix[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(suffix[:end])
	if err != nil {
		return 1
	}
	return n + 1
}

// Create stores o, generating its number when empty and defaulting the
// status to "open".
func (g *Generator) Create(ctx context.Context, o *store.ServiceOrder) error {
	if o.ClientID == 0 {
		return ErrClientRequired
	}
	if o.Number == "" {
		n, err := g.Next(ctx)
		if err != nil {
			return err
		}
		o.Number = n
	}
	if o.Status == "" {
		o.Status = "open"
	}
	if err := g.store.CreateServiceOrder(ctx, o); err != nil {
		return fmt.Errorf("serviceorder: create: %w", err)
	}
	return nil
}
