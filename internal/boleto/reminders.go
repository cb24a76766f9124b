package boleto

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dusk-indust/gestor/internal/store"
	"github.com/dusk-indust/gestor/internal/whatsapp"
	"golang.org/x/sync/errgroup"
)

// ErrNoSender is returned by SendReminders when no sender is configured.
var ErrNoSender = errors.New("boleto: no reminder sender configured")

// ReminderResults counts candidates per bucket and messages delivered.
type ReminderResults struct {
	DueInThreeDays int `json:"dueInThreeDays"`
	DueToday       int `json:"dueToday"`
	Overdue        int `json:"overdue"`
	Sent           int `json:"sent"`
	Errors         int `json:"errors"`
}

type bucket struct {
	flag    store.Reminder
	offset  int // days from today to the due date
	count   func(*ReminderResults) *int
	message func(client string, b store.Boleto) string
}

var buckets = []bucket{
	{
		flag:   store.ReminderThreeDays,
		offset: 3,
		count:  func(r *ReminderResults) *int { return &r.DueInThreeDays },
		message: func(client string, b store.Boleto) string {
			return "🔔 *Lembrete de Vencimento*\n\n" +
				"Olá, " + client + "!\n\n" +
				"Seu boleto *" + b.Number + "* vence em *3 dias*.\n\n" +
				"💰 Valor: R$ " + formatBRL(b.AmountCents) + "\n" +
				"📅 Vencimento: " + formatDate(b.DueDate) + "\n\n" +
				"Por favor, realize o pagamento até a data de vencimento para evitar multas e juros.\n\n" +
				"_Mensagem automática - Não responder_"
		},
	},
	{
		flag:   store.ReminderDueToday,
		offset: 0,
		count:  func(r *ReminderResults) *int { return &r.DueToday },
		message: func(client string, b store.Boleto) string {
			return "⚠️ *Vencimento Hoje*\n\n" +
				"Olá, " + client + "!\n\n" +
				"Seu boleto *" + b.Number + "* vence *HOJE*.\n\n" +
				"💰 Valor: R$ " + formatBRL(b.AmountCents) + "\n" +
				"📅 Vencimento: " + formatDate(b.DueDate) + "\n\n" +
				"Por favor, realize o pagamento hoje para evitar multas e juros.\n\n" +
				"_Mensagem automática - Não responder_"
		},
	},
	{
		flag:   store.ReminderOverdue,
		offset: -1,
		count:  func(r *ReminderResults) *int { return &r.Overdue },
		message: func(client string, b store.Boleto) string {
			return "🔴 *Boleto Vencido*\n\n" +
				"Olá, " + client + "!\n\n" +
				"Seu boleto *" + b.Number + "* está *VENCIDO*.\n\n" +
				"💰 Valor: R$ " + formatBRL(b.AmountCents) + "\n" +
				"📅 Vencido em: " + formatDate(b.DueDate) + "\n\n" +
				"⚠️ *Atenção:* Incidirão multa e juros sobre o valor.\n\n" +
				"Por favor, entre em contato conosco para regularizar o pagamento.\n\n" +
				"_Mensagem automática - Não responder_"
		},
	},
}

type reminder struct {
	boleto store.Boleto
	flag   store.Reminder
	phone  string
	text   string
}

// SendReminders notifies clients of pending boletos due in three days, due
// today or one day overdue. Each reminder is sent at most once per boleto;
// a failed send is counted and retried on the next run.
func (s *Service) SendReminders(ctx context.Context) (ReminderResults, error) {
	if s.sender == nil {
		return ReminderResults{}, ErrNoSender
	}
	var res ReminderResults
	today := s.today()

	var todo []reminder
	for _, bk := range buckets {
		due := today.AddDate(0, 0, bk.offset).Format(dateLayout)
		cands, err := s.candidates(ctx, due, bk.flag)
		if err != nil {
			return ReminderResults{}, err
		}
		*bk.count(&res) = len(cands)
		for _, c := range cands {
			todo = append(todo, reminder{
				boleto: c.boleto,
				flag:   bk.flag,
				phone:  whatsapp.NormalizePhone(c.client.Phone),
				text:   bk.message(c.client.Name, c.boleto),
			})
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, r := range todo {
		g.Go(func() error {
			err := s.deliver(gctx, r)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors++
				s.logger.Error("boleto.reminder_failed", "boleto", r.boleto.Number, "error", err)
				return nil
			}
			res.Sent++
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("boleto.reminders_sent",
		"due_in_three_days", res.DueInThreeDays, "due_today", res.DueToday,
		"overdue", res.Overdue, "sent", res.Sent, "errors", res.Errors)
	return res, nil
}

type candidate struct {
	boleto store.Boleto
	client store.Client
}

// candidates returns pending boletos due on the given date whose client has
// a phone and that have not received flag yet.
func (s *Service) candidates(ctx context.Context, due string, flag store.Reminder) ([]candidate, error) {
	list, err := s.store.ListBoletos(ctx, store.BoletoFilter{Status: store.BoletoPending, DueDate: due})
	if err != nil {
		return nil, fmt.Errorf("boleto: list due %s: %w", due, err)
	}
	var out []candidate
	for _, b := range list {
		if b.Reminders.Has(flag) || b.ClientID == 0 {
			continue
		}
		c, err := s.store.GetClient(ctx, b.ClientID)
		if err != nil {
			return nil, fmt.Errorf("boleto: client %d: %w", b.ClientID, err)
		}
		if c == nil || strings.TrimSpace(c.Phone) == "" {
			continue
		}
		out = append(out, candidate{boleto: b, client: *c})
	}
	return out, nil
}

func (s *Service) deliver(ctx context.Context, r reminder) error {
	if _, err := s.sender.Send(ctx, r.phone, r.text); err != nil {
		return err
	}
	b := r.boleto
	b.Reminders |= r.flag
	return s.store.UpdateBoleto(ctx, &b)
}

// formatBRL renders cents as "1234,56".
func formatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d,%02d", sign, cents/100, cents%100)
}

// formatDate turns YYYY-MM-DD into DD/MM/YYYY, leaving other input unchanged.
func formatDate(d string) string {
	t, err := time.Parse(dateLayout, d)
	if err != nil {
		return d
	}
	return t.Format("02/01/2006")
}
