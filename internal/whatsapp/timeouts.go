package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dusk-indust/gestor/internal/store"
	"golang.org/x/sync/errgroup"
)

// Inactivity thresholds for open conversations.
const (
	WarnAfter  = 5 * time.Minute
	CloseAfter = 10 * time.Minute
)

const (
	warningMessage = "⚠️ *Aviso de Inatividade*\n\n" +
		"Notamos que você está há alguns minutos sem responder.\n\n" +
		"Seu atendimento será *finalizado automaticamente em 5 minutos* caso não recebamos uma resposta.\n\n" +
		"Para continuar, basta enviar qualquer mensagem. 😊"
	closingMessage = "⏱️ *Atendimento Finalizado*\n\n" +
		"Seu atendimento foi encerrado devido à inatividade.\n\n" +
		"Para iniciar um novo atendimento, envie qualquer mensagem.\n\n" +
		"Obrigado! 👋"
)

// TimeoutResults counts what a check did.
type TimeoutResults struct {
	WarningsSent        int `json:"warnings_sent"`
	ConversationsClosed int `json:"conversations_closed"`
	Errors              int `json:"errors"`
}

// TimeoutChecker warns and then closes idle conversations.
type TimeoutChecker struct {
	store       store.Store
	sender      Sender
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewTimeoutChecker returns a checker that sends at most concurrency
// messages at once.
func NewTimeoutChecker(s store.Store, sender Sender, logger *slog.Logger, concurrency int) *TimeoutChecker {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &TimeoutChecker{store: s, sender: sender, logger: logger, concurrency: concurrency, now: time.Now}
}

// Check processes every active conversation once. A conversation idle for
// CloseAfter gets the closing message and is completed; one idle for
// WarnAfter that was not yet warned gets the warning. A failed send leaves
// the conversation untouched so the next run retries it.
func (t *TimeoutChecker) Check(ctx context.Context) (TimeoutResults, error) {
	convs, err := t.store.ListConversations(ctx, store.ConversationActive)
	if err != nil {
		return TimeoutResults{}, fmt.Errorf("whatsapp: list conversations: %w", err)
	}

	var (
		mu  sync.Mutex
		res TimeoutResults
	)
	count := func(f func(*TimeoutResults)) {
		mu.Lock()
		f(&res)
		mu.Unlock()
	}

	now := t.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for _, c := range convs {
		idle := now.Sub(c.UpdatedAt)
		switch {
		case idle >= CloseAfter:
			g.Go(func() error {
				if err := t.notify(gctx, c, closingMessage, func(c *store.Conversation) {
					c.Status = store.ConversationCompleted
				}); err != nil {
					t.logger.Error("whatsapp.close_failed", "phone", c.Phone, "error", err)
					count(func(r *TimeoutResults) { r.Errors++ })
					return nil
				}
				count(func(r *TimeoutResults) { r.ConversationsClosed++ })
				return nil
			})
		case idle >= WarnAfter && !c.WarningSent:
			g.Go(func() error {
				if err := t.notify(gctx, c, warningMessage, func(c *store.Conversation) {
					c.WarningSent = true
				}); err != nil {
					t.logger.Error("whatsapp.warning_failed", "phone", c.Phone, "error", err)
					count(func(r *TimeoutResults) { r.Errors++ })
					return nil
				}
				count(func(r *TimeoutResults) { r.WarningsSent++ })
				return nil
			})
		}
	}
	_ = g.Wait()

	t.logger.Info("whatsapp.timeouts_checked",
		"warnings_sent", res.WarningsSent, "closed", res.ConversationsClosed, "errors", res.Errors)
	return res, nil
}

// notify sends msg and, on success, applies update and saves the
// conversation. UpdatedAt is preserved so a warning does not reset the idle
// clock.
func (t *TimeoutChecker) notify(ctx context.Context, c store.Conversation, msg string, update func(*store.Conversation)) error {
	if _, err := t.sender.Send(ctx, c.Phone, msg); err != nil {
		return err
	}
	update(&c)
	return t.store.SaveConversation(ctx, &c)
}
