package whatsapp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dusk-indust/gestor/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records sends and fails for phones listed in failFor.
type fakeSender struct {
	mu      sync.Mutex
	sent    map[string]string
	failFor map[string]bool
}

func newFakeSender(failFor ...string) *fakeSender {
	f := &fakeSender{sent: map[string]string{}, failFor: map[string]bool{}}
	for _, p := range failFor {
		f.failFor[p] = true
	}
	return f
}

func (f *fakeSender) Send(_ context.Context, to, message string) (*SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[to] {
		return nil, errors.New("boom")
	}
	f.sent[to] = message
	return &SendResult{MessageID: "wamid." + to}, nil
}

func TestTimeoutChecker_Check(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	seed := []store.Conversation{
		{Phone: "5511000000001", Status: store.ConversationActive, UpdatedAt: now.Add(-2 * time.Minute)},
		{Phone: "5511000000002", Status: store.ConversationActive, UpdatedAt: now.Add(-6 * time.Minute)},
		{Phone: "5511000000003", Status: store.ConversationActive, UpdatedAt: now.Add(-7 * time.Minute), WarningSent: true},
		{Phone: "5511000000004", Status: store.ConversationActive, UpdatedAt: now.Add(-11 * time.Minute), WarningSent: true},
		{Phone: "5511000000005", Status: store.ConversationActive, UpdatedAt: now.Add(-30 * time.Minute)},
		{Phone: "5511000000006", Status: store.ConversationCompleted, UpdatedAt: now.Add(-time.Hour)},
	}
	for i := range seed {
		require.NoError(t, s.SaveConversation(ctx, &seed[i]))
	}

	sender := newFakeSender("5511000000005")
	checker := NewTimeoutChecker(s, sender, slog.New(slog.NewTextHandler(io.Discard, nil)), 2)
	checker.now = func() time.Time { return now }

	res, err := checker.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, TimeoutResults{WarningsSent: 1, ConversationsClosed: 1, Errors: 1}, res)

	assert.Equal(t, warningMessage, sender.sent["5511000000002"])
	assert.Equal(t, closingMessage, sender.sent["5511000000004"])
	assert.Len(t, sender.sent, 2)

	active, err := s.ListConversations(ctx, store.ConversationActive)
	require.NoError(t, err)
	byPhone := map[string]store.Conversation{}
	for _, c := range active {
		byPhone[c.Phone] = c
	}
	assert.NotContains(t, byPhone, "5511000000004", "closed conversation is no longer active")
	assert.True(t, byPhone["5511000000002"].WarningSent)
	assert.Equal(t, now.Add(-6*time.Minute), byPhone["5511000000002"].UpdatedAt, "warning keeps the idle clock")
	assert.Contains(t, byPhone, "5511000000005", "failed close is retried next run")
}

func TestTimeoutChecker_SecondRunIsQuiet(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveConversation(ctx, &store.Conversation{
		Phone: "5511000000002", Status: store.ConversationActive, UpdatedAt: now.Add(-6 * time.Minute),
	}))

	checker := NewTimeoutChecker(s, newFakeSender(), nil, 4)
	checker.now = func() time.Time { return now }

	first, err := checker.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.WarningsSent)

	second, err := checker.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, TimeoutResults{}, second)
}
