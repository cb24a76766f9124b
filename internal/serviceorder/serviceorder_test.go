package serviceorder

import (
	"context"
	"testing"
	"time"

	"github.com/dusk-indust/gestor/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock returns a clock frozen at the given UTC instant.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedOrders(t *testing.T, s store.Store, numbers ...string) {
	t.Helper()
	for _, n := range numbers {
		require.NoError(t, s.CreateServiceOrder(context.Background(), &store.ServiceOrder{Number: n, ClientID: 1}))
	}
}

func TestNext_FirstOfMonth(t *testing.T) {
	s := store.NewMemStore()
	g := NewGenerator(s, -3, WithClock(fixedClock(time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC))))

	n, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20240115001", n)
}

func TestNext_SameDay(t *testing.T) {
	s := store.NewMemStore()
	seedOrders(t, s, "20240115002", "20240115001")
	g := NewGenerator(s, -3, WithClock(fixedClock(time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC))))

	n, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20240115003", n)
}

func TestNext_NewDaySameMonthContinues(t *testing.T) {
	s := store.NewMemStore()
	seedOrders(t, s, "20240115002")
	g := NewGenerator(s, -3, WithClock(fixedClock(time.Date(2024, 1, 16, 15, 0, 0, 0, time.UTC))))

	n, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20240116003", n)
}

func TestNext_NewMonthRestarts(t *testing.T) {
	s := store.NewMemStore()
	seedOrders(t, s, "20240131045")
	g := NewGenerator(s, -3, WithClock(fixedClock(time.Date(2024, 2, 1, 15, 0, 0, 0, time.UTC))))

	n, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20240201001", n)
}

func TestNext_UsesLocalOffset(t *testing.T) {
	s := store.NewMemStore()
	// 01:30 UTC on Feb 1 is still Jan 31 at UTC-3.
	g := NewGenerator(s, -3, WithClock(fixedClock(time.Date(2024, 2, 1, 1, 30, 0, 0, time.UTC))))

	n, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20240131001", n)
}

func TestNextSequence(t *testing.T) {
	tests := []struct {
		last string
		want int
	}{
		{"", 1},
		{"12", 13},
		{"20240115abc", 1},
		{"20240115009", 10},
		{"20240115999", 1000},
		{"2024011512x", 13},
		{"20240115x12", 1},
		{"20240115 07", 8},
	}
	for _, tt := range tests {
		t.Run(tt.last, func(t *testing.T) {
			assert.Equal(t, tt.want, nextSequence(tt.last))
		})
	}
}

func TestCreate(t *testing.T) {
	s := store.NewMemStore()
	g := NewGenerator(s, -3, WithClock(fixedClock(time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC))))
	ctx := context.Background()

	o := &store.ServiceOrder{ClientID: 9, Description: "Manutenção"}
	require.NoError(t, g.Create(ctx, o))
	assert.Equal(t, "20240115001", o.Number)
	assert.Equal(t, "open", o.Status)
	assert.NotZero(t, o.ID)

	next, err := g.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20240115002", next)

	require.ErrorIs(t, g.Create(ctx, &store.ServiceOrder{}), ErrClientRequired)
}
