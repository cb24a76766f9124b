//go:build cgo

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// newKuzuTestStore creates a fresh in-memory KuzuStore with an initialized schema.
// It registers a cleanup function to close the store when the test finishes.
func newKuzuTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewKuzuStore()
	require.NoError(t, err, "NewKuzuStore should not fail")
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitSchema(context.Background()), "InitSchema should not fail")
	return s
}

func TestKuzuStore_Contract(t *testing.T) {
	runStoreContract(t, newKuzuTestStore)
}
