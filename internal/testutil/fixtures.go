package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/store"
)

// Epoch is the wall time test clocks start at: 21:00 UTC on 2024-03-10.
var Epoch = time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC)

// OpenStore opens a file-backed store in a temp directory and closes it
// when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// DBPath returns a fresh database path in a temp directory.
func DBPath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "mnemo.db")
}

// FixedClock returns a clock stopped at Epoch.
func FixedClock() *clock.Fixed {
	return clock.NewFixed(Epoch)
}
