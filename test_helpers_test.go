package sqlitekv

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestStore opens a store in a temp directory, closed at test end.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fakeClock is a pinnable time source for deterministic expiry tests.
// Each test gets its own instance, so pinned times never interfere
// across tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{t: at}
}

// Now is the Clock implementation.
func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// Advance moves the pinned time forward.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}
