package xref

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/contractor-cli/internal/contractor"
)

// fakeLookup answers from maps keyed by the search key value.
type fakeLookup struct {
	name    string
	hits    map[string]Contact
	errs    map[string]error
	onFind  func(q Query)
	mu      sync.Mutex
	queries []Query
}

func (f *fakeLookup) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeLookup) Find(_ context.Context, q Query) (Contact, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.onFind != nil {
		f.onFind(q)
	}
	if err := f.errs[q.Key.Value]; err != nil {
		return Contact{}, err
	}
	return f.hits[q.Key.Value], nil
}

func (f *fakeLookup) keysFor(value string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.queries {
		if q.Key.Value == value {
			n++
		}
	}
	return n
}

func newTestStore(t *testing.T) *contractor.SQLiteStore {
	t.Helper()
	s, err := contractor.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s contractor.Store, recs ...*contractor.Contractor) {
	t.Helper()
	for _, c := range recs {
		require.NoError(t, s.Create(context.Background(), c))
	}
}

func verified(license, name string) *contractor.Contractor {
	return &contractor.Contractor{
		BusinessName:    name,
		LicenseNumber:   license,
		City:            "Mesa",
		State:           "AZ",
		LicenseVerified: true,
		IsVerified:      true,
		Sources:         []string{"license_feed"},
	}
}

// noSleep records requested delays without waiting.
type noSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (n *noSleep) sleep(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	n.delays = append(n.delays, d)
	n.mu.Unlock()
	return ctx.Err()
}

func (n *noSleep) count(d time.Duration) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, got := range n.delays {
		if got == d {
			c++
		}
	}
	return c
}

func newTestReferencer(store contractor.Store, l Lookup, opts Options) (*Referencer, *noSleep) {
	r := New(store, l, opts)
	ns := &noSleep{}
	r.sleep = ns.sleep
	return r, ns
}
