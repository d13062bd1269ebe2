package reconcile

import (
	"slices"
	"sync"
)

// keyLock serializes work per identity key. Keys are locked in sorted order
// so callers holding several keys cannot deadlock.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*keyEntry)}
}

// lock acquires every non-empty key and returns the release func.
func (l *keyLock) lock(keys ...string) func() {
	keys = slices.DeleteFunc(slices.Clone(keys), func(k string) bool { return k == "" })
	slices.Sort(keys)
	keys = slices.Compact(keys)

	entries := make([]*keyEntry, len(keys))
	for i, k := range keys {
		l.mu.Lock()
		e, ok := l.locks[k]
		if !ok {
			e = &keyEntry{}
			l.locks[k] = e
		}
		e.refs++
		l.mu.Unlock()

		e.mu.Lock()
		entries[i] = e
	}

	return func() {
		for i := len(keys) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
			l.mu.Lock()
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(l.locks, keys[i])
			}
			l.mu.Unlock()
		}
	}
}

func (l *keyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
