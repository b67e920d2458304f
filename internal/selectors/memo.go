package selectors

import "sync"

// memo caches the last value computed for a comparable key. Keys are built
// from the pointers of immutable state parts, so a changed key means a
// changed input.
type memo[K comparable, V any] struct {
	mu     sync.Mutex
	key    K
	val    V
	err    error
	ok     bool
	misses int
}

func (m *memo[K, V]) get(key K, compute func() (V, error)) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ok && m.key == key {
		return m.val, m.err
	}
	m.val, m.err = compute()
	m.key = key
	m.ok = true
	m.misses++
	return m.val, m.err
}

func (m *memo[K, V]) recomputes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.misses
}
