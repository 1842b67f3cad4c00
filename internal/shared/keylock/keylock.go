// Package keylock provides a mutex per key, created on demand.
package keylock

import "sync"

// Map hands out one mutex per key. Entries are reference counted and
// dropped once nobody holds or waits on them.
type Map[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New[K comparable]() *Map[K] {
	return &Map[K]{locks: make(map[K]*entry)}
}

// Lock blocks until k is exclusively held and returns the matching unlock.
// Calling unlock more than once is harmless.
func (m *Map[K]) Lock(k K) (unlock func()) {
	m.mu.Lock()
	e, ok := m.locks[k]
	if !ok {
		e = &entry{}
		m.locks[k] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			m.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(m.locks, k)
			}
			m.mu.Unlock()
		})
	}
}

// Len reports how many keys currently have holders or waiters.
func (m *Map[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
