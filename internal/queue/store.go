package queue

import (
	"context"
	"sync"
	"time"

	"stallbook/internal/stallkey"
)

// Store persists one StallQueue per key and a ticket index so a ticket id
// alone can be resolved, including after it has left the line.
type Store interface {
	// LoadQueue returns an empty queue when the key has no state.
	LoadQueue(ctx context.Context, key stallkey.Key) (*StallQueue, error)
	// SaveQueue drops the key entirely once the queue is empty.
	SaveQueue(ctx context.Context, q *StallQueue) error
	// GetTicket returns nil, nil for unknown tickets.
	GetTicket(ctx context.Context, ticketID string) (*QueueEntry, error)
	// PutTicket stores a ticket snapshot. Terminal tickets are kept for the
	// store's retention period.
	PutTicket(ctx context.Context, e *QueueEntry) error
	ActiveKeys(ctx context.Context) ([]stallkey.Key, error)
}

type ticketRecord struct {
	entry     *QueueEntry
	expiresAt time.Time
}

type MemoryStore struct {
	mu        sync.RWMutex
	queues    map[stallkey.Key]*StallQueue
	tickets   map[string]ticketRecord
	retention time.Duration
	now       func() time.Time
}

func NewMemoryStore(now func() time.Time, retention time.Duration) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		queues:    make(map[stallkey.Key]*StallQueue),
		tickets:   make(map[string]ticketRecord),
		retention: retention,
		now:       now,
	}
}

func (m *MemoryStore) LoadQueue(_ context.Context, key stallkey.Key) (*StallQueue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if q, ok := m.queues[key]; ok {
		return q.clone(), nil
	}
	return &StallQueue{Key: key}, nil
}

func (m *MemoryStore) SaveQueue(_ context.Context, q *StallQueue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.IsEmpty() {
		delete(m.queues, q.Key)
		return nil
	}
	m.queues[q.Key] = q.clone()
	return nil
}

func (m *MemoryStore) GetTicket(_ context.Context, ticketID string) (*QueueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tickets[ticketID]
	if !ok {
		return nil, nil
	}
	if !rec.expiresAt.IsZero() && !m.now().Before(rec.expiresAt) {
		return nil, nil
	}
	return rec.entry.clone(), nil
}

func (m *MemoryStore) PutTicket(_ context.Context, e *QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := ticketRecord{entry: e.clone()}
	if e.State.IsTerminal() && m.retention > 0 {
		rec.expiresAt = m.now().Add(m.retention)
	}
	m.tickets[e.ID] = rec
	m.purgeLocked()
	return nil
}

// purgeLocked drops retained tickets whose time is up.
func (m *MemoryStore) purgeLocked() {
	now := m.now()
	for id, rec := range m.tickets {
		if !rec.expiresAt.IsZero() && !now.Before(rec.expiresAt) {
			delete(m.tickets, id)
		}
	}
}

func (m *MemoryStore) ActiveKeys(_ context.Context) ([]stallkey.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]stallkey.Key, 0, len(m.queues))
	for k := range m.queues {
		keys = append(keys, k)
	}
	return keys, nil
}
