package reservations

import (
	"context"
	"sync"
	"time"

	"stallbook/internal/shared/apperr"
	"stallbook/internal/stallkey"
)

// Store persists slots per key plus the session -> key index that enforces
// one hold per session.
type Store interface {
	// Get returns nil, nil when the key has no slot.
	Get(ctx context.Context, key stallkey.Key) (*ReservationSlot, error)
	// Put writes slot, failing with Conflict if a different session holds
	// a live slot on the same key at now.
	Put(ctx context.Context, slot *ReservationSlot, now time.Time) error
	Delete(ctx context.Context, key stallkey.Key) error
	Keys(ctx context.Context) ([]stallkey.Key, error)

	SessionKey(ctx context.Context, sessionID string) (stallkey.Key, bool, error)
	SetSessionKey(ctx context.Context, sessionID string, key stallkey.Key, ttl time.Duration) error
	// ClearSessionKey removes the index entry only if it still points at key.
	ClearSessionKey(ctx context.Context, sessionID string, key stallkey.Key) error
}

type sessionEntry struct {
	key       stallkey.Key
	expiresAt time.Time
}

// MemoryStore keeps state in process. Session entries carry their own
// expiry so a stale index never outlives the hold it points at.
type MemoryStore struct {
	mu       sync.RWMutex
	slots    map[stallkey.Key]*ReservationSlot
	sessions map[string]sessionEntry
	now      func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		slots:    make(map[stallkey.Key]*ReservationSlot),
		sessions: make(map[string]sessionEntry),
		now:      now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key stallkey.Key) (*ReservationSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[key].clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, slot *ReservationSlot, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.slots[slot.Key]; ok && !cur.HeldBy(slot.HolderSessionID) && !cur.IsExpired(now) {
		return apperr.Conflict("reservations.put", "stall %s is held by another session", slot.Key)
	}
	m.slots[slot.Key] = slot.clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key stallkey.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]stallkey.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]stallkey.Key, 0, len(m.slots))
	for k := range m.slots {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *MemoryStore) SessionKey(_ context.Context, sessionID string) (stallkey.Key, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok || !m.now().Before(e.expiresAt) {
		return stallkey.Key{}, false, nil
	}
	return e.key, true, nil
}

func (m *MemoryStore) SetSessionKey(_ context.Context, sessionID string, key stallkey.Key, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = sessionEntry{key: key, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) ClearSessionKey(_ context.Context, sessionID string, key stallkey.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[sessionID]; ok && e.key == key {
		delete(m.sessions, sessionID)
	}
	return nil
}
