package reservations

import (
	"context"
	"fmt"
	"time"

	"stallbook/internal/notifications"
	"stallbook/internal/shared/apperr"
	"stallbook/internal/shared/keylock"
	"stallbook/internal/stallkey"
	"stallbook/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// Manager grants and revokes short exclusive holds on uncontested stalls.
type Manager interface {
	// Reserve grants or refreshes the session's hold. ttl <= 0 uses the
	// configured default. Any other hold of the same session is released.
	Reserve(ctx context.Context, key stallkey.Key, sessionID string, ttl time.Duration) (*ReservationSlot, error)
	// Release is a no-op without a live slot and fails with NotOwner when
	// another session holds it.
	Release(ctx context.Context, key stallkey.Key, sessionID string) error
	IsHeldByOther(ctx context.Context, key stallkey.Key, sessionID string) (bool, error)
	// Get returns the live slot or NotFound.
	Get(ctx context.Context, key stallkey.Key) (*ReservationSlot, error)
	HeldBySession(ctx context.Context, sessionID string) (*ReservationSlot, error)

	// Finalize marks the session's live hold as being booked.
	Finalize(ctx context.Context, key stallkey.Key, sessionID string) (*ReservationSlot, error)
	// Complete drops a finalizing hold once its booking is stored.
	Complete(ctx context.Context, key stallkey.Key, sessionID string) error
	// Abort undoes Finalize. With release the hold is dropped, otherwise it
	// goes back to a plain hold the session can retry from.
	Abort(ctx context.Context, key stallkey.Key, sessionID string, release bool) error
	// Revoke drops whatever hold exists on key, used once the stall is booked
	// through another route.
	Revoke(ctx context.Context, key stallkey.Key) error

	SweepExpired(ctx context.Context) ([]ReservationSlot, error)
}

// LineChecker reports whether a stall already has a live waiting line.
// It is called with the key's lock held and must not take it again.
type LineChecker interface {
	LineActiveLocked(ctx context.Context, key stallkey.Key) (bool, error)
}

type ManagerConfig struct {
	DefaultTTL    time.Duration
	FinalizeGrace time.Duration
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		DefaultTTL:    5 * time.Minute,
		FinalizeGrace: 30 * time.Second,
	}
}

type manager struct {
	store    Store
	keys     *stallkey.Locker
	lines    LineChecker
	sessions *keylock.Map[string]
	clock    clockwork.Clock
	notifier notifications.Notifier
	config   ManagerConfig
	log      *logger.Logger
}

// NewManager builds a manager. lines must share keys with the queue so the
// contention check and the hold are one atomic step; nil disables the check.
func NewManager(store Store, keys *stallkey.Locker, lines LineChecker, clock clockwork.Clock, notifier notifications.Notifier, config ManagerConfig) Manager {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultManagerConfig().DefaultTTL
	}
	return &manager{
		store:    store,
		keys:     keys,
		lines:    lines,
		sessions: keylock.New[string](),
		clock:    clock,
		notifier: notifier,
		config:   config,
		log:      logger.GetDefault(),
	}
}

// liveSlot loads the slot for key and hides it if it has lapsed.
func (m *manager) liveSlot(ctx context.Context, key stallkey.Key, now time.Time) (*ReservationSlot, error) {
	slot, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if slot == nil || slot.IsExpired(now) {
		return nil, nil
	}
	return slot, nil
}

func (m *manager) Reserve(ctx context.Context, key stallkey.Key, sessionID string, ttl time.Duration) (*ReservationSlot, error) {
	if sessionID == "" {
		return nil, apperr.Validation("reservations.reserve", "sessionId is required")
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}

	unlockSession := m.sessions.Lock(sessionID)
	defer unlockSession()

	slot, err := m.reserveKey(ctx, key, sessionID, ttl)
	if err != nil {
		return nil, err
	}

	previous, had, err := m.store.SessionKey(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetSessionKey(ctx, sessionID, key, ttl); err != nil {
		return nil, err
	}
	if had && previous != key {
		// one hold per session: the new key is ours, now let the old one go
		if err := m.Release(ctx, previous, sessionID); err != nil && !apperr.IsKind(err, apperr.KindNotOwner) {
			m.log.WithStallKey(previous.String()).ErrorWithContext(ctx, "failed to release previous hold", err, map[string]interface{}{
				"session_id": sessionID,
			})
		}
	}

	m.log.LogReservation(ctx, "Granted", key.String(), sessionID, slot.HeldUntil)
	return slot, nil
}

func (m *manager) reserveKey(ctx context.Context, key stallkey.Key, sessionID string, ttl time.Duration) (*ReservationSlot, error) {
	unlock := m.keys.Lock(key)
	defer unlock()

	now := m.clock.Now()
	current, err := m.liveSlot(ctx, key, now)
	if err != nil {
		return nil, err
	}

	if current != nil {
		if !current.HeldBy(sessionID) {
			return nil, apperr.Conflict("reservations.reserve", "stall %s is already held", key)
		}
		if current.Finalizing {
			return nil, apperr.Conflict("reservations.reserve", "booking for stall %s is in progress", key)
		}
	} else if m.lines != nil {
		contested, err := m.lines.LineActiveLocked(ctx, key)
		if err != nil {
			return nil, err
		}
		if contested {
			return nil, apperr.Conflict("reservations.reserve", "stall %s has a waiting line; join the queue instead", key)
		}
	}

	slot := &ReservationSlot{
		Key:             key,
		HolderSessionID: sessionID,
		HeldUntil:       now.Add(ttl),
		CreatedAt:       now,
	}
	if current != nil {
		slot.CreatedAt = current.CreatedAt
	}
	if err := m.store.Put(ctx, slot, now); err != nil {
		return nil, err
	}
	return slot, nil
}

func (m *manager) Release(ctx context.Context, key stallkey.Key, sessionID string) error {
	unlock := m.keys.Lock(key)
	defer unlock()

	slot, err := m.liveSlot(ctx, key, m.clock.Now())
	if err != nil {
		return err
	}
	if slot == nil {
		return nil
	}
	if !slot.HeldBy(sessionID) {
		return apperr.NotOwner("reservations.release", "stall %s is held by another session", key)
	}
	if slot.Finalizing {
		return apperr.Conflict("reservations.release", "booking for stall %s is in progress", key)
	}

	if err := m.drop(ctx, slot); err != nil {
		return err
	}
	m.log.LogReservation(ctx, "Released", key.String(), sessionID, slot.HeldUntil)
	return nil
}

func (m *manager) drop(ctx context.Context, slot *ReservationSlot) error {
	if err := m.store.Delete(ctx, slot.Key); err != nil {
		return err
	}
	return m.store.ClearSessionKey(ctx, slot.HolderSessionID, slot.Key)
}

func (m *manager) IsHeldByOther(ctx context.Context, key stallkey.Key, sessionID string) (bool, error) {
	slot, err := m.liveSlot(ctx, key, m.clock.Now())
	if err != nil {
		return false, err
	}
	return slot != nil && !slot.HeldBy(sessionID), nil
}

func (m *manager) Get(ctx context.Context, key stallkey.Key) (*ReservationSlot, error) {
	slot, err := m.liveSlot(ctx, key, m.clock.Now())
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, apperr.NotFound("reservations.get", "no active hold on stall %s", key)
	}
	return slot, nil
}

func (m *manager) HeldBySession(ctx context.Context, sessionID string) (*ReservationSlot, error) {
	key, ok, err := m.store.SessionKey(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("reservations.session", "session %s holds no stall", sessionID)
	}
	slot, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !slot.HeldBy(sessionID) {
		return nil, apperr.NotFound("reservations.session", "session %s holds no stall", sessionID)
	}
	return slot, nil
}

func (m *manager) Finalize(ctx context.Context, key stallkey.Key, sessionID string) (*ReservationSlot, error) {
	unlock := m.keys.Lock(key)
	defer unlock()

	now := m.clock.Now()
	slot, err := m.liveSlot(ctx, key, now)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, apperr.Expired("reservations.finalize", "hold on stall %s has lapsed", key)
	}
	if !slot.HeldBy(sessionID) {
		return nil, apperr.NotOwner("reservations.finalize", "stall %s is held by another session", key)
	}
	if slot.Finalizing {
		return nil, apperr.Conflict("reservations.finalize", "booking for stall %s is already in progress", key)
	}

	slot.Finalizing = true
	if grace := now.Add(m.config.FinalizeGrace); slot.HeldUntil.Before(grace) {
		slot.HeldUntil = grace
	}
	if err := m.store.Put(ctx, slot, now); err != nil {
		return nil, err
	}
	return slot, nil
}

func (m *manager) finalizingSlot(ctx context.Context, op string, key stallkey.Key, sessionID string) (*ReservationSlot, error) {
	slot, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if slot == nil || !slot.HeldBy(sessionID) || !slot.Finalizing {
		return nil, apperr.InvalidState(op, "no booking in progress for stall %s", key)
	}
	return slot, nil
}

func (m *manager) Complete(ctx context.Context, key stallkey.Key, sessionID string) error {
	unlock := m.keys.Lock(key)
	defer unlock()

	slot, err := m.finalizingSlot(ctx, "reservations.complete", key, sessionID)
	if err != nil {
		return err
	}
	if err := m.drop(ctx, slot); err != nil {
		return err
	}
	m.log.LogReservation(ctx, "Finalized", key.String(), sessionID, slot.HeldUntil)
	return nil
}

func (m *manager) Abort(ctx context.Context, key stallkey.Key, sessionID string, release bool) error {
	unlock := m.keys.Lock(key)
	defer unlock()

	slot, err := m.finalizingSlot(ctx, "reservations.abort", key, sessionID)
	if err != nil {
		return err
	}
	if release {
		return m.drop(ctx, slot)
	}
	slot.Finalizing = false
	return m.store.Put(ctx, slot, m.clock.Now())
}

func (m *manager) Revoke(ctx context.Context, key stallkey.Key) error {
	unlock := m.keys.Lock(key)
	defer unlock()

	slot, err := m.store.Get(ctx, key)
	if err != nil || slot == nil {
		return err
	}
	if err := m.drop(ctx, slot); err != nil {
		return err
	}
	m.log.LogReservation(ctx, "Revoked", key.String(), slot.HolderSessionID, slot.HeldUntil)
	return nil
}

// SweepExpired reclaims lapsed holds. Reads already ignore them, so this
// only frees storage and tells the former holder.
func (m *manager) SweepExpired(ctx context.Context) ([]ReservationSlot, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holds: %w", err)
	}

	var expired []ReservationSlot
	var events []notifications.Event
	for _, key := range keys {
		slot, err := m.sweepKey(ctx, key)
		if err != nil {
			m.log.ErrorWithContext(ctx, "hold sweep failed", err, map[string]interface{}{"stall_key": key.String()})
			continue
		}
		if slot == nil {
			continue
		}
		expired = append(expired, *slot)
		m.log.LogReservation(ctx, "Expired", key.String(), slot.HolderSessionID, slot.HeldUntil)

		ev := notifications.NewEvent(notifications.EventReservationExpired, slot.HolderSessionID, m.clock.Now())
		ev.StallID, ev.Date = key.StallID, key.BookingDate
		ev.Message = fmt.Sprintf("Your hold on stall %s for %s has expired", key.StallID, key.BookingDate)
		events = append(events, ev)
	}

	notifications.Dispatch(ctx, m.notifier, m.log, events)
	return expired, nil
}

func (m *manager) sweepKey(ctx context.Context, key stallkey.Key) (*ReservationSlot, error) {
	unlock := m.keys.Lock(key)
	defer unlock()

	slot, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		// index entry without a hold; the hash already aged out
		return nil, m.store.Delete(ctx, key)
	}
	if !slot.IsExpired(m.clock.Now()) {
		return nil, nil
	}
	if err := m.drop(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}
