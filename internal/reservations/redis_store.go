package reservations

import (
	"context"
	"errors"
	"strconv"
	"time"

	"stallbook/internal/shared/apperr"
	"stallbook/internal/shared/constants"
	"stallbook/internal/stallkey"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each hold as a hash under stallbook:holds:key:<stallKey>.
// Writes go through a Lua script so a live foreign hold is never
// overwritten, even by another process.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// KEYS[1] = hold key, KEYS[2] = hold index
// ARGV = holder, held_until_ms, created_at_ms, finalizing, now_ms, pexpire_ms, stall_key
var putHoldScript = redis.NewScript(`
local holder = redis.call("HGET", KEYS[1], "holder")
if holder and holder ~= ARGV[1] then
    local fin = redis.call("HGET", KEYS[1], "finalizing")
    local until_ms = tonumber(redis.call("HGET", KEYS[1], "held_until") or "0")
    if fin == "1" or until_ms > tonumber(ARGV[5]) then
        return 0
    end
end
redis.call("HSET", KEYS[1], "holder", ARGV[1], "held_until", ARGV[2], "created_at", ARGV[3], "finalizing", ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[6])
redis.call("SADD", KEYS[2], ARGV[7])
return 1
`)

// KEYS[1] = session key, ARGV[1] = expected stall key
var clearSessionScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *RedisStore) Get(ctx context.Context, key stallkey.Key) (*ReservationSlot, error) {
	fields, err := r.client.HGetAll(ctx, constants.BuildHoldKey(key.String())).Result()
	if err != nil {
		return nil, apperr.Unavailable("reservations.get", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	heldUntil, _ := strconv.ParseInt(fields["held_until"], 10, 64)
	createdAt, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	return &ReservationSlot{
		Key:             key,
		HolderSessionID: fields["holder"],
		HeldUntil:       time.UnixMilli(heldUntil).UTC(),
		CreatedAt:       time.UnixMilli(createdAt).UTC(),
		Finalizing:      fields["finalizing"] == "1",
	}, nil
}

func (r *RedisStore) Put(ctx context.Context, slot *ReservationSlot, now time.Time) error {
	// the key outlives the hold a little so lazy expiry, not Redis, decides
	ttl := slot.HeldUntil.Sub(now) + constants.TTL_STATE_SAFETY_PAD
	if ttl <= 0 {
		ttl = constants.TTL_STATE_SAFETY_PAD
	}
	finalizing := "0"
	if slot.Finalizing {
		finalizing = "1"
	}

	ok, err := putHoldScript.Run(ctx, r.client,
		[]string{constants.BuildHoldKey(slot.Key.String()), constants.STATE_KEY_HOLD_INDEX},
		slot.HolderSessionID,
		slot.HeldUntil.UnixMilli(),
		slot.CreatedAt.UnixMilli(),
		finalizing,
		now.UnixMilli(),
		ttl.Milliseconds(),
		slot.Key.String(),
	).Int()
	if err != nil {
		return apperr.Unavailable("reservations.put", err)
	}
	if ok == 0 {
		return apperr.Conflict("reservations.put", "stall %s is held by another session", slot.Key)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key stallkey.Key) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, constants.BuildHoldKey(key.String()))
	pipe.SRem(ctx, constants.STATE_KEY_HOLD_INDEX, key.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Unavailable("reservations.delete", err)
	}
	return nil
}

func (r *RedisStore) Keys(ctx context.Context) ([]stallkey.Key, error) {
	members, err := r.client.SMembers(ctx, constants.STATE_KEY_HOLD_INDEX).Result()
	if err != nil {
		return nil, apperr.Unavailable("reservations.keys", err)
	}
	keys := make([]stallkey.Key, 0, len(members))
	for _, m := range members {
		k, err := stallkey.Parse(m)
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (r *RedisStore) SessionKey(ctx context.Context, sessionID string) (stallkey.Key, bool, error) {
	raw, err := r.client.Get(ctx, constants.BuildSessionHoldKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return stallkey.Key{}, false, nil
	}
	if err != nil {
		return stallkey.Key{}, false, apperr.Unavailable("reservations.session", err)
	}
	k, err := stallkey.Parse(raw)
	if err != nil {
		return stallkey.Key{}, false, nil
	}
	return k, true, nil
}

func (r *RedisStore) SetSessionKey(ctx context.Context, sessionID string, key stallkey.Key, ttl time.Duration) error {
	if err := r.client.Set(ctx, constants.BuildSessionHoldKey(sessionID), key.String(), ttl).Err(); err != nil {
		return apperr.Unavailable("reservations.session", err)
	}
	return nil
}

func (r *RedisStore) ClearSessionKey(ctx context.Context, sessionID string, key stallkey.Key) error {
	err := clearSessionScript.Run(ctx, r.client, []string{constants.BuildSessionHoldKey(sessionID)}, key.String()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return apperr.Unavailable("reservations.session", err)
	}
	return nil
}
