package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stallbook/internal/shared/apperr"
	"stallbook/internal/shared/constants"
	"stallbook/internal/stallkey"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each StallQueue as one JSON document and tracks keys
// with queue state in a set for sweeping.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func (r *RedisStore) LoadQueue(ctx context.Context, key stallkey.Key) (*StallQueue, error) {
	raw, err := r.client.Get(ctx, constants.BuildQueueKey(key.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return &StallQueue{Key: key}, nil
	}
	if err != nil {
		return nil, apperr.Unavailable("queue.load", err)
	}

	var q StallQueue
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("failed to decode queue %s: %w", key, err)
	}
	q.Key = key
	return &q, nil
}

func (r *RedisStore) SaveQueue(ctx context.Context, q *StallQueue) error {
	redisKey := constants.BuildQueueKey(q.Key.String())
	pipe := r.client.TxPipeline()
	if q.IsEmpty() {
		pipe.Del(ctx, redisKey)
		pipe.SRem(ctx, constants.STATE_KEY_QUEUE_ACTIVE, q.Key.String())
	} else {
		payload, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("failed to encode queue %s: %w", q.Key, err)
		}
		pipe.Set(ctx, redisKey, payload, 0)
		pipe.SAdd(ctx, constants.STATE_KEY_QUEUE_ACTIVE, q.Key.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Unavailable("queue.save", err)
	}
	return nil
}

func (r *RedisStore) GetTicket(ctx context.Context, ticketID string) (*QueueEntry, error) {
	raw, err := r.client.Get(ctx, constants.BuildQueueTicketKey(ticketID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Unavailable("queue.ticket", err)
	}

	var e QueueEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("failed to decode ticket %s: %w", ticketID, err)
	}
	return &e, nil
}

func (r *RedisStore) PutTicket(ctx context.Context, e *QueueEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode ticket %s: %w", e.ID, err)
	}
	var ttl time.Duration
	if e.State.IsTerminal() {
		ttl = r.retention
	}
	if err := r.client.Set(ctx, constants.BuildQueueTicketKey(e.ID), payload, ttl).Err(); err != nil {
		return apperr.Unavailable("queue.ticket", err)
	}
	return nil
}

func (r *RedisStore) ActiveKeys(ctx context.Context) ([]stallkey.Key, error) {
	members, err := r.client.SMembers(ctx, constants.STATE_KEY_QUEUE_ACTIVE).Result()
	if err != nil {
		return nil, apperr.Unavailable("queue.keys", err)
	}
	keys := make([]stallkey.Key, 0, len(members))
	for _, m := range members {
		if k, err := stallkey.Parse(m); err == nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
