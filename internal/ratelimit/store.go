package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"sigevent-service/internal/models"
)

const (
	fieldDate       = "date"
	fieldCount      = "count"
	fieldExpiration = "expiration"
)

// expiryGrace keeps an entry readable for a day after its logical expiration.
const expiryGrace = 24 * time.Hour

// Store is the key-value store behind the notification counters.
type Store interface {
	// GetItem returns nil, nil when no entry exists for key.
	GetItem(ctx context.Context, key string) (*models.NotificationCounterEntry, error)
	PutItem(ctx context.Context, entry models.NotificationCounterEntry) error
	// AtomicIncrement adds delta to field in a single store-side operation.
	AtomicIncrement(ctx context.Context, key, field string, delta int64) error
}

// RedisStore keeps each counter entry in a Redis hash named
// <table>:<fingerprint>.
type RedisStore struct {
	client redis.Cmdable
	table  string
}

// NewRedisStore creates a RedisStore using table as the key prefix.
func NewRedisStore(client redis.Cmdable, table string) *RedisStore {
	return &RedisStore{client: client, table: table}
}

func (s *RedisStore) itemKey(key string) string {
	return s.table + ":" + key
}

func (s *RedisStore) GetItem(ctx context.Context, key string) (*models.NotificationCounterEntry, error) {
	vals, err := s.client.HGetAll(ctx, s.itemKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get notification counter %s: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	entry := &models.NotificationCounterEntry{Fingerprint: key, Date: vals[fieldDate]}
	if raw, ok := vals[fieldCount]; ok {
		if entry.Count, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("corrupt count on notification counter %s: %w", key, err)
		}
	}
	if raw, ok := vals[fieldExpiration]; ok {
		if entry.Expiration, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("corrupt expiration on notification counter %s: %w", key, err)
		}
	}
	return entry, nil
}

func (s *RedisStore) PutItem(ctx context.Context, entry models.NotificationCounterEntry) error {
	key := s.itemKey(entry.Fingerprint)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldDate, entry.Date,
			fieldCount, entry.Count,
			fieldExpiration, entry.Expiration,
		)
		pipe.ExpireAt(ctx, key, time.Unix(entry.Expiration, 0).Add(expiryGrace))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put notification counter %s: %w", entry.Fingerprint, err)
	}
	return nil
}

// AtomicIncrement bumps field and, when the hash has no expiry (it expired
// between lookup and increment and HINCRBY recreated it), gives it one so the
// orphan cannot live forever. The recreated entry has no expiration field and
// is therefore reset by the next lookup.
func (s *RedisStore) AtomicIncrement(ctx context.Context, key, field string, delta int64) error {
	itemKey := s.itemKey(key)
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, itemKey, field, delta)
		ttl = pipe.TTL(ctx, itemKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to increment %s on notification counter %s: %w", field, key, err)
	}
	if ttl.Val() < 0 {
		if err := s.client.ExpireAt(ctx, itemKey, time.Now().Add(expiryGrace)).Err(); err != nil {
			return fmt.Errorf("failed to expire notification counter %s: %w", key, err)
		}
	}
	return nil
}
