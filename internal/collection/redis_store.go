package collection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisFieldPayload   = "payload"
	redisFieldRevision  = "revision"
	redisFieldUpdatedAt = "updated_at"
)

// RedisStore keeps each collection in a hash, using WATCH/MULTI for compare-and-set.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	maxBytes int64
}

// NewRedisStore constructs a Redis-backed slot store.
func NewRedisStore(client *redis.Client, prefix string, maxBytes int64) *RedisStore {
	if prefix == "" {
		prefix = "portal"
	}
	return &RedisStore{client: client, prefix: prefix, maxBytes: maxBytes}
}

func (s *RedisStore) slotKey(key Key) string {
	return s.prefix + ":slot:" + key.String()
}

func (s *RedisStore) Load(ctx context.Context, key Key) (Slot, error) {
	fields, err := s.client.HGetAll(ctx, s.slotKey(key)).Result()
	if err != nil {
		return Slot{Key: key}, fmt.Errorf("load %s: %w", key, err)
	}
	if len(fields) == 0 {
		return Slot{Key: key}, nil
	}

	slot := Slot{Key: key, Payload: []byte(fields[redisFieldPayload])}
	if raw := fields[redisFieldRevision]; raw != "" {
		revision, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Slot{Key: key}, fmt.Errorf("load %s: invalid revision %q", key, raw)
		}
		slot.Revision = revision
	}
	if raw := fields[redisFieldUpdatedAt]; raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			slot.UpdatedAt = time.UnixMilli(ms).UTC()
		}
	}
	return slot, nil
}

func (s *RedisStore) Save(ctx context.Context, write Write) (int64, error) {
	revisions, err := s.SaveAll(ctx, write)
	if err != nil {
		return 0, err
	}
	return revisions[0], nil
}

func (s *RedisStore) SaveAll(ctx context.Context, writes ...Write) ([]int64, error) {
	if err := checkQuota(s.maxBytes, writes); err != nil {
		return nil, err
	}

	keys := make([]string, len(writes))
	for i, w := range writes {
		keys[i] = s.slotKey(w.Key)
	}

	revisions := make([]int64, len(writes))
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		for i, w := range writes {
			current, err := tx.HGet(ctx, keys[i], redisFieldRevision).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("read revision %s: %w", w.Key, err)
			}
			if current != w.ExpectedRevision {
				return fmt.Errorf("%s: %w", w.Key, ErrStaleRevision)
			}
			revisions[i] = current + 1
		}

		now := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, w := range writes {
				pipe.HSet(ctx, keys[i],
					redisFieldPayload, w.Payload,
					redisFieldRevision, revisions[i],
					redisFieldUpdatedAt, now,
				)
			}
			return nil
		})
		return err
	}, keys...)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, ErrStaleRevision
		}
		return nil, err
	}
	return revisions, nil
}
