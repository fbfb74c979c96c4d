// Package presence provides the optional durability collaborator for live
// presence records. The realtime router keeps the authoritative state in
// memory; this mirror lets other processes (and the REST shell) see who is
// editing what.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"contractops/api/internal/realtime"
)

// RedisStore mirrors presence records into Redis, one key per
// (user, contract) pair with a TTL so crashed servers cannot leave ghosts.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{
		client: client,
		prefix: "presence:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(contractID, userID int64) string {
	return s.prefix + strconv.FormatInt(contractID, 10) + ":" + strconv.FormatInt(userID, 10)
}

// UpsertPresence stores rec under its composite key and refreshes the TTL.
func (s *RedisStore) UpsertPresence(ctx context.Context, rec realtime.PresenceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	if err := s.client.Set(ctx, s.key(rec.ContractID, rec.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save presence: %w", err)
	}
	return nil
}

// RemovePresence deletes the record for (userID, contractID). Removing a
// missing record is a no-op.
func (s *RedisStore) RemovePresence(ctx context.Context, userID, contractID int64) error {
	if err := s.client.Del(ctx, s.key(contractID, userID)).Err(); err != nil {
		return fmt.Errorf("remove presence: %w", err)
	}
	return nil
}

// ListActive returns the mirrored records for contractID that are still
// flagged active.
func (s *RedisStore) ListActive(ctx context.Context, contractID int64) ([]realtime.PresenceRecord, error) {
	pattern := s.prefix + strconv.FormatInt(contractID, 10) + ":*"
	var out []realtime.PresenceRecord

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read presence %s: %w", iter.Val(), err)
		}
		var rec realtime.PresenceRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal presence %s: %w", iter.Val(), err)
		}
		if rec.IsActive {
			out = append(out, rec)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan presence %s: %w", strings.TrimSuffix(pattern, "*"), err)
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
