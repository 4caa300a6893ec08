package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/wricardo/gridpath/nav/service"
)

// RedisKeyPrefix namespaces session keys
const RedisKeyPrefix = "gridpath:session:"

const (
	redisTimeout  = 2 * time.Second
	redisLockWait = 5 * time.Second
	lockSuffix    = ":lock"
)

// RedisPersistence implements SessionPersistence on Redis. Each session is one
// JSON value; saves take a redsync lock so several servers can share a store.
type RedisPersistence struct {
	client *redis.Client
	locker *redsync.Redsync
	maps   service.MapManager
	ttl    time.Duration
}

// NewRedisPersistence creates a Redis-backed persistence layer. A zero ttl keeps sessions forever.
func NewRedisPersistence(client *redis.Client, maps service.MapManager, ttl time.Duration) *RedisPersistence {
	return &RedisPersistence{
		client: client,
		locker: redsync.New(goredis.NewPool(client)),
		maps:   maps,
		ttl:    ttl,
	}
}

func redisKey(id string) string {
	return RedisKeyPrefix + strings.ToLower(id)
}

// Save persists a session under its key, refreshing the TTL
func (rp *RedisPersistence) Save(session *service.Session) error {
	data, err := newPersistedData(session)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisLockWait)
	defer cancel()

	key := redisKey(session.ID)
	mutex := rp.locker.NewMutex(key+lockSuffix, redsync.WithExpiry(redisLockWait))
	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("failed to lock session %s: %w", session.ID, err)
	}
	defer func() {
		_, _ = mutex.UnlockContext(context.Background())
	}()

	if err := rp.client.Set(ctx, key, payload, rp.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Load retrieves a session by ID
func (rp *RedisPersistence) Load(id string) (*service.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	payload, err := rp.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return data.restore(rp.maps)
}

// Delete removes a session
func (rp *RedisPersistence) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	removed, err := rp.client.Del(ctx, redisKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if removed == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all persisted session IDs
func (rp *RedisPersistence) ListAll() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	var ids []string
	iter := rp.client.Scan(ctx, 0, RedisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, lockSuffix) {
			continue
		}
		ids = append(ids, strings.TrimPrefix(key, RedisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return ids, nil
}

// Exists checks if a session is stored
func (rp *RedisPersistence) Exists(id string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	n, err := rp.client.Exists(ctx, redisKey(id)).Result()
	return err == nil && n > 0
}
