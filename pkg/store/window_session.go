package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"orionos/pkg/domain"
)

// WindowSessionStore keeps gesture state that must never reach the durable
// store: the focused window and geometry staged during a drag.
type WindowSessionStore interface {
	SetFocus(ctx context.Context, profileID, appStateID string) error
	Focus(ctx context.Context, profileID string) (string, bool, error)
	StageGeometry(ctx context.Context, profileID, appStateID string, g domain.Geometry) error
	StagedGeometry(ctx context.Context, profileID, appStateID string) (domain.Geometry, bool, error)
	ClearStaged(ctx context.Context, profileID, appStateID string) error
}

type sessionEntry struct {
	value  string
	expiry time.Time
}

// MemoryWindowSessionStore keeps session state in process with a TTL.
type MemoryWindowSessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]sessionEntry
}

// NewMemoryWindowSessionStore constructs an in-memory session store.
func NewMemoryWindowSessionStore(ttl time.Duration) *MemoryWindowSessionStore {
	return &MemoryWindowSessionStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]sessionEntry),
	}
}

func (s *MemoryWindowSessionStore) put(key, value string) {
	s.mu.Lock()
	s.entries[key] = sessionEntry{value: value, expiry: s.now().Add(s.ttl)}
	s.mu.Unlock()
}

func (s *MemoryWindowSessionStore) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if s.now().After(entry.expiry) {
		delete(s.entries, key)
		return "", false
	}
	return entry.value, true
}

func (s *MemoryWindowSessionStore) SetFocus(_ context.Context, profileID, appStateID string) error {
	s.put(focusKey(profileID), appStateID)
	return nil
}

func (s *MemoryWindowSessionStore) Focus(_ context.Context, profileID string) (string, bool, error) {
	v, ok := s.get(focusKey(profileID))
	return v, ok, nil
}

func (s *MemoryWindowSessionStore) StageGeometry(_ context.Context, profileID, appStateID string, g domain.Geometry) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	s.put(stagedKey(profileID, appStateID), string(raw))
	return nil
}

func (s *MemoryWindowSessionStore) StagedGeometry(_ context.Context, profileID, appStateID string) (domain.Geometry, bool, error) {
	raw, ok := s.get(stagedKey(profileID, appStateID))
	if !ok {
		return domain.Geometry{}, false, nil
	}
	var g domain.Geometry
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return domain.Geometry{}, false, err
	}
	return g, true, nil
}

func (s *MemoryWindowSessionStore) ClearStaged(_ context.Context, profileID, appStateID string) error {
	s.mu.Lock()
	delete(s.entries, stagedKey(profileID, appStateID))
	s.mu.Unlock()
	return nil
}

// RedisWindowSessionStore stores session state in Redis keys that expire
// after the configured TTL.
type RedisWindowSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisWindowSessionStore builds a Redis-backed session store.
func NewRedisWindowSessionStore(addr, password string, ttl time.Duration) *RedisWindowSessionStore {
	return &RedisWindowSessionStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}
}

func (s *RedisWindowSessionStore) SetFocus(ctx context.Context, profileID, appStateID string) error {
	return s.client.Set(ctx, focusKey(profileID), appStateID, s.ttl).Err()
}

func (s *RedisWindowSessionStore) Focus(ctx context.Context, profileID string) (string, bool, error) {
	v, err := s.client.Get(ctx, focusKey(profileID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisWindowSessionStore) StageGeometry(ctx context.Context, profileID, appStateID string, g domain.Geometry) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, stagedKey(profileID, appStateID), raw, s.ttl).Err()
}

func (s *RedisWindowSessionStore) StagedGeometry(ctx context.Context, profileID, appStateID string) (domain.Geometry, bool, error) {
	raw, err := s.client.Get(ctx, stagedKey(profileID, appStateID)).Bytes()
	if err == redis.Nil {
		return domain.Geometry{}, false, nil
	}
	if err != nil {
		return domain.Geometry{}, false, err
	}
	var g domain.Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return domain.Geometry{}, false, fmt.Errorf("decode staged geometry: %w", err)
	}
	return g, true, nil
}

func (s *RedisWindowSessionStore) ClearStaged(ctx context.Context, profileID, appStateID string) error {
	if err := s.client.Del(ctx, stagedKey(profileID, appStateID)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *RedisWindowSessionStore) Close() error {
	return s.client.Close()
}

func focusKey(profileID string) string {
	return fmt.Sprintf("orionos:session:%s:focus", profileID)
}

func stagedKey(profileID, appStateID string) string {
	return fmt.Sprintf("orionos:session:%s:drag:%s", profileID, appStateID)
}
