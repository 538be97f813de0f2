package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"anoa.com/alumnidirectory/internal/entity"
	"github.com/redis/go-redis/v9"
)

// SignupCache holds signup form data between the signup request and link confirmation.
type SignupCache interface {
	Put(ctx context.Context, id string, payload *entity.SignupPayload, ttl time.Duration) error
	// Get returns nil, nil when the entry is missing or expired.
	Get(ctx context.Context, id string) (*entity.SignupPayload, error)
	Delete(ctx context.Context, id string) error
}

// UsedTokenStore makes magic links single-use.
type UsedTokenStore interface {
	// MarkUsed reports false when id was already marked.
	MarkUsed(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// Release unmarks id so the link can be retried.
	Release(ctx context.Context, id string) error
}

type redisSignupCache struct {
	client *redis.Client
}

func NewRedisSignupCache(client *redis.Client) SignupCache {
	return &redisSignupCache{client: client}
}

func signupKey(id string) string {
	return "signup:" + id
}

func (c *redisSignupCache) Put(ctx context.Context, id string, payload *entity.SignupPayload, ttl time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, signupKey(id), data, ttl).Err()
}

func (c *redisSignupCache) Get(ctx context.Context, id string) (*entity.SignupPayload, error) {
	data, err := c.client.Get(ctx, signupKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var payload entity.SignupPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *redisSignupCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, signupKey(id)).Err()
}

type redisUsedTokenStore struct {
	client *redis.Client
}

func NewRedisUsedTokenStore(client *redis.Client) UsedTokenStore {
	return &redisUsedTokenStore{client: client}
}

func (s *redisUsedTokenStore) MarkUsed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, "magic_link_used:"+id, 1, ttl).Result()
}

func (s *redisUsedTokenStore) Release(ctx context.Context, id string) error {
	return s.client.Del(ctx, "magic_link_used:"+id).Err()
}

type memoryEntry struct {
	payload   *entity.SignupPayload
	expiresAt time.Time
}

type memorySignupCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemorySignupCache is used when Redis is not configured. Entries do not survive restarts.
func NewMemorySignupCache() SignupCache {
	return &memorySignupCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *memorySignupCache) Put(ctx context.Context, id string, payload *entity.SignupPayload, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *payload
	c.entries[id] = memoryEntry{payload: &copied, expiresAt: c.now().Add(ttl)}
	c.evictLocked()
	return nil
}

func (c *memorySignupCache) Get(ctx context.Context, id string) (*entity.SignupPayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, id)
		return nil, nil
	}
	copied := *entry.payload
	return &copied, nil
}

func (c *memorySignupCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

func (c *memorySignupCache) evictLocked() {
	now := c.now()
	for id, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
}

type memoryUsedTokenStore struct {
	mu   sync.Mutex
	used map[string]time.Time
	now  func() time.Time
}

func NewMemoryUsedTokenStore() UsedTokenStore {
	return &memoryUsedTokenStore{used: make(map[string]time.Time), now: time.Now}
}

func (s *memoryUsedTokenStore) MarkUsed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, expiresAt := range s.used {
		if !now.Before(expiresAt) {
			delete(s.used, key)
		}
	}
	if _, ok := s.used[id]; ok {
		return false, nil
	}
	s.used[id] = now.Add(ttl)
	return true, nil
}

func (s *memoryUsedTokenStore) Release(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.used, id)
	return nil
}
