package coupons

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-core/internal/pricing"
	"github.com/angelmondragon/storefront-core/pkg/redis"
)

// Slot is the persisted "currently applied coupon" for one user.
type Slot struct {
	Coupon    pricing.Coupon `json:"coupon"`
	Subtotal  string         `json:"subtotal"`
	AppliedAt time.Time      `json:"applied_at"`
}

// SlotStore holds at most one applied coupon per user. Clear is idempotent.
type SlotStore interface {
	Get(ctx context.Context, userKey string) (*Slot, error)
	Put(ctx context.Context, userKey string, slot Slot) error
	Clear(ctx context.Context, userKey string) error
}

type redisSlotStore struct {
	kv  redis.KV
	ttl time.Duration
}

// NewRedisSlotStore keeps slots as JSON under a per-user key with the given TTL.
func NewRedisSlotStore(kv redis.KV, ttl time.Duration) (SlotStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis kv required")
	}
	return &redisSlotStore{kv: kv, ttl: ttl}, nil
}

func (s *redisSlotStore) Get(ctx context.Context, userKey string) (*Slot, error) {
	raw, err := s.kv.Get(ctx, s.kv.CouponSlotKey(userKey))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read coupon slot: %w", err)
	}
	var slot Slot
	if err := json.Unmarshal([]byte(raw), &slot); err != nil {
		return nil, fmt.Errorf("decode coupon slot: %w", err)
	}
	return &slot, nil
}

func (s *redisSlotStore) Put(ctx context.Context, userKey string, slot Slot) error {
	payload, err := json.Marshal(slot)
	if err != nil {
		return fmt.Errorf("encode coupon slot: %w", err)
	}
	if err := s.kv.Set(ctx, s.kv.CouponSlotKey(userKey), string(payload), s.ttl); err != nil {
		return fmt.Errorf("write coupon slot: %w", err)
	}
	return nil
}

func (s *redisSlotStore) Clear(ctx context.Context, userKey string) error {
	if err := s.kv.Del(ctx, s.kv.CouponSlotKey(userKey)); err != nil {
		return fmt.Errorf("clear coupon slot: %w", err)
	}
	return nil
}

type memorySlotStore struct {
	mu    sync.Mutex
	slots map[string]Slot
}

// NewMemorySlotStore is an in-process SlotStore for tests and single-node dev.
func NewMemorySlotStore() SlotStore {
	return &memorySlotStore{slots: map[string]Slot{}}
}

func (m *memorySlotStore) Get(_ context.Context, userKey string) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[userKey]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (m *memorySlotStore) Put(_ context.Context, userKey string, slot Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[userKey] = slot
	return nil
}

func (m *memorySlotStore) Clear(_ context.Context, userKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, userKey)
	return nil
}
