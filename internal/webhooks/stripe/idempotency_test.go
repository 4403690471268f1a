package stripewebhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/homecafe-backend/pkg/redis"
)

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]any
}

var _ redis.IdempotencyStore = (*memoryStore)(nil)

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "hc:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.keys[key]; ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return "", nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]any{}
	}
	m.keys[key] = value
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]any{}
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = value
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func TestIdempotencyGuardClaimOnce(t *testing.T) {
	guard, err := NewIdempotencyGuard(&memoryStore{}, time.Hour, "stripe-webhook")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	ctx := context.Background()

	first, err := guard.Claim(ctx, "evt_1")
	if err != nil || !first {
		t.Fatalf("first claim = %v, %v", first, err)
	}
	second, err := guard.Claim(ctx, "evt_1")
	if err != nil || second {
		t.Fatalf("replay must not claim: %v, %v", second, err)
	}

	if err := guard.Release(ctx, "evt_1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := guard.Claim(ctx, "evt_1")
	if err != nil || !again {
		t.Fatalf("claim after release = %v, %v", again, err)
	}
}

func TestIdempotencyGuardValidation(t *testing.T) {
	if _, err := NewIdempotencyGuard(nil, time.Hour, "s"); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := NewIdempotencyGuard(&memoryStore{}, 0, "s"); err == nil {
		t.Fatalf("expected ttl error")
	}
	guard, _ := NewIdempotencyGuard(&memoryStore{}, time.Hour, "s")
	if _, err := guard.Claim(context.Background(), ""); err == nil {
		t.Fatalf("expected event id error")
	}
}
