package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRunLock is a per-tenant lease preventing two overlapping sync
// runs for the same tenant. The core orchestrator does not enforce
// this; callers opt in at the trigger boundary (the API layer does).
type RedisRunLock struct {
	client *redis.Client
}

func NewRedisRunLock(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{client: client}
}

func runLockKey(tenantID string) string {
	return fmt.Sprintf("sync_lock:%s", tenantID)
}

func (l *RedisRunLock) Acquire(ctx context.Context, tenantID string, ttl time.Duration) (bool, error) {
	if l.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	ok, err := l.client.SetNX(ctx, runLockKey(tenantID), time.Now().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return ok, nil
}

func (l *RedisRunLock) Release(ctx context.Context, tenantID string) error {
	if l.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := l.client.Del(ctx, runLockKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// MemoryRunLock is the in-process fallback when redis is unavailable.
// It only guards runs within one process.
type MemoryRunLock struct {
	mu     sync.Mutex
	leases map[string]time.Time
}

func NewMemoryRunLock() *MemoryRunLock {
	return &MemoryRunLock{leases: make(map[string]time.Time)}
}

func (l *MemoryRunLock) Acquire(ctx context.Context, tenantID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, held := l.leases[tenantID]; held && time.Now().Before(expiry) {
		return false, nil
	}
	l.leases[tenantID] = time.Now().Add(ttl)
	return true, nil
}

func (l *MemoryRunLock) Release(ctx context.Context, tenantID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.leases, tenantID)
	return nil
}
