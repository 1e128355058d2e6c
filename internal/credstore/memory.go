package credstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process credential store, used standalone in
// tests and as the failover fallback in production.
type MemoryStore struct {
	credentials sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context, tenantID string) (string, bool, error) {
	val, ok := s.credentials.Load(tenantID)
	if !ok {
		return "", false, nil
	}
	return val.(string), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, tenantID, credential string) error {
	s.credentials.Store(tenantID, credential)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, tenantID string) error {
	s.credentials.Delete(tenantID)
	return nil
}
