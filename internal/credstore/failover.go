package credstore

import (
	"context"
	"sync/atomic"
	"time"

	"storebridge/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverStore prefers the primary store and falls back to the
// secondary after a primary failure, probing the primary again after
// a cooldown. Writes go to both stores so the fallback stays warm.
type FailoverStore struct {
	primary   domain.CredentialStore
	fallback  domain.CredentialStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

const recoveryInterval = time.Minute

func NewFailoverStore(primary, fallback domain.CredentialStore, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (s *FailoverStore) markDown(err error) {
	s.logger.Error().Err(err).Msg("Primary credential store failed, falling back")
	s.isDown.Store(true)
	s.lastCheck.Store(time.Now().UnixNano())
}

func (s *FailoverStore) shouldProbe() bool {
	return time.Since(time.Unix(0, s.lastCheck.Load())) > recoveryInterval
}

func (s *FailoverStore) Get(ctx context.Context, tenantID string) (string, bool, error) {
	if !s.isDown.Load() {
		cred, ok, err := s.primary.Get(ctx, tenantID)
		if err == nil {
			return cred, ok, nil
		}
		s.markDown(err)
	} else if s.shouldProbe() {
		cred, ok, err := s.primary.Get(ctx, tenantID)
		if err == nil {
			s.isDown.Store(false)
			return cred, ok, nil
		}
		s.lastCheck.Store(time.Now().UnixNano())
	}

	return s.fallback.Get(ctx, tenantID)
}

func (s *FailoverStore) Set(ctx context.Context, tenantID, credential string) error {
	// Keep the fallback warm regardless of primary health.
	if err := s.fallback.Set(ctx, tenantID, credential); err != nil {
		s.logger.Warn().Err(err).Msg("Fallback credential store write failed")
	}

	if !s.isDown.Load() {
		err := s.primary.Set(ctx, tenantID, credential)
		if err == nil {
			return nil
		}
		s.markDown(err)
		return nil
	}
	return nil
}

func (s *FailoverStore) Delete(ctx context.Context, tenantID string) error {
	if err := s.fallback.Delete(ctx, tenantID); err != nil {
		s.logger.Warn().Err(err).Msg("Fallback credential store delete failed")
	}

	if !s.isDown.Load() {
		err := s.primary.Delete(ctx, tenantID)
		if err == nil {
			return nil
		}
		s.markDown(err)
	}
	return nil
}
