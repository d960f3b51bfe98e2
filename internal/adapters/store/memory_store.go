package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/core"
)

// MemoryStore is an in-memory implementation of core.VerdictRepository
type MemoryStore struct {
	verdicts map[string]core.Verdict
	mu       sync.RWMutex
	logger   *zap.Logger
	cleaner  *cleaner
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory verdict store
func NewMemoryStore(logger *zap.Logger, cleanupFreq time.Duration) *MemoryStore {
	s := &MemoryStore{
		verdicts: make(map[string]core.Verdict),
		logger:   logger,
		now:      time.Now,
	}
	s.cleaner = startCleaner(cleanupFreq, s.Cleanup, logger)
	return s
}

// Save stores a copy of verdict
func (s *MemoryStore) Save(ctx context.Context, verdict *core.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.verdicts[verdict.ID] = *verdict
	return nil
}

// Get retrieves a verdict by id
func (s *MemoryStore) Get(ctx context.Context, id string) (*core.Verdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.verdicts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().After(v.ExpiresAt) {
		return nil, ErrExpired
	}
	return &v, nil
}

// Delete removes a verdict
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.verdicts, id)
	return nil
}

// Cleanup removes expired verdicts
func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expired := 0
	for id, v := range s.verdicts {
		if now.After(v.ExpiresAt) {
			delete(s.verdicts, id)
			expired++
		}
	}

	s.logger.Debug("Cleaned up expired verdicts", zap.Int("expired_count", expired))
	return nil
}

// Len reports how many verdicts are held, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.verdicts)
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.cleaner.stop()
}
