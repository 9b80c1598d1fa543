package memory

import (
	"context"
	"sort"
	"sync"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu      sync.RWMutex
	signals []*domain.TradingSignal
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{}
}

var _ storage.SignalStore = (*SignalStore)(nil)

// SaveSignal appends an analyzer recommendation.
func (s *SignalStore) SaveSignal(_ context.Context, sig *domain.TradingSignal) error {
	if sig == nil || sig.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sig
	s.signals = append(s.signals, &cp)
	return nil
}

// GetRecentSignals retrieves the most recent signals, newest first.
func (s *SignalStore) GetRecentSignals(_ context.Context, limit int) ([]*domain.TradingSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradingSignal, 0, len(s.signals))
	for _, sig := range s.signals {
		cp := *sig
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
