// Package memory provides in-memory storage implementations, used in
// tests and for dry-run experimentation without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// ExecutionStore is an in-memory implementation of storage.ExecutionStore.
type ExecutionStore struct {
	mu          sync.RWMutex
	records     []*domain.TradeExecution
	bySignature map[string]*domain.TradeExecution
}

// NewExecutionStore creates a new in-memory execution store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		bySignature: make(map[string]*domain.TradeExecution),
	}
}

var _ storage.ExecutionStore = (*ExecutionStore)(nil)

// SaveExecution appends a finalized execution record.
func (s *ExecutionStore) SaveExecution(_ context.Context, e *domain.TradeExecution) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.TransactionSignature != nil {
		if _, exists := s.bySignature[*e.TransactionSignature]; exists {
			return storage.ErrDuplicateKey
		}
	}

	cp := *e
	s.records = append(s.records, &cp)
	if cp.TransactionSignature != nil {
		s.bySignature[*cp.TransactionSignature] = &cp
	}
	return nil
}

// CountLiveTradesSince counts non-dry-run executions at or after since.
func (s *ExecutionStore) CountLiveTradesSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.records {
		if e.Live() && !e.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

// GetRecentExecutions retrieves the most recent executions, newest first.
func (s *ExecutionStore) GetRecentExecutions(_ context.Context, limit int) ([]*domain.TradeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeExecution, 0, len(s.records))
	for _, e := range s.records {
		cp := *e
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

// GetBySignature retrieves an execution by transaction signature.
func (s *ExecutionStore) GetBySignature(_ context.Context, signature string) (*domain.TradeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.bySignature[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *e
	return &cp, nil
}
