package memory

import (
	"context"
	"sync"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots []*domain.MarketSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// SaveSnapshot appends a market observation.
func (s *SnapshotStore) SaveSnapshot(_ context.Context, snap *domain.MarketSnapshot) error {
	if snap == nil || snap.Source == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *snap
	s.snapshots = append(s.snapshots, &cp)
	return nil
}

// GetLatestSnapshot retrieves the most recent snapshot by timestamp.
func (s *SnapshotStore) GetLatestSnapshot(_ context.Context) (*domain.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return nil, storage.ErrNotFound
	}

	latest := s.snapshots[0]
	for _, snap := range s.snapshots[1:] {
		if snap.Timestamp.After(latest.Timestamp) {
			latest = snap
		}
	}

	cp := *latest
	return &cp, nil
}
