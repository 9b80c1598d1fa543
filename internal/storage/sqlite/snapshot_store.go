package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using SQLite.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// SaveSnapshot appends a market observation.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap *domain.MarketSnapshot) error {
	if snap == nil || snap.Source == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO market_snapshots (
			ts, source, price_usd, volume_24h, change_24h_pct,
			pulse_index, liquidity_index, liquidity_value
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		snap.Timestamp.UTC(), snap.Source, snap.PriceUSD,
		snap.Volume24h, snap.Change24hPct,
		snap.PulseIndex, snap.LiquidityIndex, snap.LiquidityValue,
	)
	if err != nil {
		return fmt.Errorf("insert market snapshot: %w", err)
	}
	return nil
}

// GetLatestSnapshot retrieves the most recent snapshot. Returns
// ErrNotFound when no snapshots exist.
func (s *SnapshotStore) GetLatestSnapshot(ctx context.Context) (*domain.MarketSnapshot, error) {
	query := `
		SELECT
			ts, source, price_usd, volume_24h, change_24h_pct,
			pulse_index, liquidity_index, liquidity_value
		FROM market_snapshots
		ORDER BY ts DESC
		LIMIT 1
	`

	var (
		snap     domain.MarketSnapshot
		volume   sql.NullFloat64
		change   sql.NullFloat64
		pulse    sql.NullFloat64
		liqIndex sql.NullFloat64
		liqValue sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, query).Scan(
		&snap.Timestamp, &snap.Source, &snap.PriceUSD, &volume, &change,
		&pulse, &liqIndex, &liqValue,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}

	if volume.Valid {
		snap.Volume24h = &volume.Float64
	}
	if change.Valid {
		snap.Change24hPct = &change.Float64
	}
	if pulse.Valid {
		snap.PulseIndex = &pulse.Float64
	}
	if liqIndex.Valid {
		snap.LiquidityIndex = &liqIndex.Float64
	}
	if liqValue.Valid {
		snap.LiquidityValue = &liqValue.Float64
	}
	return &snap, nil
}
