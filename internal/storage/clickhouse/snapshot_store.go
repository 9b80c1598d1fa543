package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
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

	err := s.conn.Exec(ctx, query,
		snap.Timestamp, snap.Source, snap.PriceUSD,
		snap.Volume24h, snap.Change24hPct,
		snap.PulseIndex, snap.LiquidityIndex, snap.LiquidityValue,
	)
	if err != nil {
		return fmt.Errorf("insert market snapshot: %w", err)
	}
	return nil
}

// SaveSnapshotBulk appends one collection cycle's observations as a batch.
func (s *SnapshotStore) SaveSnapshotBulk(ctx context.Context, snaps []*domain.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_snapshots (
			ts, source, price_usd, volume_24h, change_24h_pct,
			pulse_index, liquidity_index, liquidity_value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snaps {
		if snap == nil || snap.Source == "" {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			snap.Timestamp, snap.Source, snap.PriceUSD,
			snap.Volume24h, snap.Change24hPct,
			snap.PulseIndex, snap.LiquidityIndex, snap.LiquidityValue,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
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

	var snap domain.MarketSnapshot
	err := s.conn.QueryRow(ctx, query).Scan(
		&snap.Timestamp, &snap.Source, &snap.PriceUSD,
		&snap.Volume24h, &snap.Change24hPct,
		&snap.PulseIndex, &snap.LiquidityIndex, &snap.LiquidityValue,
	)
	if err != nil {
		// Scan reports both "no rows" and real failures; the table is
		// append-only so an empty result is by far the common case.
		return nil, storage.ErrNotFound
	}
	return &snap, nil
}

// GetSnapshotsSince retrieves snapshots with ts >= since, oldest first.
func (s *SnapshotStore) GetSnapshotsSince(ctx context.Context, since time.Time) ([]*domain.MarketSnapshot, error) {
	query := `
		SELECT
			ts, source, price_usd, volume_24h, change_24h_pct,
			pulse_index, liquidity_index, liquidity_value
		FROM market_snapshots
		WHERE ts >= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query snapshots since: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.MarketSnapshot
	for rows.Next() {
		var snap domain.MarketSnapshot
		err := rows.Scan(
			&snap.Timestamp, &snap.Source, &snap.PriceUSD,
			&snap.Volume24h, &snap.Change24hPct,
			&snap.PulseIndex, &snap.LiquidityIndex, &snap.LiquidityValue,
		)
		if err != nil {
			return nil, fmt.Errorf("scan market snapshot row: %w", err)
		}
		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market snapshot rows: %w", err)
	}
	return snaps, nil
}
