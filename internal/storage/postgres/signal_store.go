package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// SaveSignal appends an analyzer recommendation.
func (s *SignalStore) SaveSignal(ctx context.Context, sig *domain.TradingSignal) error {
	if sig == nil || sig.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trading_signals (
			id, ts, signal, confidence, rationale,
			suggested_amount_sol, model, analysis_duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		sig.ID, sig.Timestamp, string(sig.Signal), sig.Confidence, sig.Rationale,
		sig.SuggestedAmountSOL, sig.Model, sig.AnalysisDuration.Milliseconds(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trading signal: %w", err)
	}
	return nil
}

// GetRecentSignals retrieves the most recent signals, newest first.
func (s *SignalStore) GetRecentSignals(ctx context.Context, limit int) ([]*domain.TradingSignal, error) {
	query := `
		SELECT
			id, ts, signal, confidence, rationale,
			suggested_amount_sol, model, analysis_duration_ms
		FROM trading_signals
		ORDER BY ts DESC, id DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get recent signals: %w", err)
	}
	defer rows.Close()

	var signals []*domain.TradingSignal
	for rows.Next() {
		var (
			sig        domain.TradingSignal
			kind       string
			analysisMs int64
		)
		err := rows.Scan(
			&sig.ID, &sig.Timestamp, &kind, &sig.Confidence, &sig.Rationale,
			&sig.SuggestedAmountSOL, &sig.Model, &analysisMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trading signal row: %w", err)
		}
		sig.Signal = domain.SignalKind(kind)
		sig.AnalysisDuration = time.Duration(analysisMs) * time.Millisecond
		signals = append(signals, &sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trading signal rows: %w", err)
	}

	return signals, nil
}
