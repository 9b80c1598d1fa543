// Package storage defines the persistence interfaces for trade
// executions, trading signals, and market snapshots. Implementations are
// append-only: records are inserted once and never updated.
package storage

import (
	"context"
	"time"

	"solana-trader/internal/domain"
)

// ExecutionStore provides access to trade_executions storage. Every
// terminal execution attempt is recorded here; the risk gate derives its
// trade counts from this store on every check.
type ExecutionStore interface {
	// SaveExecution appends a finalized execution record. Returns
	// ErrDuplicateKey when the transaction signature already exists.
	SaveExecution(ctx context.Context, e *domain.TradeExecution) error

	// CountLiveTradesSince counts executions with timestamp >= since,
	// excluding dry_run records.
	CountLiveTradesSince(ctx context.Context, since time.Time) (int, error)

	// GetRecentExecutions retrieves the most recent executions, newest
	// first.
	GetRecentExecutions(ctx context.Context, limit int) ([]*domain.TradeExecution, error)

	// GetBySignature retrieves an execution by transaction signature.
	// Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.TradeExecution, error)
}

// SignalStore provides access to trading_signals storage.
type SignalStore interface {
	// SaveSignal appends an analyzer recommendation.
	SaveSignal(ctx context.Context, s *domain.TradingSignal) error

	// GetRecentSignals retrieves the most recent signals, newest first.
	GetRecentSignals(ctx context.Context, limit int) ([]*domain.TradingSignal, error)
}

// SnapshotStore provides access to market_snapshots storage.
type SnapshotStore interface {
	// SaveSnapshot appends a market observation.
	SaveSnapshot(ctx context.Context, s *domain.MarketSnapshot) error

	// GetLatestSnapshot retrieves the most recent snapshot. Returns
	// ErrNotFound when no snapshots exist.
	GetLatestSnapshot(ctx context.Context) (*domain.MarketSnapshot, error)
}
