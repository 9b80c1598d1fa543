// Package risk gates live trades behind trade-count limits and a circuit
// breaker. Counts are read fresh from the execution store on every check,
// so the gate always agrees with the durable log.
package risk

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-trader/internal/storage"
)

// Limits configures the gate.
type Limits struct {
	MaxDailyTrades  int
	MaxHourlyTrades int
}

// Gate evaluates trade limits before a live trade. Dry runs must not be
// checked against the gate; callers skip it entirely for them.
type Gate struct {
	store   storage.ExecutionStore
	breaker *Breaker
	limits  Limits
	logger  *zap.Logger

	now func() time.Time // test seam
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the gate's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate creates a risk gate backed by the execution store.
func NewGate(store storage.ExecutionStore, breaker *Breaker, limits Limits, opts ...Option) *Gate {
	g := &Gate{
		store:   store,
		breaker: breaker,
		limits:  limits,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckLimits evaluates the limit policy in fixed order: daily cap, hourly
// cap, circuit breaker. The first failing check wins. A blocked trade is
// not an error; err is reserved for store failures.
func (g *Gate) CheckLimits(ctx context.Context) (allowed bool, reason string, err error) {
	now := g.now().UTC()

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	daily, err := g.store.CountLiveTradesSince(ctx, midnight)
	if err != nil {
		return false, "", fmt.Errorf("count daily trades: %w", err)
	}
	if daily >= g.limits.MaxDailyTrades {
		reason := fmt.Sprintf("daily trade limit reached (%d/%d)", daily, g.limits.MaxDailyTrades)
		g.logger.Warn("trade blocked", zap.String("reason", reason))
		return false, reason, nil
	}

	hourly, err := g.store.CountLiveTradesSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return false, "", fmt.Errorf("count hourly trades: %w", err)
	}
	if hourly >= g.limits.MaxHourlyTrades {
		reason := fmt.Sprintf("hourly trade limit reached (%d/%d)", hourly, g.limits.MaxHourlyTrades)
		g.logger.Warn("trade blocked", zap.String("reason", reason))
		return false, reason, nil
	}

	if g.breaker != nil && g.breaker.Active() {
		g.logger.Warn("trade blocked", zap.String("reason", BreakerReason))
		return false, BreakerReason, nil
	}

	return true, "", nil
}
