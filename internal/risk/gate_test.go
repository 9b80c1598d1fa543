package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage/memory"
)

// seedTrades inserts n live trades at the given timestamp.
func seedTrades(t *testing.T, store *memory.ExecutionStore, n int, ts time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := store.SaveExecution(context.Background(), &domain.TradeExecution{
			ID:          uuid.NewString(),
			Timestamp:   ts,
			Signal:      domain.ActionBuy,
			InputToken:  domain.USDTMint,
			OutputToken: domain.SOLMint,
			InputAmount: 0.01,
			SlippageBps: 50,
			Status:      domain.StatusSuccess,
		})
		require.NoError(t, err)
	}
}

func testGate(store *memory.ExecutionStore, breaker *Breaker, now time.Time) *Gate {
	g := NewGate(store, breaker, Limits{MaxDailyTrades: 10, MaxHourlyTrades: 3})
	g.now = func() time.Time { return now }
	return g
}

func TestCheckLimits_AllowsUnderLimits(t *testing.T) {
	store := memory.NewExecutionStore()
	now := time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)
	seedTrades(t, store, 2, now.Add(-30*time.Minute))

	allowed, reason, err := testGate(store, NewBreaker(0), now).CheckLimits(context.Background())
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, reason)
}

func TestCheckLimits_DailyLimit(t *testing.T) {
	store := memory.NewExecutionStore()
	now := time.Date(2026, 8, 23, 23, 0, 0, 0, time.UTC)
	// Spread through the day so the hourly window stays clear: the daily
	// check must win anyway because it is evaluated first.
	seedTrades(t, store, 10, now.Add(-20*time.Hour))

	allowed, reason, err := testGate(store, NewBreaker(0), now).CheckLimits(context.Background())
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "daily trade limit reached (10/10)", reason)
}

func TestCheckLimits_HourlyLimit(t *testing.T) {
	store := memory.NewExecutionStore()
	now := time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)
	seedTrades(t, store, 3, now.Add(-10*time.Minute))

	allowed, reason, err := testGate(store, NewBreaker(0), now).CheckLimits(context.Background())
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "hourly trade limit reached (3/3)", reason)
}

func TestCheckLimits_TradesBeforeMidnightExcluded(t *testing.T) {
	store := memory.NewExecutionStore()
	now := time.Date(2026, 8, 23, 0, 30, 0, 0, time.UTC)
	// Yesterday's trades must not count toward today's daily limit.
	seedTrades(t, store, 10, now.Add(-2*time.Hour))

	allowed, _, err := testGate(store, NewBreaker(0), now).CheckLimits(context.Background())
	require.NoError(t, err)
	// They do count toward the trailing hourly window only if recent
	// enough; two hours ago is outside it.
	assert.True(t, allowed)
}

func TestCheckLimits_CircuitBreaker(t *testing.T) {
	store := memory.NewExecutionStore()
	now := time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)

	breaker := NewBreaker(0)
	breaker.Trip()

	allowed, reason, err := testGate(store, breaker, now).CheckLimits(context.Background())
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, BreakerReason, reason)
}

func TestCheckLimits_DailyWinsOverBreaker(t *testing.T) {
	store := memory.NewExecutionStore()
	now := time.Date(2026, 8, 23, 23, 0, 0, 0, time.UTC)
	seedTrades(t, store, 10, now.Add(-20*time.Hour))

	breaker := NewBreaker(0)
	breaker.Trip()

	_, reason, err := testGate(store, breaker, now).CheckLimits(context.Background())
	require.NoError(t, err)
	assert.Contains(t, reason, "daily trade limit")
}

type failingStore struct {
	*memory.ExecutionStore
}

func (s *failingStore) CountLiveTradesSince(context.Context, time.Time) (int, error) {
	return 0, errors.New("store down")
}

func TestCheckLimits_StoreError(t *testing.T) {
	store := &failingStore{memory.NewExecutionStore()}
	g := NewGate(store, NewBreaker(0), Limits{MaxDailyTrades: 10, MaxHourlyTrades: 3})

	allowed, _, err := g.CheckLimits(context.Background())
	require.Error(t, err)
	assert.False(t, allowed)
}

func TestBreaker_ObservePrice(t *testing.T) {
	b := NewBreaker(5.0)

	assert.False(t, b.ObservePrice(100.0)) // baseline
	assert.False(t, b.ObservePrice(104.0)) // 4% move, under threshold
	assert.True(t, b.ObservePrice(120.0))  // >5% move trips
	assert.True(t, b.Active())

	b.Reset()
	assert.False(t, b.Active())
	// After reset the baseline is forgotten; a big jump from the
	// pre-reset price must not re-trip immediately.
	assert.False(t, b.ObservePrice(50.0))
}

func TestBreaker_IgnoresNonPositivePrices(t *testing.T) {
	b := NewBreaker(5.0)
	assert.False(t, b.ObservePrice(100.0))
	assert.False(t, b.ObservePrice(0))
	assert.False(t, b.ObservePrice(-3))
	assert.False(t, b.Active())
}
