package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage/memory"
)

type fakeQuoter struct {
	outAmount uint64
	err       error
	calls     int
}

func (f *fakeQuoter) GetQuote(_ context.Context, inputMint, outputMint string, amount uint64, _ int) (*domain.Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Quote{
		InputMint:  inputMint,
		OutputMint: outputMint,
		InAmount:   amount,
		OutAmount:  f.outAmount,
	}, nil
}

type fakeGecko struct {
	quote *GeckoQuote
	err   error
	calls int
}

func (f *fakeGecko) SolanaPrice(context.Context) (*GeckoQuote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

type fakeKarma struct {
	pulse []IndexPoint
	liq   []IndexPoint
	err   error
}

func (f *fakeKarma) PulseIndex(context.Context, time.Time, time.Time) ([]IndexPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pulse, nil
}

func (f *fakeKarma) LiquidityIndex(context.Context, string, time.Time, time.Time) ([]IndexPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.liq, nil
}

type fakeBreaker struct {
	prices  []float64
	tripped bool
}

func (f *fakeBreaker) ObservePrice(price float64) bool {
	f.prices = append(f.prices, price)
	return f.tripped
}

func ptr(v float64) *float64 { return &v }

func TestCollect_JupiterPrimaryWithGeckoEnrichment(t *testing.T) {
	quoter := &fakeQuoter{outAmount: 211_420_000} // 1 SOL -> 211.42 USDT
	gecko := &fakeGecko{quote: &GeckoQuote{PriceUSD: 210.9, Volume24h: ptr(3.5e9), Change24hPct: ptr(-2.35)}}
	store := memory.NewSnapshotStore()

	c := NewCollector(quoter, gecko, store)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.SourceJupiter, snap.Source)
	assert.InDelta(t, 211.42, snap.PriceUSD, 1e-9)

	// Volume and change come from CoinGecko even when Jupiter is primary.
	require.NotNil(t, snap.Volume24h)
	assert.InDelta(t, 3.5e9, *snap.Volume24h, 1)
	require.NotNil(t, snap.Change24hPct)

	saved, err := store.GetLatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.Source, saved.Source)
	assert.InDelta(t, snap.PriceUSD, saved.PriceUSD, 1e-9)
}

func TestCollect_GeckoFallbackWhenJupiterFails(t *testing.T) {
	quoter := &fakeQuoter{err: errors.New("quote unavailable")}
	gecko := &fakeGecko{quote: &GeckoQuote{PriceUSD: 209.5}}
	store := memory.NewSnapshotStore()

	c := NewCollector(quoter, gecko, store)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.SourceCoinGecko, snap.Source)
	assert.InDelta(t, 209.5, snap.PriceUSD, 1e-9)
}

func TestCollect_AllPriceSourcesFail(t *testing.T) {
	quoter := &fakeQuoter{err: errors.New("quote unavailable")}
	gecko := &fakeGecko{err: errors.New("rate limited")}
	store := memory.NewSnapshotStore()

	c := NewCollector(quoter, gecko, store)

	_, err := c.Collect(context.Background())
	assert.ErrorIs(t, err, ErrPriceUnavailable)

	_, err = store.GetLatestSnapshot(context.Background())
	assert.Error(t, err, "failed collections must not persist snapshots")
}

func TestCollect_ZeroOutputQuoteFallsBack(t *testing.T) {
	quoter := &fakeQuoter{outAmount: 0}
	gecko := &fakeGecko{quote: &GeckoQuote{PriceUSD: 200.0}}
	store := memory.NewSnapshotStore()

	c := NewCollector(quoter, gecko, store)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCoinGecko, snap.Source)
}

func TestCollect_KarmaEnrichment(t *testing.T) {
	quoter := &fakeQuoter{outAmount: 200_000_000}
	gecko := &fakeGecko{quote: &GeckoQuote{PriceUSD: 200.0}}
	karma := &fakeKarma{
		pulse: []IndexPoint{
			{Time: "2025-11-06 00:00", Value: ptr(55.0)},
			{Time: "2025-11-06 01:00", Value: ptr(61.2)},
		},
		liq: []IndexPoint{
			{Time: "2025-11-06 01:00", Liq: ptr(72.5), Value: ptr(1.25e6)},
		},
	}
	store := memory.NewSnapshotStore()

	c := NewCollector(quoter, gecko, store, WithKarma(karma))

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	require.NotNil(t, snap.PulseIndex)
	assert.InDelta(t, 61.2, *snap.PulseIndex, 1e-9, "newest pulse point wins")
	require.NotNil(t, snap.LiquidityIndex)
	assert.InDelta(t, 72.5, *snap.LiquidityIndex, 1e-9)
	require.NotNil(t, snap.LiquidityValue)
	assert.InDelta(t, 1.25e6, *snap.LiquidityValue, 1)
}

func TestCollect_KarmaFailureTolerated(t *testing.T) {
	quoter := &fakeQuoter{outAmount: 200_000_000}
	gecko := &fakeGecko{quote: &GeckoQuote{PriceUSD: 200.0}}
	karma := &fakeKarma{err: errors.New("token expired")}
	store := memory.NewSnapshotStore()

	c := NewCollector(quoter, gecko, store, WithKarma(karma))

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.SourceJupiter, snap.Source)
	assert.Nil(t, snap.PulseIndex)
	assert.Nil(t, snap.LiquidityIndex)
}

func TestCollect_FeedsBreaker(t *testing.T) {
	quoter := &fakeQuoter{outAmount: 211_000_000}
	gecko := &fakeGecko{quote: &GeckoQuote{PriceUSD: 210.0}}
	breaker := &fakeBreaker{}
	store := memory.NewSnapshotStore()

	c := NewCollector(quoter, gecko, store, WithBreaker(breaker))

	_, err := c.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, breaker.prices, 1)
	assert.InDelta(t, 211.0, breaker.prices[0], 1e-9, "breaker sees the primary price")
}

func TestCollect_GeckoFailureToleratedWhenJupiterAnswers(t *testing.T) {
	quoter := &fakeQuoter{outAmount: 211_000_000}
	gecko := &fakeGecko{err: errors.New("rate limited")}
	store := memory.NewSnapshotStore()

	c := NewCollector(quoter, gecko, store)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.SourceJupiter, snap.Source)
	assert.Nil(t, snap.Volume24h)
	assert.Nil(t, snap.Change24hPct)
}
