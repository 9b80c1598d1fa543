// Package marketdata collects SOL/USDT market observations. Jupiter is
// the primary price source (it quotes the pool the trades actually route
// through), CoinGecko is the fallback and the source of 24h volume and
// change, and CoinKarma optionally enriches snapshots with sentiment and
// liquidity indexes. Every successful collection is persisted and fed to
// the circuit breaker.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-trader/internal/domain"
	"solana-trader/internal/observability"
	"solana-trader/internal/storage"
)

// priceProbeSlippageBps is the slippage passed on price-discovery quotes.
// The quote is never executed, so the value only needs to be routable.
const priceProbeSlippageBps = 50

// Quoter provides swap quotes; the Jupiter client implements it.
type Quoter interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*domain.Quote, error)
}

// SolanaPricer provides the fallback market data; the CoinGecko client
// implements it.
type SolanaPricer interface {
	SolanaPrice(ctx context.Context) (*GeckoQuote, error)
}

// IndexFetcher provides the optional sentiment and liquidity series; the
// CoinKarma client implements it.
type IndexFetcher interface {
	PulseIndex(ctx context.Context, from, to time.Time) ([]IndexPoint, error)
	LiquidityIndex(ctx context.Context, symbol string, from, to time.Time) ([]IndexPoint, error)
}

// PriceObserver receives every collected price; the circuit breaker
// implements it. The return value reports whether the observation
// tripped the breaker.
type PriceObserver interface {
	ObservePrice(price float64) bool
}

// Collector merges all sources into one MarketSnapshot per cycle.
type Collector struct {
	quoter  Quoter
	gecko   SolanaPricer
	karma   IndexFetcher  // nil disables enrichment
	breaker PriceObserver // nil disables breaker feed
	store   storage.SnapshotStore
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// CollectorOption configures the Collector.
type CollectorOption func(*Collector)

// WithKarma enables CoinKarma enrichment.
func WithKarma(karma IndexFetcher) CollectorOption {
	return func(c *Collector) { c.karma = karma }
}

// WithBreaker feeds collected prices to the circuit breaker.
func WithBreaker(breaker PriceObserver) CollectorOption {
	return func(c *Collector) { c.breaker = breaker }
}

// WithCollectorLogger sets the logger.
func WithCollectorLogger(logger *zap.Logger) CollectorOption {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCollectorMetrics sets the metrics sink.
func WithCollectorMetrics(m *observability.Metrics) CollectorOption {
	return func(c *Collector) { c.metrics = m }
}

// NewCollector creates a collector over the given sources and store.
func NewCollector(quoter Quoter, gecko SolanaPricer, store storage.SnapshotStore, opts ...CollectorOption) *Collector {
	c := &Collector{
		quoter: quoter,
		gecko:  gecko,
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect fetches all sources concurrently, merges them into a snapshot,
// feeds the price to the breaker, and persists the result. It fails only
// when no source produced a price; CoinGecko and CoinKarma failures are
// tolerated as long as Jupiter answers.
func (c *Collector) Collect(ctx context.Context) (*domain.MarketSnapshot, error) {
	now := c.now().UTC()

	var (
		jupPrice float64
		jupErr   error

		geckoQuote *GeckoQuote
		geckoErr   error

		pulse, liq *IndexPoint
		karmaErr   error
	)

	// Each branch records its own outcome; a failed source must not
	// cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		jupPrice, jupErr = c.jupiterPrice(ctx)
		return nil
	})
	if c.gecko != nil {
		g.Go(func() error {
			geckoQuote, geckoErr = c.gecko.SolanaPrice(ctx)
			return nil
		})
	}
	if c.karma != nil {
		g.Go(func() error {
			pulse, liq, karmaErr = c.karmaIndexes(ctx, now)
			return nil
		})
	}
	_ = g.Wait()

	snap := &domain.MarketSnapshot{Timestamp: now}

	switch {
	case jupErr == nil:
		snap.Source = domain.SourceJupiter
		snap.PriceUSD = jupPrice
	case c.gecko != nil && geckoErr == nil:
		snap.Source = domain.SourceCoinGecko
		snap.PriceUSD = geckoQuote.PriceUSD
		c.logger.Warn("jupiter price failed, using coingecko fallback", zap.Error(jupErr))
	default:
		c.metrics.RecordCollectionError(domain.SourceJupiter)
		c.metrics.RecordCollectionError(domain.SourceCoinGecko)
		c.logger.Error("all price sources failed",
			zap.NamedError("jupiter", jupErr),
			zap.NamedError("coingecko", geckoErr))
		return nil, fmt.Errorf("%w: jupiter: %v; coingecko: %v", ErrPriceUnavailable, jupErr, geckoErr)
	}

	if jupErr != nil {
		c.metrics.RecordCollectionError(domain.SourceJupiter)
	}

	if c.gecko != nil {
		if geckoErr != nil {
			c.metrics.RecordCollectionError(domain.SourceCoinGecko)
			c.logger.Warn("coingecko fetch failed", zap.Error(geckoErr))
		} else {
			snap.Volume24h = geckoQuote.Volume24h
			snap.Change24hPct = geckoQuote.Change24hPct
		}
	}

	if c.karma != nil {
		if karmaErr != nil {
			c.metrics.RecordCollectionError(domain.SourceCoinKarma)
			c.logger.Warn("coinkarma fetch failed, snapshot proceeds without indexes", zap.Error(karmaErr))
		} else {
			if pulse != nil {
				snap.PulseIndex = pulse.Value
			}
			if liq != nil {
				snap.LiquidityIndex = liq.Liq
				snap.LiquidityValue = liq.Value
			}
		}
	}

	if c.breaker != nil {
		if tripped := c.breaker.ObservePrice(snap.PriceUSD); tripped {
			c.metrics.SetBreakerActive(true)
			c.logger.Warn("price movement tripped the circuit breaker",
				zap.Float64("price_usd", snap.PriceUSD))
		}
	}

	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		return snap, fmt.Errorf("persist snapshot: %w", err)
	}

	c.metrics.RecordSnapshot(snap.Source)
	if c.metrics != nil {
		c.metrics.LastSuccessfulCollection.Set(float64(now.Unix()))
	}

	c.logger.Info("market snapshot collected",
		zap.String("source", snap.Source),
		zap.Float64("price_usd", snap.PriceUSD),
		zap.Bool("has_volume", snap.Volume24h != nil),
		zap.Bool("has_karma", snap.PulseIndex != nil))
	return snap, nil
}

// jupiterPrice derives the SOL/USDT price from a quote for swapping
// exactly 1 SOL.
func (c *Collector) jupiterPrice(ctx context.Context) (float64, error) {
	quote, err := c.quoter.GetQuote(ctx, domain.SOLMint, domain.USDTMint, domain.LamportsPerSOL, priceProbeSlippageBps)
	if err != nil {
		return 0, err
	}
	price := domain.FromSmallestUnits(domain.USDTMint, quote.OutAmount)
	if price <= 0 {
		return 0, fmt.Errorf("%w: jupiter quote returned zero output", ErrPriceUnavailable)
	}
	return price, nil
}

// karmaIndexes fetches today's pulse and liquidity series and extracts
// the latest point of each.
func (c *Collector) karmaIndexes(ctx context.Context, now time.Time) (pulse, liq *IndexPoint, err error) {
	pulseSeries, err := c.karma.PulseIndex(ctx, now, now)
	if err != nil {
		return nil, nil, err
	}
	liqSeries, err := c.karma.LiquidityIndex(ctx, DefaultLiqSymbol, now, now)
	if err != nil {
		return nil, nil, err
	}
	return Latest(pulseSeries), Latest(liqSeries), nil
}
