// Package app wires configuration into the running trader: storage,
// network clients, risk gate, executor, collector, and analyzer, plus the
// daemon loops that drive them.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-trader/internal/config"
	"solana-trader/internal/domain"
	"solana-trader/internal/execution"
	"solana-trader/internal/jupiter"
	"solana-trader/internal/marketdata"
	"solana-trader/internal/observability"
	"solana-trader/internal/retry"
	"solana-trader/internal/risk"
	"solana-trader/internal/signal"
	"solana-trader/internal/solana"
	"solana-trader/internal/wallet"
)

const (
	// recentSnapshotsKept bounds the in-memory history handed to the
	// analyzer.
	recentSnapshotsKept = 30

	// recentExecutionsInPrompt is how much trade history the analyzer sees.
	recentExecutionsInPrompt = 10

	// minExecuteConfidence is the floor below which a BUY/SELL
	// recommendation is logged but not acted on.
	minExecuteConfidence = 0.6
)

type collector interface {
	Collect(ctx context.Context) (*domain.MarketSnapshot, error)
}

type analyzer interface {
	Analyze(ctx context.Context, snapshots []*domain.MarketSnapshot, executions []*domain.TradeExecution) (*domain.TradingSignal, error)
}

type executor interface {
	ExecuteTrade(ctx context.Context, req domain.TradeRequest) *domain.TradeExecution
}

// App aggregates the trader's components and drives its lifecycle.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	stores  *Stores

	collector collector
	analyzer  analyzer // nil when no LLM credentials are configured
	executor  executor // nil unless auto-execute is enabled
	breaker   *risk.Breaker

	mu             sync.Mutex
	started        time.Time
	recent         []*domain.MarketSnapshot
	lastSignal     *domain.TradingSignal
	collections    int
	collectionErrs int
	analyses       int
	tradesRun      int
}

// New builds the application from configuration. Stores must already be
// initialized; the caller owns their lifecycle.
func New(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, stores *Stores) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		stores:  stores,
	}

	retrier := retry.New(retry.Policy{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		BackoffFactor: cfg.Retry.BackoffFactor,
		BaseDelay:     cfg.Retry.BaseDelay,
		MaxDelay:      cfg.Retry.MaxDelay,
	}, retry.WithLogger(logger), retry.WithHook(func(att retry.Attempt) {
		metrics.RecordRetry(att.Operation, att.Final)
	}))

	jup := jupiter.NewClient(retrier,
		jupiter.WithQuoteURL(cfg.Jupiter.QuoteURL),
		jupiter.WithSwapURL(cfg.Jupiter.SwapURL),
		jupiter.WithHTTPClient(&http.Client{Timeout: cfg.Jupiter.Timeout}),
		jupiter.WithLogger(logger))

	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL, solana.WithTimeout(cfg.Solana.Timeout))

	a.breaker = risk.NewBreaker(cfg.Trading.BreakerThresholdPct)

	gecko := marketdata.NewGeckoClient(retrier,
		marketdata.WithGeckoBaseURL(cfg.MarketData.CoinGeckoURL),
		marketdata.WithGeckoHTTPClient(&http.Client{Timeout: cfg.MarketData.Timeout}),
		marketdata.WithGeckoLogger(logger))

	collectorOpts := []marketdata.CollectorOption{
		marketdata.WithBreaker(a.breaker),
		marketdata.WithCollectorLogger(logger),
		marketdata.WithCollectorMetrics(metrics),
	}
	if cfg.MarketData.CoinKarmaEnabled {
		if cfg.MarketData.CoinKarmaToken == "" {
			logger.Warn("coinkarma enabled but no token configured, enrichment disabled")
		} else {
			karma := marketdata.NewKarmaClient(
				cfg.MarketData.CoinKarmaToken,
				cfg.MarketData.CoinKarmaDeviceID,
				retrier,
				marketdata.WithKarmaBaseURL(cfg.MarketData.CoinKarmaURL),
				marketdata.WithKarmaHTTPClient(&http.Client{Timeout: cfg.MarketData.Timeout}),
				marketdata.WithKarmaLogger(logger))
			collectorOpts = append(collectorOpts, marketdata.WithKarma(karma))
		}
	}
	a.collector = marketdata.NewCollector(jup, gecko, stores.Snapshots, collectorOpts...)

	if cfg.OpenAI.APIKey != "" {
		an, err := signal.NewAnalyzer(cfg.OpenAI, stores.Signals,
			signal.WithLogger(logger),
			signal.WithMetrics(metrics),
			signal.WithMaxTradeAmountSOL(cfg.Trading.MaxTradeAmountSOL))
		if err != nil {
			return nil, err
		}
		a.analyzer = an
	} else {
		logger.Info("no openai api key configured, analysis loop disabled")
	}

	if cfg.Scheduler.AutoExecute {
		if cfg.Solana.PrivateKey == "" && !cfg.Scheduler.DryRun {
			return nil, errors.New("auto-execute without dry-run requires solana.private_key")
		}

		// A missing key is only reachable in dry-run mode, which never
		// signs anything.
		var signer execution.Signer
		if cfg.Solana.PrivateKey != "" {
			w, err := wallet.NewFromBase58(cfg.Solana.PrivateKey)
			if err != nil {
				return nil, err
			}
			signer = w
			logger.Info("trading wallet loaded", zap.String("pubkey", w.PublicKey()))
		}

		confirmer := solana.NewConfirmer(rpc, retrier, solana.WithConfirmerLogger(logger))
		gate := risk.NewGate(stores.Executions, a.breaker, risk.Limits{
			MaxDailyTrades:  cfg.Trading.MaxDailyTrades,
			MaxHourlyTrades: cfg.Trading.MaxHourlyTrades,
		}, risk.WithLogger(logger))

		a.executor = execution.NewExecutor(jup, signer, confirmer, gate, stores.Executions,
			execution.Config{
				MaxTradeAmountSOL:   cfg.Trading.MaxTradeAmountSOL,
				ConfirmationTimeout: cfg.Trading.ConfirmationTimeout,
			},
			execution.WithLogger(logger),
			execution.WithMetrics(metrics),
			execution.WithFeeReader(rpc))
	}

	return a, nil
}

// Run drives the daemon loops until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	a.started = time.Now()
	a.mu.Unlock()

	a.logger.Info("trader started",
		zap.String("environment", a.cfg.App.Environment),
		zap.Duration("collect_interval", a.cfg.Scheduler.CollectInterval),
		zap.Duration("analyze_interval", a.cfg.Scheduler.AnalyzeInterval),
		zap.Bool("auto_execute", a.cfg.Scheduler.AutoExecute),
		zap.Bool("dry_run", a.cfg.Scheduler.DryRun))

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Metrics.Enabled {
		g.Go(func() error { return a.runMonitor(ctx) })
	}
	g.Go(func() error { return a.collectLoop(ctx) })
	if a.analyzer != nil {
		g.Go(func() error { return a.analyzeLoop(ctx) })
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("trader stopped")
	return nil
}

// collectLoop runs a collection immediately and then on every tick.
func (a *App) collectLoop(ctx context.Context) error {
	a.collectOnce(ctx)

	ticker := time.NewTicker(a.cfg.Scheduler.CollectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.collectOnce(ctx)
		}
	}
}

func (a *App) collectOnce(ctx context.Context) {
	snap, err := a.collector.Collect(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.collectionErrs++
		a.logger.Error("market data collection failed", zap.Error(err))
		return
	}

	a.collections++
	a.recent = append(a.recent, snap)
	if len(a.recent) > recentSnapshotsKept {
		a.recent = a.recent[len(a.recent)-recentSnapshotsKept:]
	}
}

// analyzeLoop waits one full interval before the first analysis so the
// collector has data to reason about.
func (a *App) analyzeLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Scheduler.AnalyzeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.analyzeOnce(ctx)
		}
	}
}

func (a *App) analyzeOnce(ctx context.Context) {
	snapshots := a.recentSnapshots()
	if len(snapshots) == 0 {
		a.logger.Warn("skipping analysis, no market data collected yet")
		return
	}

	executions, err := a.stores.Executions.GetRecentExecutions(ctx, recentExecutionsInPrompt)
	if err != nil {
		a.logger.Warn("could not load recent executions for analysis", zap.Error(err))
		executions = nil
	}

	sig, err := a.analyzer.Analyze(ctx, snapshots, executions)
	if err != nil {
		a.logger.Error("analysis failed", zap.Error(err))
		return
	}

	a.mu.Lock()
	a.analyses++
	a.lastSignal = sig
	a.mu.Unlock()

	a.maybeExecute(ctx, sig)
}

// maybeExecute turns an actionable recommendation into a trade when
// auto-execute is on. The executor's own gate still applies.
func (a *App) maybeExecute(ctx context.Context, sig *domain.TradingSignal) {
	if a.executor == nil || sig.Signal == domain.SignalHold {
		return
	}
	if sig.Confidence < minExecuteConfidence {
		a.logger.Info("signal below confidence floor, not trading",
			zap.String("signal", string(sig.Signal)),
			zap.Float64("confidence", sig.Confidence))
		return
	}
	if sig.SuggestedAmountSOL == nil {
		a.logger.Warn("actionable signal without a suggested amount, not trading",
			zap.String("signal", string(sig.Signal)))
		return
	}

	amount := *sig.SuggestedAmountSOL
	if amount > a.cfg.Trading.MaxTradeAmountSOL {
		amount = a.cfg.Trading.MaxTradeAmountSOL
	}

	rec := a.executor.ExecuteTrade(ctx, domain.TradeRequest{
		Action:      domain.Action(sig.Signal),
		AmountSOL:   amount,
		SlippageBps: a.cfg.Trading.DefaultSlippageBps,
		DryRun:      a.cfg.Scheduler.DryRun,
	})

	a.mu.Lock()
	a.tradesRun++
	a.mu.Unlock()

	a.logger.Info("signal-driven trade finished",
		zap.String("signal", string(sig.Signal)),
		zap.Float64("amount_sol", amount),
		zap.String("status", string(rec.Status)))
}

func (a *App) recentSnapshots() []*domain.MarketSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*domain.MarketSnapshot, len(a.recent))
	copy(out, a.recent)
	return out
}
