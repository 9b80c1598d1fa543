// Package execution implements the trade execution engine: risk-gated
// quote, build, sign, submit, confirm, record. ExecuteTrade is the single
// public entry point and never returns an error; every outcome, including
// every failure, terminates in a persisted TradeExecution record.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-trader/internal/domain"
	"solana-trader/internal/observability"
	"solana-trader/internal/solana"
	"solana-trader/internal/storage"
)

// Defaults applied when Config leaves fields zero.
const (
	DefaultMaxTradeAmountSOL   = 0.1
	DefaultConfirmationTimeout = 30 * time.Second

	// approxFeeSOL is recorded when the RPC does not expose the actual
	// fee for a confirmed transaction. Placeholder, not a measurement.
	approxFeeSOL = 0.000005
)

// Quoter is the swap aggregator surface the executor needs.
type Quoter interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*domain.Quote, error)
	BuildSwapTransaction(ctx context.Context, quote *domain.Quote, userPublicKey string) ([]byte, error)
}

// Signer is the wallet surface the executor needs. The executor never
// touches key material; signing is fully delegated.
type Signer interface {
	PublicKey() string
	SignTransaction(rawTx []byte) ([]byte, error)
}

// Confirmer submits a signed transaction and waits for finality.
type Confirmer interface {
	SubmitAndConfirm(ctx context.Context, signedTx []byte, timeout time.Duration) (solana.ConfirmResult, error)
}

// LimitChecker gates live trades.
type LimitChecker interface {
	CheckLimits(ctx context.Context) (allowed bool, reason string, err error)
}

// FeeReader reads the actual fee of a confirmed transaction.
type FeeReader interface {
	GetTransactionFee(ctx context.Context, signature string) (uint64, error)
}

// Config carries the executor's limits and timeouts.
type Config struct {
	MaxTradeAmountSOL   float64
	ConfirmationTimeout time.Duration
}

func (c Config) normalized() Config {
	if c.MaxTradeAmountSOL <= 0 {
		c.MaxTradeAmountSOL = DefaultMaxTradeAmountSOL
	}
	if c.ConfirmationTimeout <= 0 {
		c.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	return c
}

// Executor composes the trade execution engine. All collaborators are
// constructor-injected; there is no process-wide shared instance.
type Executor struct {
	quoter    Quoter
	wallet    Signer
	confirmer Confirmer
	gate      LimitChecker
	store     storage.ExecutionStore
	fees      FeeReader
	cfg       Config
	logger    *zap.Logger
	metrics   *observability.Metrics

	now func() time.Time // test seam
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithFeeReader lets the executor record the actual on-chain fee of a
// confirmed trade instead of the fixed approximation.
func WithFeeReader(fees FeeReader) Option {
	return func(e *Executor) {
		e.fees = fees
	}
}

// NewExecutor creates the execution engine.
func NewExecutor(quoter Quoter, wallet Signer, confirmer Confirmer, gate LimitChecker, store storage.ExecutionStore, cfg Config, opts ...Option) *Executor {
	e := &Executor{
		quoter:    quoter,
		wallet:    wallet,
		confirmer: confirmer,
		gate:      gate,
		store:     store,
		cfg:       cfg.normalized(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteTrade runs one trade end to end and returns its immutable
// record. The record is persisted before ExecuteTrade returns, on every
// path. Blocked and failed trades are outcomes, not errors.
func (e *Executor) ExecuteTrade(ctx context.Context, req domain.TradeRequest) *domain.TradeExecution {
	start := e.now().UTC()
	inputMint, outputMint := req.MintPair()

	rec := &domain.TradeExecution{
		ID:          uuid.NewString(),
		Timestamp:   start,
		Signal:      req.Action,
		InputToken:  inputMint,
		OutputToken: outputMint,
		InputAmount: req.AmountSOL,
		SlippageBps: req.SlippageBps,
		Status:      domain.StatusPending,
	}

	if !req.Action.Valid() {
		return e.fail(ctx, rec, start, fmt.Sprintf("invalid action %q", string(req.Action)))
	}
	if req.AmountSOL <= 0 {
		return e.fail(ctx, rec, start, fmt.Sprintf("invalid amount %v: must be positive", req.AmountSOL))
	}

	// Max single-trade size applies to dry runs too: a quote for an
	// absurd size is not useful feedback.
	if req.AmountSOL > e.cfg.MaxTradeAmountSOL {
		e.metrics.RecordBlocked("max_trade_size")
		return e.fail(ctx, rec, start, fmt.Sprintf("amount %v exceeds max trade size %v", req.AmountSOL, e.cfg.MaxTradeAmountSOL))
	}

	// Dry runs bypass the gate entirely: no on-chain effect, and probing
	// while limits are exhausted is exactly what dry runs are for.
	if !req.DryRun {
		allowed, reason, err := e.gate.CheckLimits(ctx)
		if err != nil {
			return e.fail(ctx, rec, start, fmt.Sprintf("risk check failed: %v", err))
		}
		if !allowed {
			e.metrics.RecordBlocked("risk_gate")
			return e.fail(ctx, rec, start, reason)
		}
	}

	amount := uint64(req.AmountSOL * domain.LamportsPerSOL)
	quote, err := e.quoter.GetQuote(ctx, inputMint, outputMint, amount, req.SlippageBps)
	if err != nil {
		return e.fail(ctx, rec, start, fmt.Sprintf("quote failed: %v", err))
	}

	expected := domain.FromSmallestUnits(outputMint, quote.OutAmount)
	rec.ExpectedOutput = &expected

	if req.DryRun {
		rec.Status = domain.StatusDryRun
		e.logger.Info("dry run complete",
			zap.String("action", string(req.Action)),
			zap.Float64("amount", req.AmountSOL),
			zap.Float64("expected_output", expected),
			zap.Float64("price_impact_pct", quote.PriceImpactPct))
		return e.finalize(ctx, rec, start)
	}

	rawTx, err := e.quoter.BuildSwapTransaction(ctx, quote, e.wallet.PublicKey())
	if err != nil {
		return e.fail(ctx, rec, start, fmt.Sprintf("transaction build failed: %v", err))
	}

	signedTx, err := e.wallet.SignTransaction(rawTx)
	if err != nil {
		return e.fail(ctx, rec, start, fmt.Sprintf("signing failed: %v", err))
	}

	res, err := e.confirmer.SubmitAndConfirm(ctx, signedTx, e.cfg.ConfirmationTimeout)
	if err != nil {
		return e.fail(ctx, rec, start, fmt.Sprintf("submission failed: %v", err))
	}
	e.metrics.RecordConfirmation(string(res.State), res.Polls)

	switch res.State {
	case solana.StateConfirmedSuccess:
		sig := res.Signature
		rec.Status = domain.StatusSuccess
		rec.TransactionSignature = &sig
		// Actual executed output is not exposed by the status query; the
		// quote's expected output stands in as an approximation.
		rec.OutputAmount = &expected
		fee := e.transactionFee(ctx, sig)
		rec.FeeSOL = &fee
		e.logger.Info("trade confirmed",
			zap.String("signature", sig),
			zap.String("action", string(req.Action)),
			zap.Int("polls", res.Polls))

	case solana.StateConfirmedFailed:
		// Deterministic chain-level rejection. The signature is omitted
		// from the record; funds did not move.
		return e.fail(ctx, rec, start, fmt.Sprintf("transaction failed on-chain: %s", res.OnChainErr))

	case solana.StateTimedOut:
		// Outcome unknown, not necessarily failed on-chain. The signature
		// goes into the message so the caller can verify independently.
		return e.fail(ctx, rec, start, fmt.Sprintf(
			"confirmation timed out after %s; verify signature %s before retrying",
			e.cfg.ConfirmationTimeout, res.Signature))
	}

	return e.finalize(ctx, rec, start)
}

// transactionFee reads the actual fee for a confirmed transaction,
// falling back to the fixed approximation when unavailable.
func (e *Executor) transactionFee(ctx context.Context, signature string) float64 {
	if e.fees != nil {
		lamports, err := e.fees.GetTransactionFee(ctx, signature)
		if err == nil {
			return float64(lamports) / domain.LamportsPerSOL
		}
		e.logger.Debug("fee lookup failed, recording approximation",
			zap.String("signature", signature), zap.Error(err))
	}
	return approxFeeSOL
}

// fail finalizes rec as failed with the given message.
func (e *Executor) fail(ctx context.Context, rec *domain.TradeExecution, start time.Time, msg string) *domain.TradeExecution {
	rec.Status = domain.StatusFailed
	rec.ErrorMessage = &msg
	e.logger.Warn("trade failed",
		zap.String("action", string(rec.Signal)),
		zap.String("error", msg))
	return e.finalize(ctx, rec, start)
}

// finalize stamps the duration, persists the record, and reports metrics.
// Persistence happens before the record is returned to the caller.
func (e *Executor) finalize(ctx context.Context, rec *domain.TradeExecution, start time.Time) *domain.TradeExecution {
	rec.Duration = e.now().UTC().Sub(start)

	if err := e.store.SaveExecution(ctx, rec); err != nil {
		// The trade outcome stands; only the audit write failed.
		e.logger.Error("failed to persist execution record",
			zap.String("id", rec.ID), zap.Error(err))
	}

	e.metrics.RecordTrade(string(rec.Signal), string(rec.Status), rec.Duration.Seconds())
	if e.metrics != nil {
		e.metrics.LastTradeTimestamp.Set(float64(e.now().Unix()))
	}
	return rec
}
