package solana

import (
	"context"
	"time"

	"go.uber.org/zap"

	"solana-trader/internal/retry"
)

// FinalState is the terminal state of a submitted transaction from the
// engine's point of view.
type FinalState string

const (
	// StateConfirmedSuccess: finality reached, no on-chain error.
	StateConfirmedSuccess FinalState = "confirmed-success"
	// StateConfirmedFailed: finality reached with an on-chain error. The
	// transaction was accepted by the network but failed deterministically
	// during execution (e.g. slippage exceeded). Never retried.
	StateConfirmedFailed FinalState = "confirmed-failed"
	// StateTimedOut: no finality within the wall-clock budget. The outcome
	// is unknown, not necessarily failed on-chain; callers should verify by
	// signature before assuming funds were not moved.
	StateTimedOut FinalState = "timed-out"
)

// DefaultPollInterval is the delay between status queries.
const DefaultPollInterval = 1 * time.Second

// ConfirmResult is the outcome of SubmitAndConfirm.
type ConfirmResult struct {
	Signature  string
	State      FinalState
	OnChainErr string // set when State is StateConfirmedFailed
	Polls      int    // status queries issued
}

// Confirmer submits signed transactions and polls the cluster until
// finality or timeout.
type Confirmer struct {
	rpc      RPC
	retrier  *retry.Retrier
	interval time.Duration
	logger   *zap.Logger
}

// ConfirmerOption configures a Confirmer.
type ConfirmerOption func(*Confirmer)

// WithPollInterval overrides the status poll interval.
func WithPollInterval(d time.Duration) ConfirmerOption {
	return func(c *Confirmer) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithConfirmerLogger sets the logger.
func WithConfirmerLogger(logger *zap.Logger) ConfirmerOption {
	return func(c *Confirmer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConfirmer creates a Confirmer. A nil retrier gets the default policy;
// it is applied to submission only, never to polling.
func NewConfirmer(rpc RPC, retrier *retry.Retrier, opts ...ConfirmerOption) *Confirmer {
	if retrier == nil {
		retrier = retry.New(retry.DefaultPolicy())
	}
	c := &Confirmer{
		rpc:      rpc,
		retrier:  retrier,
		interval: DefaultPollInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitAndConfirm submits signedTx and polls until finality or timeout.
//
// Submission is retried for transient RPC faults; once a signature has
// been obtained the transaction is never resubmitted (duplicate-submission
// risk). Poll errors are tolerated and the loop continues — a blip while
// polling says nothing about the transaction itself. The returned error is
// non-nil only when submission failed and no signature exists.
func (c *Confirmer) SubmitAndConfirm(ctx context.Context, signedTx []byte, timeout time.Duration) (ConfirmResult, error) {
	signature, err := retry.DoValue(ctx, c.retrier, "solana_submit", func(ctx context.Context) (string, error) {
		return c.rpc.SendTransaction(ctx, signedTx)
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	c.logger.Info("transaction submitted", zap.String("signature", signature))

	result := ConfirmResult{Signature: signature}
	maxPolls := int(timeout / c.interval)

	for poll := 1; poll <= maxPolls; poll++ {
		select {
		case <-ctx.Done():
			result.State = StateTimedOut
			result.Polls = poll - 1
			return result, nil
		case <-time.After(c.interval):
		}

		status, err := c.rpc.GetSignatureStatus(ctx, signature)
		result.Polls = poll
		if err != nil {
			c.logger.Warn("status poll failed",
				zap.String("signature", signature),
				zap.Int("poll", poll),
				zap.Error(err),
			)
			continue
		}

		if !status.Final() {
			continue
		}

		if onChainErr := status.ErrString(); onChainErr != "" {
			result.State = StateConfirmedFailed
			result.OnChainErr = onChainErr
			c.logger.Warn("transaction failed on-chain",
				zap.String("signature", signature),
				zap.String("err", onChainErr),
			)
			return result, nil
		}

		result.State = StateConfirmedSuccess
		c.logger.Info("transaction confirmed",
			zap.String("signature", signature),
			zap.Int("polls", poll),
		)
		return result, nil
	}

	result.State = StateTimedOut
	c.logger.Warn("confirmation timed out",
		zap.String("signature", signature),
		zap.Duration("timeout", timeout),
		zap.Int("polls", result.Polls),
	)
	return result, nil
}
