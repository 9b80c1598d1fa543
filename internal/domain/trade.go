package domain

import "time"

// Action is the direction of a trade.
type Action string

// Trade actions. BUY swaps the quote asset into SOL, SELL swaps SOL
// into the quote asset.
const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Valid reports whether the action is a known trade direction.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// Status is the terminal state of a trade execution attempt.
type Status string

// Execution statuses. Corresponds to the status column of trade_executions.
const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusDryRun  Status = "dry_run"
)

// TradeRequest describes one discretionary trade attempt. It is built per
// call by a CLI or the signal loop and never persisted.
type TradeRequest struct {
	Action      Action
	AmountSOL   float64 // base asset amount, must be > 0
	SlippageBps int     // basis points, 0-10000
	DryRun      bool
}

// MintPair resolves the input/output token mints for the request action.
// BUY: quote asset -> SOL. SELL: SOL -> quote asset.
func (r TradeRequest) MintPair() (inputMint, outputMint string) {
	if r.Action == ActionBuy {
		return USDTMint, SOLMint
	}
	return SOLMint, USDTMint
}

// TradeExecution is the immutable audit record of one execution attempt.
// It is created when the attempt starts and finalized exactly once; the
// engine never mutates a record after it has been finalized.
//
// Invariants:
//   - StatusSuccess implies TransactionSignature and OutputAmount set
//   - StatusDryRun implies TransactionSignature nil
//   - StatusFailed implies ErrorMessage set
type TradeExecution struct {
	ID                   string // uuid
	Timestamp            time.Time
	Signal               Action
	InputToken           string
	OutputToken          string
	InputAmount          float64
	OutputAmount         *float64 // actual output, set on success
	ExpectedOutput       *float64 // from the quote
	SlippageBps          int
	Status               Status
	TransactionSignature *string // base58, success only
	ErrorMessage         *string
	Duration             time.Duration
	FeeSOL               *float64 // actual on-chain fee when known
}

// Live reports whether the execution had (or attempted) an on-chain effect.
// Dry-run records are excluded from trade-count limits.
func (e *TradeExecution) Live() bool {
	return e.Status != StatusDryRun
}
