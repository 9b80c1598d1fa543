package domain

import "time"

// SignalKind is the recommendation produced by the analyzer.
type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
	SignalHold SignalKind = "HOLD"
)

// TradingSignal is a persisted analyzer recommendation. The analyzer only
// produces signals; acting on one is the caller's decision.
type TradingSignal struct {
	ID                 string // uuid
	Timestamp          time.Time
	Signal             SignalKind
	Confidence         float64 // 0.0 - 1.0
	Rationale          string
	SuggestedAmountSOL *float64
	Model              string
	AnalysisDuration   time.Duration
}
