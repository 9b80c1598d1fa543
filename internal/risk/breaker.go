package risk

import (
	"math"
	"sync"
)

// BreakerReason is the fixed reason reported while the breaker is active.
const BreakerReason = "circuit breaker active due to large price movement"

// DefaultBreakerThresholdPct trips the breaker when the observed price
// moves more than this percentage between two observations.
const DefaultBreakerThresholdPct = 10.0

// Breaker is a kill-switch for live trading. It can be tripped manually
// or automatically by feeding it price observations; once tripped it
// stays active until Reset.
type Breaker struct {
	mu           sync.Mutex
	active       bool
	thresholdPct float64
	lastPrice    float64
}

// NewBreaker creates a breaker that auto-trips on price moves larger than
// thresholdPct percent. A threshold <= 0 uses the default.
func NewBreaker(thresholdPct float64) *Breaker {
	if thresholdPct <= 0 {
		thresholdPct = DefaultBreakerThresholdPct
	}
	return &Breaker{thresholdPct: thresholdPct}
}

// Active reports whether the breaker currently blocks live trades.
func (b *Breaker) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Trip activates the breaker.
func (b *Breaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = true
}

// Reset clears the breaker and forgets the last observed price, so the
// next observation starts a fresh baseline.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = false
	b.lastPrice = 0
}

// ObservePrice feeds a price observation. Returns true when this
// observation tripped the breaker.
func (b *Breaker) ObservePrice(price float64) bool {
	if price <= 0 {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.lastPrice
	b.lastPrice = price
	if prev <= 0 || b.active {
		return false
	}

	movePct := math.Abs(price-prev) / prev * 100
	if movePct > b.thresholdPct {
		b.active = true
		return true
	}
	return false
}
