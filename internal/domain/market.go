package domain

import "time"

// Snapshot sources.
const (
	SourceJupiter   = "jupiter"
	SourceCoinGecko = "coingecko"
	SourceCoinKarma = "coinkarma"
)

// MarketSnapshot is one observation of the market for the traded pair,
// merged from whichever sources responded during a collection cycle.
type MarketSnapshot struct {
	Timestamp      time.Time
	Source         string // primary price source
	PriceUSD       float64
	Volume24h      *float64
	Change24hPct   *float64
	PulseIndex     *float64 // CoinKarma sentiment index
	LiquidityIndex *float64
	LiquidityValue *float64
}
