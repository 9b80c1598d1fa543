package marketdata

import "errors"

// Sentinel errors for market data collection. Callers classify failures
// with errors.Is.
var (
	// ErrPriceUnavailable means no price source produced a usable quote.
	ErrPriceUnavailable = errors.New("marketdata: price unavailable from all sources")

	// ErrGeckoUnavailable covers CoinGecko fetch and decode failures.
	ErrGeckoUnavailable = errors.New("marketdata: coingecko unavailable")

	// ErrKarmaUnavailable covers CoinKarma fetch, decryption, and decode
	// failures.
	ErrKarmaUnavailable = errors.New("marketdata: coinkarma unavailable")
)
