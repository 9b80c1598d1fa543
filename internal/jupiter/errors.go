package jupiter

import "errors"

// Adapter errors. Transient transport faults, rate limits, and 5xx
// responses are additionally marked retryable for the retrier; 4xx
// responses and malformed payloads are permanent.
var (
	// ErrQuoteUnavailable is returned when the quote endpoint fails or the
	// payload is missing the output amount.
	ErrQuoteUnavailable = errors.New("jupiter: quote unavailable")

	// ErrTransactionBuildFailed is returned when the swap endpoint fails to
	// produce a transaction payload.
	ErrTransactionBuildFailed = errors.New("jupiter: transaction build failed")
)
