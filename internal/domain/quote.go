package domain

import "encoding/json"

// Quote is a priced, time-bounded swap estimate from the aggregator.
// It lives for the duration of one execution attempt and is never
// persisted directly.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64 // smallest units of the input mint
	OutAmount      uint64 // smallest units of the output mint
	PriceImpactPct float64

	// Raw is the aggregator's full quote payload. The swap build endpoint
	// requires it verbatim.
	Raw json.RawMessage
}
