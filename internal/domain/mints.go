package domain

// Mainnet token mint addresses for the traded pair.
const (
	SOLMint  = "So11111111111111111111111111111111111111112"
	USDTMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// Token decimals.
const (
	SOLDecimals  = 9
	USDTDecimals = 6

	LamportsPerSOL = 1_000_000_000
	UnitsPerUSDT   = 1_000_000
)

// MintDecimals returns the number of decimals for a known mint.
// Unknown mints default to SOL decimals.
func MintDecimals(mint string) int {
	switch mint {
	case USDTMint:
		return USDTDecimals
	default:
		return SOLDecimals
	}
}

// FromSmallestUnits converts an integer smallest-unit amount of the given
// mint to a decimal token amount.
func FromSmallestUnits(mint string, amount uint64) float64 {
	switch MintDecimals(mint) {
	case USDTDecimals:
		return float64(amount) / UnitsPerUSDT
	default:
		return float64(amount) / LamportsPerSOL
	}
}
