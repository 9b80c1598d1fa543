package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"solana-trader/internal/retry"
)

// DefaultCoinGeckoURL is the public CoinGecko API v3 base URL.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// GeckoClient fetches SOL market data from CoinGecko. It serves as the
// fallback price source and the only source of 24h volume and change.
type GeckoClient struct {
	baseURL string
	client  *http.Client
	retrier *retry.Retrier
	logger  *zap.Logger
}

// GeckoOption configures the GeckoClient.
type GeckoOption func(*GeckoClient)

// WithGeckoBaseURL overrides the API base URL.
func WithGeckoBaseURL(u string) GeckoOption {
	return func(c *GeckoClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithGeckoHTTPClient sets a custom http.Client.
func WithGeckoHTTPClient(client *http.Client) GeckoOption {
	return func(c *GeckoClient) { c.client = client }
}

// WithGeckoLogger sets the logger.
func WithGeckoLogger(logger *zap.Logger) GeckoOption {
	return func(c *GeckoClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewGeckoClient creates a CoinGecko client. A nil retrier gets the
// default policy.
func NewGeckoClient(retrier *retry.Retrier, opts ...GeckoOption) *GeckoClient {
	if retrier == nil {
		retrier = retry.New(retry.DefaultPolicy())
	}
	c := &GeckoClient{
		baseURL: DefaultCoinGeckoURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		retrier: retrier,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GeckoQuote is the SOL market data CoinGecko returns.
type GeckoQuote struct {
	PriceUSD     float64
	Volume24h    *float64
	Change24hPct *float64
}

// SolanaPrice fetches the current SOL/USD price with 24h volume and
// change.
func (c *GeckoClient) SolanaPrice(ctx context.Context) (*GeckoQuote, error) {
	q := url.Values{}
	q.Set("ids", "solana")
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_vol", "true")
	q.Set("include_24hr_change", "true")
	reqURL := c.baseURL + "/simple/price?" + q.Encode()

	quote, err := retry.DoValue(ctx, c.retrier, "coingecko_price", func(ctx context.Context) (*GeckoQuote, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: create request: %v", ErrGeckoUnavailable, err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, retry.Transient(fmt.Errorf("%w: %v", ErrGeckoUnavailable, err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, retry.Transient(fmt.Errorf("%w: read response: %v", ErrGeckoUnavailable, err))
		}

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, retry.Transient(fmt.Errorf("%w: status %d", ErrGeckoUnavailable, resp.StatusCode))
		default:
			return nil, fmt.Errorf("%w: status %d", ErrGeckoUnavailable, resp.StatusCode)
		}

		var parsed map[string]struct {
			USD       float64  `json:"usd"`
			Vol24h    *float64 `json:"usd_24h_vol"`
			Change24h *float64 `json:"usd_24h_change"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("%w: decode payload: %v", ErrGeckoUnavailable, err)
		}

		sol, ok := parsed["solana"]
		if !ok || sol.USD <= 0 {
			return nil, fmt.Errorf("%w: payload missing solana price", ErrGeckoUnavailable)
		}

		return &GeckoQuote{
			PriceUSD:     sol.USD,
			Volume24h:    sol.Vol24h,
			Change24hPct: sol.Change24h,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("coingecko price fetched", zap.Float64("price_usd", quote.PriceUSD))
	return quote, nil
}
