// Package jupiter talks to the Jupiter v6 swap aggregator: price-discovery
// quotes and unsigned swap transaction construction. It never signs or
// submits anything.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"solana-trader/internal/domain"
	"solana-trader/internal/retry"
)

// Jupiter v6 endpoints.
const (
	DefaultQuoteURL = "https://quote-api.jup.ag/v6/quote"
	DefaultSwapURL  = "https://quote-api.jup.ag/v6/swap"

	DefaultTimeout = 15 * time.Second
)

// Client issues quote and swap-build requests. All calls go through the
// injected retrier; only transport faults, 429s, and 5xx responses are
// retried.
type Client struct {
	quoteURL string
	swapURL  string
	client   *http.Client
	retrier  *retry.Retrier
	logger   *zap.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithQuoteURL overrides the quote endpoint.
func WithQuoteURL(u string) Option {
	return func(c *Client) { c.quoteURL = u }
}

// WithSwapURL overrides the swap-build endpoint.
func WithSwapURL(u string) Option {
	return func(c *Client) { c.swapURL = u }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Jupiter client. A nil retrier gets the default
// policy.
func NewClient(retrier *retry.Retrier, opts ...Option) *Client {
	if retrier == nil {
		retrier = retry.New(retry.DefaultPolicy())
	}
	c := &Client{
		quoteURL: DefaultQuoteURL,
		swapURL:  DefaultSwapURL,
		client:   &http.Client{Timeout: DefaultTimeout},
		retrier:  retrier,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// quoteResponse is the subset of the quote payload the engine reads.
// Amounts arrive as decimal strings.
type quoteResponse struct {
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
}

// GetQuote fetches a swap quote for amount smallest-units of inputMint.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*domain.Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	reqURL := c.quoteURL + "?" + q.Encode()

	quote, err := retry.DoValue(ctx, c.retrier, "jupiter_quote", func(ctx context.Context) (*domain.Quote, error) {
		body, err := c.get(ctx, reqURL, ErrQuoteUnavailable)
		if err != nil {
			return nil, err
		}

		var parsed quoteResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("%w: decode payload: %v", ErrQuoteUnavailable, err)
		}
		if parsed.OutAmount == "" {
			return nil, fmt.Errorf("%w: payload missing outAmount", ErrQuoteUnavailable)
		}

		outAmount, err := strconv.ParseUint(parsed.OutAmount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed outAmount %q", ErrQuoteUnavailable, parsed.OutAmount)
		}
		inAmount := amount
		if parsed.InAmount != "" {
			if v, err := strconv.ParseUint(parsed.InAmount, 10, 64); err == nil {
				inAmount = v
			}
		}
		priceImpact := 0.0
		if parsed.PriceImpactPct != "" {
			priceImpact, _ = strconv.ParseFloat(parsed.PriceImpactPct, 64)
		}

		return &domain.Quote{
			InputMint:      inputMint,
			OutputMint:     outputMint,
			InAmount:       inAmount,
			OutAmount:      outAmount,
			PriceImpactPct: priceImpact,
			Raw:            json.RawMessage(body),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("jupiter quote fetched",
		zap.String("input_mint", shortMint(inputMint)),
		zap.String("output_mint", shortMint(outputMint)),
		zap.Uint64("amount", amount),
		zap.Uint64("out_amount", quote.OutAmount),
		zap.Float64("price_impact_pct", quote.PriceImpactPct),
	)
	return quote, nil
}

// swapRequest is the swap-build request body.
type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// BuildSwapTransaction requests an unsigned transaction encoding the swap
// described by quote. The returned bytes are opaque; the wallet signs them.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *domain.Quote, userPublicKey string) ([]byte, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, fmt.Errorf("%w: quote has no raw payload", ErrTransactionBuildFailed)
	}

	payload, err := json.Marshal(swapRequest{
		QuoteResponse:    quote.Raw,
		UserPublicKey:    userPublicKey,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrTransactionBuildFailed, err)
	}

	txBytes, err := retry.DoValue(ctx, c.retrier, "jupiter_swap_build", func(ctx context.Context) ([]byte, error) {
		body, err := c.post(ctx, c.swapURL, payload, ErrTransactionBuildFailed)
		if err != nil {
			return nil, err
		}

		var parsed swapResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("%w: decode payload: %v", ErrTransactionBuildFailed, err)
		}
		if parsed.SwapTransaction == "" {
			return nil, fmt.Errorf("%w: payload missing swapTransaction", ErrTransactionBuildFailed)
		}

		raw, err := base64.StdEncoding.DecodeString(parsed.SwapTransaction)
		if err != nil {
			return nil, fmt.Errorf("%w: decode transaction: %v", ErrTransactionBuildFailed, err)
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("jupiter swap transaction built", zap.Int("tx_size", len(txBytes)))
	return txBytes, nil
}

// get issues a GET and classifies failures against sentinel.
func (c *Client) get(ctx context.Context, reqURL string, sentinel error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", sentinel, err)
	}
	return c.do(req, sentinel)
}

// post issues a JSON POST and classifies failures against sentinel.
func (c *Client) post(ctx context.Context, reqURL string, body []byte, sentinel error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", sentinel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, sentinel)
}

func (c *Client) do(req *http.Request, sentinel error) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		// Transport-level failure: connection refused, DNS, timeout.
		return nil, retry.Transient(fmt.Errorf("%w: %v", sentinel, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("%w: read response: %v", sentinel, err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retry.Transient(fmt.Errorf("%w: status %d: %s", sentinel, resp.StatusCode, truncate(body)))
	default:
		// Other 4xx are client errors, never retried.
		return nil, fmt.Errorf("%w: status %d: %s", sentinel, resp.StatusCode, truncate(body))
	}
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

func shortMint(mint string) string {
	if len(mint) > 8 {
		return mint[:8]
	}
	return mint
}
