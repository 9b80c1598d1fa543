package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"solana-trader/internal/retry"
)

// CoinKarma endpoints and defaults.
const (
	DefaultKarmaURL = "https://data.coinkarma.co"

	// DefaultLiqSymbol is the liquidity series for the traded pair.
	DefaultLiqSymbol = "solusdt"
)

// KarmaClient fetches the CoinKarma sentiment and liquidity indexes.
// Responses arrive AES-encrypted under a date-derived key; the client
// decrypts them transparently.
type KarmaClient struct {
	baseURL  string
	token    string
	deviceID string
	client   *http.Client
	retrier  *retry.Retrier
	logger   *zap.Logger
	now      func() time.Time
}

// KarmaOption configures the KarmaClient.
type KarmaOption func(*KarmaClient)

// WithKarmaBaseURL overrides the API base URL.
func WithKarmaBaseURL(u string) KarmaOption {
	return func(c *KarmaClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithKarmaHTTPClient sets a custom http.Client.
func WithKarmaHTTPClient(client *http.Client) KarmaOption {
	return func(c *KarmaClient) { c.client = client }
}

// WithKarmaLogger sets the logger.
func WithKarmaLogger(logger *zap.Logger) KarmaOption {
	return func(c *KarmaClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewKarmaClient creates a CoinKarma client. The token and device ID go
// into the authorization and x-device-id headers on every request. A nil
// retrier gets the default policy.
func NewKarmaClient(token, deviceID string, retrier *retry.Retrier, opts ...KarmaOption) *KarmaClient {
	if retrier == nil {
		retrier = retry.New(retry.DefaultPolicy())
	}
	c := &KarmaClient{
		baseURL:  DefaultKarmaURL,
		token:    token,
		deviceID: deviceID,
		client:   &http.Client{Timeout: 10 * time.Second},
		retrier:  retrier,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IndexPoint is one observation of a CoinKarma index series. The pulse
// series carries only Value; the liquidity series carries Liq (the 0-100
// score) and Value (the absolute amount).
type IndexPoint struct {
	Time  string
	Value *float64
	Liq   *float64
}

// Latest returns the newest point of a series, or nil when empty.
func Latest(points []IndexPoint) *IndexPoint {
	if len(points) == 0 {
		return nil
	}
	return &points[len(points)-1]
}

// PulseIndex fetches the sentiment index series for the given UTC date
// range, oldest first.
func (c *KarmaClient) PulseIndex(ctx context.Context, from, to time.Time) ([]IndexPoint, error) {
	reqURL := fmt.Sprintf("%s/pulse-index?from=%s&to=%s", c.baseURL, karmaDate(from), karmaDate(to))
	return c.fetchSeries(ctx, "coinkarma_pulse", reqURL)
}

// LiquidityIndex fetches the liquidity series for symbol over the given
// UTC date range, oldest first. An empty symbol defaults to the traded
// pair.
func (c *KarmaClient) LiquidityIndex(ctx context.Context, symbol string, from, to time.Time) ([]IndexPoint, error) {
	if symbol == "" {
		symbol = DefaultLiqSymbol
	}
	reqURL := fmt.Sprintf("%s/liq/%s?from=%s&to=%s", c.baseURL, symbol, karmaDate(from), karmaDate(to))
	return c.fetchSeries(ctx, "coinkarma_liq", reqURL)
}

func karmaDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (c *KarmaClient) fetchSeries(ctx context.Context, operation, reqURL string) ([]IndexPoint, error) {
	return retry.DoValue(ctx, c.retrier, operation, func(ctx context.Context) ([]IndexPoint, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: create request: %v", ErrKarmaUnavailable, err)
		}
		req.Header.Set("Accept", "text/*")
		req.Header.Set("Authorization", c.token)
		req.Header.Set("X-Device-Id", c.deviceID)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, retry.Transient(fmt.Errorf("%w: %v", ErrKarmaUnavailable, err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, retry.Transient(fmt.Errorf("%w: read response: %v", ErrKarmaUnavailable, err))
		}

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, retry.Transient(fmt.Errorf("%w: status %d", ErrKarmaUnavailable, resp.StatusCode))
		default:
			return nil, fmt.Errorf("%w: status %d", ErrKarmaUnavailable, resp.StatusCode)
		}

		payload, err := decryptKarmaPayload(string(body), c.now())
		if err != nil {
			return nil, fmt.Errorf("%w: decrypt: %v", ErrKarmaUnavailable, err)
		}

		points, err := parseIndexSeries(payload)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("coinkarma series fetched",
			zap.String("operation", operation),
			zap.Int("points", len(points)))
		return points, nil
	})
}

// parseIndexSeries decodes a decrypted series: a JSON object keyed by
// timestamp whose values are either a bare number (pulse) or an object
// carrying liq and value (liquidity).
func parseIndexSeries(payload []byte) ([]IndexPoint, error) {
	var series map[string]json.RawMessage
	if err := json.Unmarshal(payload, &series); err != nil {
		return nil, fmt.Errorf("%w: decode series: %v", ErrKarmaUnavailable, err)
	}

	points := make([]IndexPoint, 0, len(series))
	for ts, raw := range series {
		p := IndexPoint{Time: ts}

		var num float64
		if err := json.Unmarshal(raw, &num); err == nil {
			p.Value = &num
		} else {
			var obj struct {
				Liq   *float64 `json:"liq"`
				Value *float64 `json:"value"`
			}
			if err := json.Unmarshal(raw, &obj); err == nil {
				p.Liq = obj.Liq
				p.Value = obj.Value
			}
		}

		points = append(points, p)
	}

	// Timestamps are lexically sortable (YYYY-MM-DD HH:MM).
	sort.Slice(points, func(i, j int) bool { return points[i].Time < points[j].Time })
	return points, nil
}
