// Package signal generates trading recommendations from collected market
// data with an LLM behind an OpenAI-compatible API. The analyzer only
// recommends; executing a recommendation stays with the caller.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"solana-trader/internal/config"
	"solana-trader/internal/domain"
	"solana-trader/internal/observability"
	"solana-trader/internal/storage"
)

const (
	// rationaleSnippetLen bounds how much raw model output lands in the
	// fallback rationale.
	rationaleSnippetLen = 200

	// minRationaleLen rejects throwaway one-word rationales.
	minRationaleLen = 10
)

// ErrAnalysisFailed wraps model API failures.
var ErrAnalysisFailed = errors.New("signal: analysis failed")

// Analyzer asks the configured model for a trading recommendation and
// persists every generated signal.
type Analyzer struct {
	sdk     *openai.Client
	cfg     config.OpenAIConfig
	store   storage.SignalStore
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	maxTradeAmountSOL float64
}

// Option configures the Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithMaxTradeAmountSOL caps the amount the prompt allows the model to
// suggest.
func WithMaxTradeAmountSOL(maxAmount float64) Option {
	return func(a *Analyzer) {
		if maxAmount > 0 {
			a.maxTradeAmountSOL = maxAmount
		}
	}
}

// NewAnalyzer creates an analyzer over an OpenAI-compatible endpoint.
func NewAnalyzer(cfg config.OpenAIConfig, store storage.SignalStore, opts ...Option) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("signal: openai api_key must not be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("signal: openai model must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = cfg.BaseURL
	}
	sdkCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	a := &Analyzer{
		sdk:               openai.NewClientWithConfig(sdkCfg),
		cfg:               cfg,
		store:             store,
		logger:            zap.NewNop(),
		now:               time.Now,
		maxTradeAmountSOL: 0.1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// signalPayload is the JSON object the model is asked to return.
type signalPayload struct {
	Signal             string   `json:"signal"`
	Confidence         float64  `json:"confidence"`
	Rationale          string   `json:"rationale"`
	SuggestedAmountSOL *float64 `json:"suggested_amount_sol"`
}

// Analyze builds the prompt from the given market history, queries the
// model, and returns the validated recommendation. Unparseable model
// output degrades to a HOLD signal rather than an error; only API
// failures and out-of-range values fail the analysis. Every returned
// signal has already been persisted (persistence failures are logged,
// not propagated).
func (a *Analyzer) Analyze(ctx context.Context, snapshots []*domain.MarketSnapshot, executions []*domain.TradeExecution) (*domain.TradingSignal, error) {
	start := a.now()

	prompt, err := BuildPrompt(snapshots, executions, a.maxTradeAmountSOL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	resp, err := a.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		a.logger.Error("model call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrAnalysisFailed)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	payload := parseSignalPayload(content)

	if err := validatePayload(payload); err != nil {
		a.logger.Error("model returned invalid signal",
			zap.Error(err), zap.String("raw_content", snippet(content)))
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	sig := &domain.TradingSignal{
		ID:                 uuid.NewString(),
		Timestamp:          start.UTC(),
		Signal:             domain.SignalKind(payload.Signal),
		Confidence:         payload.Confidence,
		Rationale:          payload.Rationale,
		SuggestedAmountSOL: payload.SuggestedAmountSOL,
		Model:              a.cfg.Model,
		AnalysisDuration:   a.now().Sub(start),
	}

	if err := a.store.SaveSignal(ctx, sig); err != nil {
		// The recommendation stands; only the audit write failed.
		a.logger.Error("failed to persist trading signal",
			zap.String("id", sig.ID), zap.Error(err))
	}

	a.metrics.RecordSignal(string(sig.Signal), sig.AnalysisDuration.Seconds())
	a.logger.Info("trading signal generated",
		zap.String("signal", string(sig.Signal)),
		zap.Float64("confidence", sig.Confidence),
		zap.Duration("analysis_duration", sig.AnalysisDuration))
	return sig, nil
}

// parseSignalPayload extracts the recommendation JSON from the model
// output. Output that carries no parseable JSON degrades to HOLD so a
// chatty model never stalls the loop.
func parseSignalPayload(content string) signalPayload {
	var payload signalPayload
	if raw, err := extractJSON(content); err == nil {
		if err := json.Unmarshal(raw, &payload); err == nil && payload.Signal != "" {
			return payload
		}
	}

	return signalPayload{
		Signal:     string(domain.SignalHold),
		Confidence: 0.5,
		Rationale:  "model output could not be parsed as a signal: " + snippet(content),
	}
}

// extractJSON returns the first top-level JSON object in content,
// tolerating markdown fences and surrounding prose.
func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, errors.New("no JSON object in model output")
	}
	return []byte(content[start : end+1]), nil
}

func validatePayload(p signalPayload) error {
	switch domain.SignalKind(p.Signal) {
	case domain.SignalBuy, domain.SignalSell, domain.SignalHold:
	default:
		return fmt.Errorf("invalid signal %q", p.Signal)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence %g out of range [0, 1]", p.Confidence)
	}
	if len(strings.TrimSpace(p.Rationale)) < minRationaleLen {
		return fmt.Errorf("rationale shorter than %d characters", minRationaleLen)
	}
	if p.SuggestedAmountSOL != nil && *p.SuggestedAmountSOL <= 0 {
		return fmt.Errorf("suggested amount %g must be positive", *p.SuggestedAmountSOL)
	}
	return nil
}

func snippet(s string) string {
	if len(s) > rationaleSnippetLen {
		return s[:rationaleSnippetLen] + "..."
	}
	return s
}
