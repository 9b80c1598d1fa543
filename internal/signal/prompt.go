package signal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"solana-trader/internal/domain"
)

const systemPrompt = `You are a cautious quantitative analyst for a SOL/USDT spot trading bot.
You only produce recommendations; a separate risk layer decides whether to act on them.
Base every recommendation strictly on the data provided. When the data is thin,
contradictory, or stale, recommend HOLD.`

const decisionTemplate = `Recent market snapshots (newest last):
{{ .SnapshotsJSON }}

Recent trade executions (newest first):
{{ .ExecutionsJSON }}

Rules:
1. Judge trend and momentum from the snapshots before anything else.
2. Factor in how recent executions fared; repeated failures argue for HOLD.
3. Never suggest more than {{ printf "%.3f" .MaxTradeAmountSOL }} SOL per trade.
4. Treat missing sentiment or liquidity indexes as unknown, not as neutral.

Respond with exactly one JSON object, no surrounding prose:
{
  "signal": "BUY" | "SELL" | "HOLD",
  "confidence": 0.0 to 1.0,
  "rationale": "clear explanation of the decision",
  "suggested_amount_sol": 0.01
}

suggested_amount_sol may be omitted for HOLD.`

var promptTmpl = template.Must(template.New("decision").Parse(decisionTemplate))

// promptSnapshot is the subset of a snapshot serialized into the prompt.
type promptSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	Source         string    `json:"source"`
	PriceUSD       float64   `json:"price_usd"`
	Volume24h      *float64  `json:"volume_24h,omitempty"`
	Change24hPct   *float64  `json:"change_24h_pct,omitempty"`
	PulseIndex     *float64  `json:"pulse_index,omitempty"`
	LiquidityIndex *float64  `json:"liquidity_index,omitempty"`
}

// promptExecution is the subset of an execution serialized into the prompt.
type promptExecution struct {
	Timestamp    time.Time `json:"timestamp"`
	Signal       string    `json:"signal"`
	Status       string    `json:"status"`
	InputAmount  float64   `json:"input_amount"`
	OutputAmount *float64  `json:"output_amount,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// BuildPrompt renders the analysis prompt from collected market data and
// execution history.
func BuildPrompt(snapshots []*domain.MarketSnapshot, executions []*domain.TradeExecution, maxTradeAmountSOL float64) (string, error) {
	snaps := make([]promptSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		snaps = append(snaps, promptSnapshot{
			Timestamp:      s.Timestamp,
			Source:         s.Source,
			PriceUSD:       s.PriceUSD,
			Volume24h:      s.Volume24h,
			Change24hPct:   s.Change24hPct,
			PulseIndex:     s.PulseIndex,
			LiquidityIndex: s.LiquidityIndex,
		})
	}

	execs := make([]promptExecution, 0, len(executions))
	for _, e := range executions {
		execs = append(execs, promptExecution{
			Timestamp:    e.Timestamp,
			Signal:       string(e.Signal),
			Status:       string(e.Status),
			InputAmount:  e.InputAmount,
			OutputAmount: e.OutputAmount,
			ErrorMessage: e.ErrorMessage,
		})
	}

	snapsJSON, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize snapshots: %w", err)
	}
	execsJSON, err := json.MarshalIndent(execs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize executions: %w", err)
	}

	var buf bytes.Buffer
	err = promptTmpl.Execute(&buf, struct {
		SnapshotsJSON     string
		ExecutionsJSON    string
		MaxTradeAmountSOL float64
	}{
		SnapshotsJSON:     string(snapsJSON),
		ExecutionsJSON:    string(execsJSON),
		MaxTradeAmountSOL: maxTradeAmountSOL,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	return buf.String(), nil
}
