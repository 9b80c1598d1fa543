package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trader/internal/config"
	"solana-trader/internal/domain"
	"solana-trader/internal/storage/memory"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])
		require.Len(t, req["messages"], 2, "system prompt plus user prompt")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
}

func testAnalyzer(t *testing.T, serverURL string, store *memory.SignalStore) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(config.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: serverURL,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}, store)
	require.NoError(t, err)
	return a
}

func sampleSnapshots() []*domain.MarketSnapshot {
	vol := 3.5e9
	return []*domain.MarketSnapshot{
		{Timestamp: time.Now().UTC(), Source: domain.SourceJupiter, PriceUSD: 211.42, Volume24h: &vol},
	}
}

func TestAnalyze(t *testing.T) {
	server := chatServer(t, `{"signal":"BUY","confidence":0.8,"rationale":"pulse index rising with strong volume","suggested_amount_sol":0.05}`)
	defer server.Close()

	store := memory.NewSignalStore()
	a := testAnalyzer(t, server.URL, store)

	sig, err := a.Analyze(context.Background(), sampleSnapshots(), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.SignalBuy, sig.Signal)
	assert.InDelta(t, 0.8, sig.Confidence, 1e-9)
	assert.Equal(t, "test-model", sig.Model)
	assert.NotEmpty(t, sig.ID)
	require.NotNil(t, sig.SuggestedAmountSOL)
	assert.InDelta(t, 0.05, *sig.SuggestedAmountSOL, 1e-9)

	// Generated signals are persisted.
	saved, err := store.GetRecentSignals(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, sig.ID, saved[0].ID)
}

func TestAnalyze_MarkdownFencedJSON(t *testing.T) {
	server := chatServer(t, "Here is my analysis:\n```json\n{\"signal\":\"SELL\",\"confidence\":0.6,\"rationale\":\"momentum fading\"}\n```\n")
	defer server.Close()

	a := testAnalyzer(t, server.URL, memory.NewSignalStore())

	sig, err := a.Analyze(context.Background(), sampleSnapshots(), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.SignalSell, sig.Signal)
	assert.Nil(t, sig.SuggestedAmountSOL)
}

func TestAnalyze_UnparseableOutputDegradesToHold(t *testing.T) {
	server := chatServer(t, "I think the market looks uncertain today, hard to say.")
	defer server.Close()

	a := testAnalyzer(t, server.URL, memory.NewSignalStore())

	sig, err := a.Analyze(context.Background(), sampleSnapshots(), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.SignalHold, sig.Signal)
	assert.InDelta(t, 0.5, sig.Confidence, 1e-9)
	assert.Contains(t, sig.Rationale, "could not be parsed")
}

func TestAnalyze_InvalidValuesFail(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"confidence out of range", `{"signal":"BUY","confidence":1.5,"rationale":"entirely too confident"}`},
		{"unknown signal", `{"signal":"SHORT","confidence":0.5,"rationale":"wrong vocabulary entirely"}`},
		{"rationale too short", `{"signal":"BUY","confidence":0.5,"rationale":"up"}`},
		{"negative amount", `{"signal":"BUY","confidence":0.5,"rationale":"volume picking up","suggested_amount_sol":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, tt.content)
			defer server.Close()

			a := testAnalyzer(t, server.URL, memory.NewSignalStore())

			_, err := a.Analyze(context.Background(), sampleSnapshots(), nil)
			assert.ErrorIs(t, err, ErrAnalysisFailed)
		})
	}
}

func TestAnalyze_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "chatcmpl-1", "object": "chat.completion",
			"choices": []interface{}{},
		})
	}))
	defer server.Close()

	a := testAnalyzer(t, server.URL, memory.NewSignalStore())

	_, err := a.Analyze(context.Background(), sampleSnapshots(), nil)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestAnalyze_APIErrorFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"insufficient quota"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	a := testAnalyzer(t, server.URL, memory.NewSignalStore())

	_, err := a.Analyze(context.Background(), sampleSnapshots(), nil)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestNewAnalyzer_Validation(t *testing.T) {
	_, err := NewAnalyzer(config.OpenAIConfig{Model: "m"}, memory.NewSignalStore())
	assert.Error(t, err, "api key required")

	_, err = NewAnalyzer(config.OpenAIConfig{APIKey: "k"}, memory.NewSignalStore())
	assert.Error(t, err, "model required")
}

func TestBuildPrompt(t *testing.T) {
	errMsg := "slippage exceeded"
	executions := []*domain.TradeExecution{
		{
			Timestamp:    time.Now().UTC(),
			Signal:       domain.ActionSell,
			Status:       domain.StatusFailed,
			InputAmount:  0.05,
			ErrorMessage: &errMsg,
		},
	}

	prompt, err := BuildPrompt(sampleSnapshots(), executions, 0.1)
	require.NoError(t, err)

	assert.Contains(t, prompt, "211.42")
	assert.Contains(t, prompt, "slippage exceeded")
	assert.Contains(t, prompt, "0.100 SOL")
	assert.Contains(t, prompt, `"signal": "BUY" | "SELL" | "HOLD"`)
}
