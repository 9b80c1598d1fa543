// Command trade executes one manual trade and prints the resulting
// execution record as JSON. Dry runs need no wallet; live trades require
// the private key in the environment or config.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-trader/internal/app"
	"solana-trader/internal/config"
	"solana-trader/internal/domain"
	"solana-trader/internal/execution"
	"solana-trader/internal/jupiter"
	"solana-trader/internal/logging"
	"solana-trader/internal/retry"
	"solana-trader/internal/risk"
	"solana-trader/internal/solana"
	"solana-trader/internal/wallet"
)

// executionView renders a TradeExecution for the CLI.
type executionView struct {
	ID                   string   `json:"id"`
	Timestamp            string   `json:"timestamp"`
	Signal               string   `json:"signal"`
	InputToken           string   `json:"input_token"`
	OutputToken          string   `json:"output_token"`
	InputAmount          float64  `json:"input_amount"`
	OutputAmount         *float64 `json:"output_amount,omitempty"`
	ExpectedOutput       *float64 `json:"expected_output,omitempty"`
	SlippageBps          int      `json:"slippage_bps"`
	Status               string   `json:"status"`
	TransactionSignature *string  `json:"transaction_signature,omitempty"`
	ErrorMessage         *string  `json:"error_message,omitempty"`
	DurationMs           int64    `json:"duration_ms"`
	FeeSOL               *float64 `json:"fee_sol,omitempty"`
}

func main() {
	var (
		configPath  string
		action      string
		amount      float64
		slippageBps int
		dryRun      bool
	)
	flag.StringVar(&configPath, "config", "", "config file path (default configs/config.yaml)")
	flag.StringVar(&action, "action", "", "trade direction: BUY or SELL")
	flag.Float64Var(&amount, "amount", 0, "trade amount in SOL")
	flag.IntVar(&slippageBps, "slippage-bps", 0, "slippage tolerance in basis points (default from config)")
	flag.BoolVar(&dryRun, "dry-run", false, "quote only, do not submit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if slippageBps == 0 {
		slippageBps = cfg.Trading.DefaultSlippageBps
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.BuildStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("init storage failed", zap.Error(err))
		os.Exit(1)
	}
	defer stores.Close()

	retrier := retry.New(retry.Policy{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		BackoffFactor: cfg.Retry.BackoffFactor,
		BaseDelay:     cfg.Retry.BaseDelay,
		MaxDelay:      cfg.Retry.MaxDelay,
	}, retry.WithLogger(logger))

	jup := jupiter.NewClient(retrier,
		jupiter.WithQuoteURL(cfg.Jupiter.QuoteURL),
		jupiter.WithSwapURL(cfg.Jupiter.SwapURL),
		jupiter.WithHTTPClient(&http.Client{Timeout: cfg.Jupiter.Timeout}),
		jupiter.WithLogger(logger))
	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL, solana.WithTimeout(cfg.Solana.Timeout))

	// Dry runs never sign; the wallet stays optional for them.
	var signer execution.Signer
	if cfg.Solana.PrivateKey != "" {
		w, err := wallet.NewFromBase58(cfg.Solana.PrivateKey)
		if err != nil {
			logger.Error("load wallet failed", zap.Error(err))
			os.Exit(1)
		}
		signer = w
	} else if !dryRun {
		fmt.Fprintln(os.Stderr, "live trades require solana.private_key (TRADER_SOLANA_PRIVATE_KEY)")
		os.Exit(1)
	}

	gate := risk.NewGate(stores.Executions,
		risk.NewBreaker(cfg.Trading.BreakerThresholdPct),
		risk.Limits{
			MaxDailyTrades:  cfg.Trading.MaxDailyTrades,
			MaxHourlyTrades: cfg.Trading.MaxHourlyTrades,
		}, risk.WithLogger(logger))

	executor := execution.NewExecutor(jup, signer,
		solana.NewConfirmer(rpc, retrier, solana.WithConfirmerLogger(logger)),
		gate, stores.Executions,
		execution.Config{
			MaxTradeAmountSOL:   cfg.Trading.MaxTradeAmountSOL,
			ConfirmationTimeout: cfg.Trading.ConfirmationTimeout,
		},
		execution.WithLogger(logger),
		execution.WithFeeReader(rpc))

	rec := executor.ExecuteTrade(ctx, domain.TradeRequest{
		Action:      domain.Action(strings.ToUpper(action)),
		AmountSOL:   amount,
		SlippageBps: slippageBps,
		DryRun:      dryRun,
	})

	printExecution(rec)
	if rec.Status == domain.StatusFailed {
		os.Exit(1)
	}
}

func printExecution(rec *domain.TradeExecution) {
	view := executionView{
		ID:                   rec.ID,
		Timestamp:            rec.Timestamp.Format(time.RFC3339),
		Signal:               string(rec.Signal),
		InputToken:           rec.InputToken,
		OutputToken:          rec.OutputToken,
		InputAmount:          rec.InputAmount,
		OutputAmount:         rec.OutputAmount,
		ExpectedOutput:       rec.ExpectedOutput,
		SlippageBps:          rec.SlippageBps,
		Status:               string(rec.Status),
		TransactionSignature: rec.TransactionSignature,
		ErrorMessage:         rec.ErrorMessage,
		DurationMs:           rec.Duration.Milliseconds(),
		FeeSOL:               rec.FeeSOL,
	}

	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "render record: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
