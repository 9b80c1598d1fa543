// Command verify checks the on-chain outcome of a transaction signature,
// independently of the engine that submitted it. With -wait it also
// subscribes over WebSocket until the cluster reports finality.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"solana-trader/internal/config"
	"solana-trader/internal/domain"
	"solana-trader/internal/solana"
)

// Exit codes: 0 the transaction succeeded on chain, 1 usage or transport
// failure, 2 the transaction failed on chain, 3 the outcome is unknown.
const (
	exitOK      = 0
	exitError   = 1
	exitFailed  = 2
	exitUnknown = 3
)

type verifyResult struct {
	Signature          string   `json:"signature"`
	Found              bool     `json:"found"`
	ConfirmationStatus string   `json:"confirmation_status,omitempty"`
	Slot               uint64   `json:"slot,omitempty"`
	OnChainError       string   `json:"on_chain_error,omitempty"`
	FeeSOL             *float64 `json:"fee_sol,omitempty"`
}

func main() {
	var (
		configPath string
		signature  string
		wait       bool
		timeout    time.Duration
	)
	flag.StringVar(&configPath, "config", "", "config file path (default configs/config.yaml)")
	flag.StringVar(&signature, "signature", "", "transaction signature to verify")
	flag.BoolVar(&wait, "wait", false, "wait for finality over WebSocket when the status is not final yet")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "overall wait deadline")
	flag.Parse()

	if signature == "" {
		fmt.Fprintln(os.Stderr, "usage: verify -signature <base58 signature> [-wait] [-timeout 60s]")
		os.Exit(exitError)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(exitError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL, solana.WithTimeout(cfg.Solana.Timeout))

	status, err := rpc.GetSignatureStatus(ctx, signature)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query signature status: %v\n", err)
		os.Exit(exitError)
	}

	result := verifyResult{Signature: signature}
	if status != nil {
		result.Found = true
		result.ConfirmationStatus = status.ConfirmationStatus
		result.Slot = status.Slot
		result.OnChainError = status.ErrString()
	}

	if !status.Final() && wait {
		note, err := solana.NewSignatureWatcher(cfg.Solana.WSURL).Wait(ctx, signature)
		if err != nil {
			fmt.Fprintf(os.Stderr, "wait for finality: %v\n", err)
			printResult(result)
			os.Exit(exitUnknown)
		}
		result.Found = true
		result.ConfirmationStatus = solana.CommitmentConfirmed
		result.Slot = note.Slot
		result.OnChainError = ""
		if note.Err != nil {
			raw, _ := json.Marshal(note.Err)
			result.OnChainError = string(raw)
		}
	}

	// The fee lives in the transaction meta, which only exists once the
	// transaction landed. Missing meta is not a verification failure.
	if result.Found && result.OnChainError == "" {
		if lamports, err := rpc.GetTransactionFee(ctx, signature); err == nil {
			fee := float64(lamports) / domain.LamportsPerSOL
			result.FeeSOL = &fee
		} else if !errors.Is(err, solana.ErrTransactionNotFound) {
			fmt.Fprintf(os.Stderr, "read transaction fee: %v\n", err)
		}
	}

	printResult(result)

	final := result.ConfirmationStatus == solana.CommitmentConfirmed ||
		result.ConfirmationStatus == solana.CommitmentFinalized
	switch {
	case result.Found && result.OnChainError != "":
		os.Exit(exitFailed)
	case result.Found && final:
		os.Exit(exitOK)
	default:
		os.Exit(exitUnknown)
	}
}

func printResult(result verifyResult) {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "render result: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
