package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"solana-trader/internal/observability"
)

// runMonitor serves the health, metrics, and status endpoints until ctx
// is canceled.
func (a *App) runMonitor(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", a.handleStatus)

	srv := &http.Server{Addr: a.cfg.Metrics.ListenAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("monitor endpoint listening", zap.String("addr", a.cfg.Metrics.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusResponse is the JSON payload of the /status endpoint.
type statusResponse struct {
	Status          string     `json:"status"`
	Uptime          string     `json:"uptime"`
	Collections     int        `json:"collections"`
	CollectionErrs  int        `json:"collection_errors"`
	Analyses        int        `json:"analyses"`
	TradesRun       int        `json:"trades_run"`
	LastPriceUSD    *float64   `json:"last_price_usd,omitempty"`
	LastCollection  *time.Time `json:"last_collection,omitempty"`
	LastSignal      *string    `json:"last_signal,omitempty"`
	LastConfidence  *float64   `json:"last_confidence,omitempty"`
	BreakerActive   bool       `json:"circuit_breaker_active"`
	AutoExecute     bool       `json:"auto_execute"`
	DryRun          bool       `json:"dry_run"`
	AnalysisEnabled bool       `json:"analysis_enabled"`
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	resp := statusResponse{
		Status:          "running",
		Uptime:          time.Since(a.started).Round(time.Second).String(),
		Collections:     a.collections,
		CollectionErrs:  a.collectionErrs,
		Analyses:        a.analyses,
		TradesRun:       a.tradesRun,
		BreakerActive:   a.breaker != nil && a.breaker.Active(),
		AutoExecute:     a.executor != nil,
		DryRun:          a.cfg.Scheduler.DryRun,
		AnalysisEnabled: a.analyzer != nil,
	}
	if n := len(a.recent); n > 0 {
		last := a.recent[n-1]
		resp.LastPriceUSD = &last.PriceUSD
		resp.LastCollection = &last.Timestamp
	}
	if a.lastSignal != nil {
		kind := string(a.lastSignal.Signal)
		resp.LastSignal = &kind
		resp.LastConfidence = &a.lastSignal.Confidence
	}
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
