// Command trader runs the trading daemon: the market data loop, the LLM
// analysis loop, optional signal-driven execution, and the monitoring
// endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-trader/internal/app"
	"solana-trader/internal/config"
	"solana-trader/internal/logging"
	"solana-trader/internal/observability"
)

const shutdownGrace = 30 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "config file path (default configs/config.yaml)")
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

	metrics := observability.NewMetrics("")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.BuildStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("init storage failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("closing storage failed", zap.Error(err))
		}
	}()

	application, err := app.New(cfg, logger, metrics, stores)
	if err != nil {
		logger.Error("init application failed", zap.Error(err))
		os.Exit(1)
	}

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()

		// A second signal, or a stuck shutdown, forces exit.
		select {
		case sig = <-sigCh:
			logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(shutdownGrace):
			logger.Warn("graceful shutdown timed out, forcing exit", zap.Duration("grace", shutdownGrace))
			os.Exit(1)
		case <-done:
		}
	}()

	err = application.Run(ctx)
	close(done)

	if err != nil {
		logger.Error("trader exited with error", zap.Error(err))
		os.Exit(1)
	}
}
