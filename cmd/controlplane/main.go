// Command controlplane runs a solver's settlement core: the auction
// engine, executor, and router wired together behind the control plane,
// with periodic housekeeping and graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orbital-intents/settlement-core/internal/auction"
	"github.com/orbital-intents/settlement-core/internal/controlplane"
	"github.com/orbital-intents/settlement-core/internal/executor"
	"github.com/orbital-intents/settlement-core/internal/profit"
	"github.com/orbital-intents/settlement-core/internal/reputation"
	"github.com/orbital-intents/settlement-core/internal/router"
	"github.com/orbital-intents/settlement-core/internal/state"
	"github.com/orbital-intents/settlement-core/internal/store"
	"github.com/orbital-intents/settlement-core/pkg/config"
	"github.com/orbital-intents/settlement-core/pkg/logger"
	"github.com/orbital-intents/settlement-core/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to the solver config YAML file (overrides SOLVER_CONFIG_FILE)")
	flag.Parse()

	if trimmed := *configPath; trimmed != "" {
		if err := os.Setenv("SOLVER_CONFIG_FILE", trimmed); err != nil {
			log.Fatalf("set SOLVER_CONFIG_FILE: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load solver config: %v", err)
	}

	svcLog := logger.New(cfg.Logging)
	svcLog.WithField("service", cfg.ServiceName).Info("starting settlement core")

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.Init(cfg.ServiceName)
	}

	// The route graph is shared between the auction engine's orbital scorer
	// and the control plane's own quoting/profit-estimation calls: both need
	// to see the same pools and bridges a submitted intent will be routed
	// through.
	graph := &router.Graph{}

	auctionEngine := auction.New(auction.Config{
		Reputation:    reputation.NoopOracle{},
		OrbitalScorer: profit.OrbitalScorerFor(graph),
		BidRateLimit:  50,
		BidBurst:      100,
	})

	exec := executor.New(executor.Config{
		Router:                  graph,
		MaxConcurrentExecutions: cfg.MaxConcurrentExecutions,
		ExecutionTimeout:        cfg.ExecutionTimeout(),
		MEVProtectionEnabled:    cfg.MEVProtectionEnabled,
		Metrics:                 m,
		Logger:                  svcLog,
		ServiceName:             cfg.ServiceName,
	})

	maxIntentSourceAmount, err := cfg.MaxIntentSourceAmount()
	if err != nil {
		log.Fatalf("parse max intent source amount: %v", err)
	}

	// Standalone operation runs against the in-memory backend; a deployment
	// with a real database swaps in its own store.IntentStore here.
	intentState, err := state.NewPersistentState(state.StateConfig{
		Backend:   state.NewMemoryBackend(5 * time.Minute),
		KeyPrefix: "intent:",
	})
	if err != nil {
		log.Fatalf("create intent state: %v", err)
	}

	plane := controlplane.New(controlplane.Config{
		Auction:               auctionEngine,
		Router:                graph,
		Executor:              exec,
		Store:                 store.NewStateStore(intentState),
		MaxIntentSourceAmount: maxIntentSourceAmount,
		Metrics:               m,
		Logger:                svcLog,
		ServiceName:           cfg.ServiceName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := plane.Start(ctx); err != nil {
		svcLog.WithField("error", err).Fatal("start control plane")
	}
	svcLog.Info("control plane running")

	<-ctx.Done()
	svcLog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := plane.Stop(shutdownCtx); err != nil {
		svcLog.WithField("error", err).Error("graceful shutdown failed")
	}
}
