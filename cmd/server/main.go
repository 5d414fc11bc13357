// Package main runs the trading service: RPC endpoint selection, token
// discovery, analysis, order execution and position tracking, plus the
// HTTP API and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-trading-bot/internal/api"
	"solana-trading-bot/internal/config"
	"solana-trading-bot/internal/dexscreener"
	"solana-trading-bot/internal/engine"
	"solana-trading-bot/internal/evaluator"
	"solana-trading-bot/internal/jupiter"
	"solana-trading-bot/internal/ledger"
	"solana-trading-bot/internal/observability"
	"solana-trading-bot/internal/rpcpool"
	"solana-trading-bot/internal/scanner"
	"solana-trading-bot/internal/solana"
	"solana-trading-bot/internal/storage"
	chstore "solana-trading-bot/internal/storage/clickhouse"
	"solana-trading-bot/internal/storage/memory"
	"solana-trading-bot/internal/storage/migrations"
	pgstore "solana-trading-bot/internal/storage/postgres"
	"solana-trading-bot/internal/tracker"
)

// allStores holds all storage implementations.
type allStores struct {
	tokens       storage.TokenStore
	analyses     storage.AnalysisStore
	transactions storage.TransactionStore
	prices       storage.PriceHistoryStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Flags override the environment for the knobs that change most
	// often between runs.
	apiAddr := flag.String("api-addr", cfg.APIAddr, "HTTP API listen address")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics HTTP address")
	simulate := flag.Bool("simulate", cfg.SimulationMode, "Run without submitting real transactions")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)
	logger.Printf("Configured RPC endpoints: %d", len(cfg.Endpoints))

	if !*simulate && cfg.WalletPubkey == "" {
		logger.Fatal("WALLET_PUBKEY is required unless running with --simulate")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	prober := rpcpool.NewHealthProber(cfg.RequestTimeout)
	selector, err := rpcpool.NewSelector(cfg.Endpoints, prober, cfg.CacheTTL)
	if err != nil {
		logger.Fatalf("Failed to create endpoint selector: %v", err)
	}

	led, err := createLedger(cfg, *simulate, selector, logger)
	if err != nil {
		logger.Fatalf("Failed to create ledger client: %v", err)
	}

	swapper := jupiter.NewClient()
	discovery := dexscreener.NewClient(
		dexscreener.WithMaxRetries(uint64(cfg.RetryAttempts)),
	)

	eng := engine.New(engine.Options{
		Tokens:             stores.tokens,
		Analyses:           stores.analyses,
		Transactions:       stores.transactions,
		Evaluator:          evaluator.New(),
		Swapper:            swapper,
		Ledger:             led,
		Metrics:            metrics,
		MaxDailyInvestment: cfg.MaxDailyInvestment,
		FundingMint:        cfg.FundingMint,
		WalletPubkey:       cfg.WalletPubkey,
		Logger:             logger,
	})

	trk := tracker.New(tracker.Options{
		Tokens:        stores.tokens,
		Transactions:  stores.transactions,
		Swapper:       swapper,
		Ledger:        led,
		Metrics:       metrics,
		FundingMint:   cfg.FundingMint,
		WalletPubkey:  cfg.WalletPubkey,
		CheckInterval: cfg.PositionCheckInterval,
		Logger:        logger,
	})

	scn := scanner.New(scanner.Options{
		Tokens:       stores.tokens,
		Prices:       stores.prices,
		Discovery:    discovery,
		Metrics:      metrics,
		Chain:        dexscreener.ChainSolana,
		ScanInterval: cfg.ScanInterval,
		Logger:       logger,
	})

	apiServer := api.New(api.Options{
		Selector: selector,
		Ledger:   led,
		Engine:   eng,
		Tracker:  trk,
		Scanner:  scn,
		Tokens:   stores.tokens,
		Prices:   stores.prices,
		Logger:   logger,
		Metrics:  metrics,
	})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	// Background loops
	go scn.Run(ctx)
	go trk.Run(ctx)
	go runTradingLoop(ctx, eng, cfg.ScanInterval, logger)

	// HTTP servers
	go serveHTTP(ctx, *metricsAddr, metricsMux(), logger)
	serveHTTP(ctx, *apiAddr, apiServer.Handler(), logger)

	logger.Println("Shutdown complete")
}

// runTradingLoop runs a trading cycle on the scan cadence, offset so the
// scanner has a chance to store fresh tokens first.
func runTradingLoop(ctx context.Context, eng *engine.Engine, interval time.Duration, logger *log.Logger) {
	if interval <= 0 {
		interval = config.DefaultScanInterval
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(interval / 2):
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		result := eng.RunTradingCycle(ctx)
		logger.Printf("Trading cycle done: %d analyzed, %d bought", result.Analyzed, result.Bought)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// metricsMux builds the metrics-only handler.
func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// serveHTTP runs an HTTP server until ctx is cancelled.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) {
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP server shutdown on %s: %v", addr, err)
		}
	}()

	logger.Printf("HTTP server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server on %s: %v", addr, err)
	}
}

// createLedger picks the simulated or live transaction submitter.
func createLedger(cfg *config.Config, simulate bool, selector *rpcpool.Selector, logger *log.Logger) (ledger.Client, error) {
	if simulate {
		return ledger.NewSimulated(logger), nil
	}

	var confirmer *solana.Confirmer
	if cfg.WSEndpoint != "" {
		confirmer = solana.NewConfirmer(cfg.WSEndpoint, nil)
	} else {
		logger.Println("SOLANA_WS_ENDPOINT not set, transactions will not be confirmed")
	}

	return ledger.NewLive(selector, confirmer, cfg.WalletPubkey, logger,
		solana.WithTimeout(cfg.RequestTimeout),
		solana.WithMaxRetries(cfg.RetryAttempts),
	)
}

// createStores creates all required stores. Without DSNs (or with
// --use-memory) everything lives in memory and is lost on restart.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool, logger *log.Logger) (*allStores, func(), error) {
	if useMemory || cfg.PostgresDSN == "" {
		if !useMemory {
			logger.Println("POSTGRES_DSN not set, falling back to in-memory storage")
		}
		stores := &allStores{
			tokens:       memory.NewTokenStore(),
			analyses:     memory.NewAnalysisStore(),
			transactions: memory.NewTransactionStore(),
			prices:       memory.NewPriceHistoryStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &allStores{
		tokens:       pgstore.NewTokenStore(pool),
		analyses:     pgstore.NewAnalysisStore(pool),
		transactions: pgstore.NewTransactionStore(pool),
	}
	cleanup := func() { pool.Close() }

	// Price history is an optional analytics concern; ClickHouse holds
	// the timeseries when configured.
	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		stores.prices = chstore.NewPriceHistoryStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	} else {
		logger.Println("CLICKHOUSE_DSN not set, keeping price history in memory")
		stores.prices = memory.NewPriceHistoryStore()
	}

	return stores, cleanup, nil
}
