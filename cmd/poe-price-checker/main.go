package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/config"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/metrics"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/currency"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/ratelimit"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/reconcile"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/resolver"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/sources"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/server/api"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/version"

	// Import sources to register them
	_ "github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/sources/ninja"
	_ "github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/sources/trade"
)

var (
	configFile = flag.String("config", "", "Path to configuration file (default: XDG config dir)")
	showVer    = flag.Bool("version", false, "Show version and exit")
	lookupItem = flag.String("lookup", "", "Price a single item and exit")
	lookupCat  = flag.String("category", "Currency", "Category for -lookup")
	leagueFlag = flag.String("league", "", "Override the configured league")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("poe-price-checker version %s\n", version.Version)
		os.Exit(0)
	}

	// A .env file can carry PRICECHECK_* overrides; missing is fine.
	_ = godotenv.Load()

	path := *configFile
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to locate config: %v\n", err)
			os.Exit(1)
		}
	}

	// Load configuration
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Override league from command line
	if *leagueFlag != "" {
		cfg.League = *leagueFlag
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	if *lookupItem != "" {
		if err := runLookup(cfg, logger, *lookupItem, *lookupCat); err != nil {
			fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("Starting poe-price-checker", "version", version.Version, "league", cfg.League)

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- runDaemon(ctx, cfg, logger)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error("Daemon failed", "error", err)
			cancel()
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down gracefully...")
	select {
	case <-errChan:
	case <-shutdownCtx.Done():
	}
	logger.Info("Shutdown complete")
}

// runDaemon wires the resolution service into the HTTP and WebSocket
// servers and blocks until the context is canceled.
func runDaemon(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	svc, err := buildService(cfg, logger)
	if err != nil {
		return err
	}

	converter := currency.NewConverter()
	go converter.Run(ctx, cfg.Display.DivineRefresh.ToDuration(), divineRateSource(svc), logger)

	server := api.NewServer(cfg.Server.HTTP, svc, converter, cfg.Server.ResolveTimeout.ToDuration(), logger)

	// Start WebSocket server if enabled
	var wsServer *api.WebSocketServer
	if cfg.Server.WebSocket.Enabled {
		wsServer = api.NewWebSocketServer(cfg.Server.WebSocket.Addr, logger)
		server.SetWebSocketServer(wsServer)

		go func() {
			if err := wsServer.Start(ctx); err != nil {
				logger.Error("WebSocket server error", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "error", err)
		}
		if wsServer != nil {
			wsServer.Stop()
		}
		svc.Close()
	}()

	return server.Start()
}

// runLookup prices one item and prints the answer. This is the one-shot
// mode used from scripts and for smoke-testing a configuration.
func runLookup(cfg *config.Config, logger *logging.Logger, item, category string) error {
	svc, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	timeout := cfg.Server.ResolveTimeout.ToDuration()

	converter := currency.NewConverter()
	rateCtx, rateCancel := context.WithTimeout(context.Background(), timeout)
	if rate, ok := divineRateSource(svc)(rateCtx); ok {
		converter.SetDivineRate(rate)
	}
	rateCancel()

	query := pricing.PriceQuery{
		ItemKey:  pricing.NormalizeItemName(item),
		Category: pricing.Category(category),
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := svc.Resolve(ctx, query)
	if err != nil {
		return err
	}

	if result.Confidence == pricing.ConfidenceNone {
		fmt.Printf("%s: no price data\n", item)
		return nil
	}

	fmt.Printf("%s: %s [%s] %s\n", item, converter.Format(result.ChaosValue), result.Confidence, result.Label)
	return nil
}

// buildService constructs the source clients and the resolution service
// from configuration. All sources share one limiter so per-source spacing
// is enforced no matter which code path fetches.
func buildService(cfg *config.Config, logger *logging.Logger) (*resolver.Service, error) {
	limiter := ratelimit.New(cfg.RateLimit.DefaultInterval.ToDuration())

	primaryCfg := cfg.PrimarySource()
	primary, err := buildSource(cfg, primaryCfg, limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("primary source %s.%s: %w", primaryCfg.Type, primaryCfg.Name, err)
	}

	var secondary sources.Client
	if sc := cfg.SecondarySource(); sc != nil {
		secondary, err = buildSource(cfg, sc, limiter, logger)
		if err != nil {
			logger.Warn("Failed to create secondary source, continuing with primary only",
				"type", sc.Type, "name", sc.Name, "error", err)
			secondary = nil
		}
	}

	reconciler := reconcile.New(cfg.Reconcile.Threshold, logger)
	return resolver.New(primary, secondary, reconciler, logger), nil
}

// buildSource creates one source client from its config block. Shared
// infrastructure and engine-level defaults ride in on the config map so
// sources do not build their own.
func buildSource(cfg *config.Config, sc *config.SourceConfig, limiter *ratelimit.Limiter, logger *logging.Logger) (sources.Client, error) {
	if sc.Config == nil {
		sc.Config = make(map[string]interface{})
	}
	sc.Config["logger"] = logger
	sc.Config["limiter"] = limiter
	if _, ok := sc.Config["league"]; !ok {
		sc.Config["league"] = cfg.League
	}
	if _, ok := sc.Config["max_attempts"]; !ok {
		sc.Config["max_attempts"] = cfg.Retry.MaxAttempts
	}
	if _, ok := sc.Config["initial_backoff"]; !ok {
		sc.Config["initial_backoff"] = cfg.Retry.InitialBackoff.ToDuration()
	}
	if _, ok := sc.Config["max_sleep"]; !ok {
		sc.Config["max_sleep"] = cfg.Retry.MaxSleep.ToDuration()
	}

	// The limiter keys on the instance name the client will report.
	name := sources.GetString(sc.Config, "name", sc.Name)
	if interval := sources.GetDuration(sc.Config, "min_interval", 0); interval > 0 {
		limiter.SetInterval(name, interval)
	}

	logger.Info("Initializing source", "type", sc.Type, "name", sc.Name, "role", sc.Role)
	return sources.Create(sc.Type, sc.Name, sc.Config)
}

// divineRateSource resolves the divine orb price through the engine itself,
// so the display rate reflects the same sources as every other answer.
func divineRateSource(svc *resolver.Service) currency.RateSource {
	query := pricing.PriceQuery{
		ItemKey:  pricing.BuildItemKey(pricing.ItemFields{Name: "Divine Orb", Rarity: "Currency"}),
		Category: pricing.CategoryCurrency,
	}

	return func(ctx context.Context) (float64, bool) {
		result, err := svc.Resolve(ctx, query)
		if err != nil || result.Confidence == pricing.ConfidenceNone || result.ChaosValue <= 0 {
			return 0, false
		}
		return result.ChaosValue, true
	}
}
