package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"autotrader/internal/api"
	"autotrader/internal/engine"
	"autotrader/internal/events"
	"autotrader/internal/executor"
	"autotrader/internal/market"
	"autotrader/internal/monitor"
	"autotrader/internal/order"
	"autotrader/internal/reconciliation"
	"autotrader/internal/scheduler"
	"autotrader/internal/state"
	"autotrader/internal/strategy"
	"autotrader/pkg/broker"
	"autotrader/pkg/broker/alpaca"
	"autotrader/pkg/config"
	"autotrader/pkg/crypto"
	"autotrader/pkg/db"
	"autotrader/pkg/nodeid"
)

// simInitialBalance seeds the simulated executor when no real broker is wired.
const simInitialBalance = 100_000

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ config load failed: %v", err)
	}

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "dev"
	}

	log.Printf("🚀 autotrader %s starting: data=%s broker=%s trading=%v",
		buildVersion, cfg.DataSource, cfg.Broker, cfg.TradingEnabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("❌ database init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("❌ database migrations failed: %v", err)
	}
	log.Printf("✅ database ready at %s", cfg.DBPath)

	// Execution state seeded from DB
	registry := state.NewRegistry(database)
	if err := registry.Load(ctx); err != nil {
		log.Fatalf("❌ execution state load failed: %v", err)
	}

	// Credential encryption. MASTER_KEY takes comma-separated keys,
	// oldest first, so rotated values stay readable.
	var keys *crypto.Keyring
	if cfg.MasterKey != "" {
		keys, err = crypto.NewKeyring(strings.Split(cfg.MasterKey, ",")...)
		if err != nil {
			log.Fatalf("❌ master key invalid: %v", err)
		}
		log.Printf("🔐 credential encryption enabled, key v%d", keys.CurrentVersion())
	} else {
		log.Println("⚠️ MASTER_KEY not set, broker credential storage disabled")
	}

	// Broker credentials: environment first, sealed settings as fallback
	apiKey, apiSecret := cfg.AlpacaAPIKey, cfg.AlpacaAPISecret
	if apiKey == "" && keys != nil {
		if sealed, err := database.GetSetting(ctx, api.SettingBrokerCredentials); err == nil && sealed != "" {
			creds, err := keys.OpenCredentials(sealed)
			if err != nil {
				log.Printf("⚠️ stored broker credentials unreadable: %v", err)
			} else {
				apiKey, apiSecret = creds.APIKey, creds.APISecret
				log.Println("🔐 broker credentials loaded from settings")
			}
		}
	}

	var alpacaClient *alpaca.Client
	if cfg.DataSource == "alpaca" || cfg.Broker == "alpaca" {
		if apiKey == "" || apiSecret == "" {
			log.Fatal("❌ alpaca selected but no API credentials configured")
		}
		alpacaClient = alpaca.NewClient(apiKey, apiSecret, cfg.AlpacaPaper)
	}

	// Market data
	var provider market.DataProvider
	switch cfg.DataSource {
	case "alpaca":
		provider = market.NewAlpacaProvider(alpacaClient)
		log.Printf("📊 market data: alpaca (paper=%v)", cfg.AlpacaPaper)
	default:
		provider = market.NewSyntheticProvider(time.Now().UnixNano())
		log.Println("📊 market data: synthetic")
	}
	if cfg.BarCacheTTL > 0 {
		provider = market.NewCachedProvider(provider, cfg.BarCacheTTL)
	}

	// Order routing
	var venue broker.Broker
	var orders order.Executor
	switch cfg.Broker {
	case "alpaca":
		venue = alpacaClient
		orders = order.NewBrokerExecutor(alpacaClient)
		log.Println("🏦 broker: alpaca")
	default:
		orders = order.NewSimExecutor(simInitialBalance)
		log.Println("🏦 broker: simulated fills")
	}
	if !cfg.TradingEnabled {
		log.Println("⏸️ trading disabled, every cycle runs signal-only")
	}

	metrics := monitor.NewMetrics()

	runner := executor.New(executor.Config{
		Data:           provider,
		Orders:         orders,
		Registry:       registry,
		DB:             database,
		Bus:            bus,
		Metrics:        metrics,
		DataTimeout:    cfg.DataTimeout,
		OrderTimeout:   cfg.OrderTimeout,
		TradingEnabled: cfg.TradingEnabled,
	})

	calendar, err := market.NewCalendar(cfg.MarketTimezone, cfg.MarketOpen, cfg.MarketClose)
	if err != nil {
		log.Fatalf("❌ market calendar: %v", err)
	}

	sched := scheduler.New(scheduler.Config{
		Interval:   cfg.TickInterval,
		Workers:    cfg.WorkerPoolSize,
		Calendar:   calendar,
		Registry:   registry,
		Strategies: database,
		Runner:     runner,
		DB:         database,
		Bus:        bus,
		Metrics:    metrics,
	})

	eng := engine.NewImpl(engine.Config{
		Registry: registry,
		DB:       database,
		Runner:   runner,
		Sched:    sched,
		Bus:      bus,
		Metrics:  metrics,
		Meta: engine.Meta{
			Version:        buildVersion,
			DataSource:     cfg.DataSource,
			Broker:         cfg.Broker,
			TradingEnabled: cfg.TradingEnabled,
			NodeID:         nodeid.Fingerprint(),
		},
	})

	// Declarative strategies, upserted before the first tick
	if configs, err := strategy.LoadConfig(cfg.StrategiesConfig); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("⚠️ strategy config %s: %v", cfg.StrategiesConfig, err)
		}
	} else if n, err := strategy.SyncConfigToDB(ctx, database, configs); err != nil {
		log.Printf("⚠️ strategy sync: %v", err)
	} else {
		log.Printf("✅ %d strategies synced from %s", n, cfg.StrategiesConfig)
	}

	// Position reconciliation: one pass at boot, periodic when configured
	recon := reconciliation.New(reconciliation.Config{
		Venue:      venue,
		Registry:   registry,
		Strategies: database,
		Interval:   cfg.ReconcileInterval,
		AutoSync:   cfg.ReconcileAutoSync,
	})
	if _, err := recon.Reconcile(ctx); err != nil {
		log.Printf("⚠️ startup reconciliation failed: %v", err)
	}
	if cfg.ReconcileInterval > 0 {
		recon.Start(ctx)
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("❌ scheduler start failed: %v", err)
	}

	server := api.NewServer(api.Config{
		Addr:      ":" + cfg.Port,
		Engine:    eng,
		DB:        database,
		Bus:       bus,
		Metrics:   metrics,
		Keys:      keys,
		JWTSecret: cfg.JWTSecret,
	})
	go func() {
		log.Printf("🚀 API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			log.Fatalf("❌ API server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("🛑 shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ API shutdown: %v", err)
	}
	sched.Stop()
	cancel()
	bus.Close()
	log.Println("✅ shutdown complete")
}
