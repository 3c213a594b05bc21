package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cryptoDecisionEngine/config"
	"cryptoDecisionEngine/internal/adapters/admin"
	"cryptoDecisionEngine/internal/adapters/binanceclient"
	"cryptoDecisionEngine/internal/adapters/kafkapub"
	"cryptoDecisionEngine/internal/adapters/logger"
	"cryptoDecisionEngine/internal/adapters/metrics"
	"cryptoDecisionEngine/internal/adapters/paper"
	"cryptoDecisionEngine/internal/adapters/redisstore"
	"cryptoDecisionEngine/internal/adapters/sqlite"
	"cryptoDecisionEngine/internal/analytics"
	"cryptoDecisionEngine/internal/app"
	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"
	"cryptoDecisionEngine/internal/risk"
	"cryptoDecisionEngine/internal/safety"
	sig "cryptoDecisionEngine/internal/signal"
	"cryptoDecisionEngine/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := binanceClient.SetServerTime(ctx); err != nil {
		appLogger.Warn(ctx, "Failed to synchronize server time, continuing", map[string]interface{}{"error": err.Error()})
	}

	// 5. Paper venue on the local ledger
	paperExec, err := paper.NewExecutor(repo, appLogger, paper.Config{
		StartingBalance: cfg.PaperStartingBalance,
		CommissionRate:  cfg.PaperCommissionRate,
	})
	if err != nil {
		appLogger.Fatalf("FATAL: Failed to initialize paper executor: %v", err)
	}
	venues := map[domain.Mode]app.Venue{
		domain.ModePaper: {Executor: paperExec, Account: paperExec},
	}
	if cfg.RealTradingEnabled {
		venues[domain.ModeReal] = app.Venue{Executor: binanceClient, Account: binanceClient}
	}

	// 6. Telemetry and events
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	var publisher ports.EventPublisher = ports.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		writer, err := kafkapub.NewWriter(kafkapub.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			appLogger.Fatalf("FATAL: Failed to initialize Kafka writer: %v", err)
		}
		kafkaPublisher, err := kafkapub.New(writer, cfg.KafkaTopic, appLogger)
		if err != nil {
			appLogger.Fatalf("FATAL: Failed to initialize Kafka publisher: %v", err)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		appLogger.Info(ctx, "Kafka event publishing enabled", map[string]interface{}{"topic": cfg.KafkaTopic})
	}

	// 7. Safety gate, optionally shared through Redis
	gateOpts := []safety.Option{safety.WithPublisher(publisher), safety.WithMetrics(recorder)}
	var botLock ports.BotLock
	if cfg.RedisAddr != "" {
		redisCfg := redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			LockTTL:  cfg.BotLockTTL,
		}
		client, err := redisstore.Connect(ctx, redisCfg)
		if err != nil {
			appLogger.Fatalf("FATAL: Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		store := redisstore.New(client, redisCfg)
		gateOpts = append(gateOpts, safety.WithStateStore(store))
		botLock = store
		appLogger.Info(ctx, "Redis safety state and bot locks enabled", map[string]interface{}{"addr": cfg.RedisAddr})
	}
	gate, err := safety.NewGate(cfg.Safety, appLogger, gateOpts...)
	if err != nil {
		appLogger.Fatalf("FATAL: Failed to initialize safety gate: %v", err)
	}
	if err := gate.Restore(ctx); err != nil {
		appLogger.Error(ctx, err, "Failed to restore safety state, starting fresh")
	}

	// 8. Risk manager with periodic metric refresh
	riskCfg := risk.DefaultRiskConfig()
	riskCfg.RiskPerTrade = cfg.RiskPerTrade
	riskCfg.MaxPositionSize = cfg.MaxPositionSize
	riskCfg.MaxLeverage = cfg.MaxLeverage
	riskManager := risk.NewRiskManager(riskCfg, appLogger)
	go riskManager.RunPeriodicUpdates(ctx, cfg.RiskUpdateInterval, func(ctx context.Context) ([]float64, error) {
		candles, err := binanceClient.FetchCandles(ctx, cfg.RiskReferenceSymbol, cfg.Timeframe, cfg.CandleLimit)
		if err != nil {
			return nil, err
		}
		return domain.Closes(candles), nil
	})

	// 9. Orchestrator and supervisor
	orchestrator, err := app.NewOrchestrator(app.Deps{
		Bots:       repo,
		Trades:     repo,
		MarketData: binanceClient,
		Venues:     venues,
		Gate:       gate,
		Risk:       riskManager,
		Learner:    analytics.NewLearner(repo, riskManager, appLogger, cfg.LearningWindow),
		Publisher:  publisher,
		Metrics:    recorder,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Fatalf("FATAL: Failed to initialize orchestrator: %v", err)
	}

	seedBots(ctx, cfg, repo, appLogger)

	supervisor, err := app.NewSupervisor(repo, orchestrator, strategy.Deps{
		Synthesizer: sig.NewSynthesizer(sig.DefaultConfig()),
		Predictor:   sig.NewHeuristicPredictor(),
		Logger:      appLogger,
	}, app.SupervisorConfig{Interval: cfg.CycleInterval, Lock: botLock}, appLogger)
	if err != nil {
		appLogger.Fatalf("FATAL: Failed to initialize supervisor: %v", err)
	}

	// 10. Admin surface
	adminServer := admin.NewServer(admin.Config{
		Addr:     cfg.AdminAddr,
		Token:    cfg.AdminToken,
		Gatherer: registry,
	}, gate, supervisor, appLogger)
	go func() {
		if err := adminServer.Start(); err != nil {
			appLogger.Error(ctx, err, "Admin server stopped")
		}
	}()

	// 11. Run until signalled
	if err := supervisor.Start(ctx); err != nil {
		appLogger.Fatalf("FATAL: Failed to start supervisor: %v", err)
	}
	<-ctx.Done()
	appLogger.Info(context.Background(), "Shutdown signal received, waiting for running cycles")

	supervisor.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, err, "Admin server shutdown failed")
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}

// seedBots upserts the definitions from the bots file. A bot already known keeps its
// stored status so admin activation survives restarts.
func seedBots(ctx context.Context, cfg *config.Config, repo ports.BotRepository, l ports.Logger) {
	bots, err := config.LoadBots(cfg.BotsFile, cfg.BotDefaults())
	if errors.Is(err, os.ErrNotExist) {
		l.Info(ctx, "No bots file, using stored bot definitions", map[string]interface{}{"path": cfg.BotsFile})
		return
	}
	if err != nil {
		l.Error(ctx, err, "Bots file rejected, using stored bot definitions", map[string]interface{}{"path": cfg.BotsFile})
		return
	}

	for _, bot := range bots {
		if bot.Mode == domain.ModeReal && !cfg.RealTradingEnabled {
			l.Warn(ctx, "Real-mode bot loaded while real trading is disabled; its cycles will fail", map[string]interface{}{"botID": bot.ID})
		}
		existing, err := repo.FindBotByID(ctx, bot.ID)
		if err != nil {
			l.Error(ctx, err, "Failed to look up bot", map[string]interface{}{"botID": bot.ID})
			continue
		}
		if existing != nil {
			bot.Status = existing.Status
		}
		if err := repo.SaveBot(ctx, bot); err != nil {
			l.Error(ctx, err, "Failed to save bot", map[string]interface{}{"botID": bot.ID})
		}
	}
	l.Info(ctx, "Bot definitions loaded", map[string]interface{}{"count": len(bots), "path": cfg.BotsFile})
}
