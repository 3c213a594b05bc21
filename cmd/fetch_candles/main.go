package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"cryptoDecisionEngine/config"
	"cryptoDecisionEngine/internal/adapters/binanceclient"
	"cryptoDecisionEngine/internal/adapters/logger"
	"cryptoDecisionEngine/internal/utils"
)

func main() {
	symbol := flag.String("symbol", "ETHUSDT", "trading symbol")
	interval := flag.String("interval", "1h", "candle timeframe")
	months := flag.Int("months", 3, "history length in months")
	out := flag.String("out", "", "output CSV path (default data/<symbol>_<interval>_<start>_to_<end>.csv)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, -*months, 0)

	ctx := context.Background()
	appLogger.Info(ctx, "Fetching candles", map[string]interface{}{
		"symbol":   *symbol,
		"interval": *interval,
		"start":    start.Format(time.RFC3339),
		"end":      end.Format(time.RFC3339),
	})
	candles, err := binanceClient.FetchCandleRange(ctx, *symbol, *interval, start, end)
	if err != nil {
		appLogger.Fatalf("Error fetching candles: %v", err)
	}
	appLogger.Info(ctx, "Fetched candles", map[string]interface{}{"count": len(candles)})

	filename := *out
	if filename == "" {
		filename = fmt.Sprintf("data/%s_%s_%s_to_%s.csv", *symbol, *interval, start.Format("20060102"), end.Format("20060102"))
	}
	if err := utils.WriteCandlesToCSV(candles, filename); err != nil {
		appLogger.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})
}
