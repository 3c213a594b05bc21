// Command signal_replay runs a strategy over historical candles from a CSV file
// and prints every non-hold decision.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"cryptoDecisionEngine/internal/adapters/logger"
	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/signal"
	"cryptoDecisionEngine/internal/strategy"
	"cryptoDecisionEngine/internal/utils"
)

func main() {
	file := flag.String("file", "", "candle CSV written by fetch_candles")
	kind := flag.String("strategy", string(domain.StrategySmartAdaptive), "strategy to replay")
	window := flag.Int("window", 100, "candles handed to the strategy per step")
	threshold := flag.Float64("threshold", signal.DefaultConfidenceThreshold, "confidence threshold")
	verbose := flag.Bool("v", false, "print reasoning for each decision")
	flag.Parse()

	if *file == "" {
		log.Fatal("FATAL: -file is required")
	}
	appLogger := logger.New(logger.Config{Level: logger.LevelWarn, Format: "console"})

	candles, err := utils.ReadCandlesFromCSV(*file)
	if err != nil {
		appLogger.Fatalf("Error reading candles: %v", err)
	}
	if len(candles) < *window {
		appLogger.Fatalf("Need at least %d candles, file has %d", *window, len(candles))
	}

	source, err := strategy.Resolve(domain.StrategyKind(*kind), strategy.Deps{
		Synthesizer: signal.NewSynthesizer(signal.DefaultConfig()),
		Predictor:   signal.NewHeuristicPredictor(),
		Logger:      appLogger,
	}, domain.BotConfig{ConfidenceThreshold: *threshold})
	if err != nil {
		appLogger.Fatalf("Error resolving strategy: %v", err)
	}

	ctx := context.Background()
	counts := map[domain.Action]int{}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPRICE\tACTION\tCONFIDENCE\tRISK")
	for end := *window; end <= len(candles); end++ {
		slice := candles[end-*window : end]
		last := slice[len(slice)-1]
		sig, err := source.Evaluate(ctx, strategy.Input{Symbol: last.Symbol, Candles: slice})
		if err != nil {
			appLogger.Fatalf("Error evaluating candle %s: %v", last.CloseTime, err)
		}
		counts[sig.Action]++
		if sig.IsHold() {
			continue
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%.2f\t%.2f\n", last.CloseTime.Format("2006-01-02 15:04"), last.Close, sig.Action, sig.Confidence, sig.RiskScore)
		if *verbose {
			fmt.Fprintf(tw, "\t\t%s\n", strings.Join(sig.Reasoning, "; "))
		}
	}
	tw.Flush()

	fmt.Printf("\nstrategy=%s steps=%d buy=%d sell=%d hold=%d\n",
		source.Kind(), len(candles)-*window+1, counts[domain.ActionBuy], counts[domain.ActionSell], counts[domain.ActionHold])
}
