package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/cfg"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/dataset"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/drift"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/evaluate"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/gbt"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/storage"
)

func main() {
	var (
		dataPath   = flag.String("data", "", "Path to a CSV/JSONL dataset or a BoltDB data directory")
		datasetURL = flag.String("url", "", "Download the dataset from this URL instead of reading -data")
		dataFormat = flag.String("format", "auto", "Data format: auto, csv, jsonl, boltdb")
		outputPath = flag.String("output", "evaluation", "Output directory for reports")
		name       = flag.String("name", "baseline", "Name of the evaluation run")
		compare    = flag.String("compare", "", "Run an A/B comparison against this second strategy (push or replace)")
		curveEvery = flag.Int("curve-interval", 100, "Sample the accuracy curve every N flows (0 disables)")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	_ = godotenv.Load()
	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	path := resolveDataset(&config, *dataPath, *datasetURL)
	loader := loadFlows(path, *dataFormat)
	if loader.Count() == 0 {
		log.Fatal().Str("path", path).Msg("No labeled flows in dataset")
	}

	ctx := context.Background()

	if *compare != "" {
		runComparison(ctx, &config, loader, *name, *compare, *outputPath)
		return
	}

	learner := buildLearner(&config, config.Learner.UpdateStrategy)
	engine := evaluate.NewEngine(loader, learner, buildExtractor(&config), *name)
	engine.SetCurveInterval(*curveEvery)

	result, err := engine.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}

	reporter := evaluate.NewReporter(result, *outputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Error().Err(err).Msg("Failed to generate reports")
	}
	reporter.PrintSummary()

	log.Info().Str("output", *outputPath).Msg("Evaluation completed")
}

// resolveDataset returns a local dataset path, downloading it first when a
// URL is given on the command line or in the configuration.
func resolveDataset(config *cfg.Settings, dataPath, datasetURL string) string {
	url := datasetURL
	if url == "" && dataPath == "" {
		url = config.Dataset.URL
	}
	if url != "" {
		fetcher := dataset.NewFetcher(config.Dataset.CacheDir, config.Dataset.Timeout)
		path, err := fetcher.Fetch(url)
		if err != nil {
			log.Fatal().Err(err).Str("url", url).Msg("Dataset download failed")
		}
		return path
	}
	if dataPath == "" {
		dataPath = config.System.DataPath
	}
	if dataPath == "" {
		log.Fatal().Msg("No dataset: set -data, -url, or DATASET_URL")
	}
	return dataPath
}

// loadFlows builds a loader for the dataset at path.
func loadFlows(path, format string) *evaluate.Loader {
	loader := evaluate.NewLoader()

	var err error
	switch format {
	case "csv":
		err = loader.LoadFromCSV(path)
	case "jsonl":
		err = loader.LoadFromJSONL(path)
	case "boltdb":
		err = loadFromStore(loader, path)
	case "auto":
		err = autoLoad(loader, path)
	default:
		log.Fatal().Str("format", format).Msg("Unknown data format")
	}
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to load dataset")
	}
	return loader
}

func autoLoad(loader *evaluate.Loader, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if info.IsDir() {
		return loadFromStore(loader, path)
	}

	switch {
	case strings.HasSuffix(path, ".csv"):
		return loader.LoadFromCSV(path)
	case strings.HasSuffix(path, ".jsonl") || strings.HasSuffix(path, ".json"):
		return loader.LoadFromJSONL(path)
	default:
		return fmt.Errorf("cannot determine file format for: %s", path)
	}
}

func loadFromStore(loader *evaluate.Loader, path string) error {
	store, err := storage.New(path)
	if err != nil {
		return fmt.Errorf("failed to open flow store: %w", err)
	}
	defer store.Close()
	return loader.LoadFromBoltDB(store)
}

// buildLearner constructs a classifier from the configuration with the given
// update strategy.
func buildLearner(config *cfg.Settings, strategy string) *boost.Classifier {
	learnerCfg := config.Learner.BoostConfig()
	learnerCfg.UpdateStrategy = strategy

	var monitors boost.MonitorFactory
	if learnerCfg.DetectDrift {
		delta := config.Learner.DriftDelta
		monitors = func() boost.DriftMonitor { return drift.New(delta) }
	}

	learner, err := boost.New(learnerCfg, gbt.NewEngine(), monitors)
	if err != nil {
		log.Fatal().Err(err).Str("strategy", strategy).Msg("Failed to build learner")
	}
	return learner
}

func buildExtractor(config *cfg.Settings) *features.Extractor {
	return features.NewExtractor(features.ExtractorConfig{
		RateWindow: config.Features.RateWindow,
		PortSize:   config.Features.PortSize,
		FlagSize:   config.Features.FlagSize,
		IdleTTL:    config.Features.IdleTTL,
	})
}

// runComparison evaluates the configured strategy against a challenger on the
// same flow sequence and reports the McNemar verdict.
func runComparison(ctx context.Context, config *cfg.Settings, loader *evaluate.Loader, name, challengerStrategy, outputPath string) {
	champion := evaluate.Candidate{
		Name:      fmt.Sprintf("%s-%s", name, config.Learner.UpdateStrategy),
		Learner:   buildLearner(config, config.Learner.UpdateStrategy),
		Extractor: buildExtractor(config),
	}
	challenger := evaluate.Candidate{
		Name:      fmt.Sprintf("%s-%s", name, challengerStrategy),
		Learner:   buildLearner(config, challengerStrategy),
		Extractor: buildExtractor(config),
	}

	start := time.Now()
	cmp, err := evaluate.Compare(ctx, loader, champion, challenger)
	if err != nil {
		log.Fatal().Err(err).Msg("Comparison failed")
	}

	if err := evaluate.WriteComparison(cmp, outputPath); err != nil {
		log.Error().Err(err).Msg("Failed to write comparison report")
	}

	fmt.Println("\n=== A/B COMPARISON ===")
	fmt.Printf("Flows: %d (%.1fs)\n", cmp.A.Flows, time.Since(start).Seconds())
	fmt.Printf("%s: accuracy %.4f, F1 %.4f\n", cmp.A.Name, cmp.A.Accuracy, cmp.A.F1)
	fmt.Printf("%s: accuracy %.4f, F1 %.4f\n", cmp.B.Name, cmp.B.Accuracy, cmp.B.F1)
	fmt.Printf("McNemar chi-squared: %.4f (significant: %v)\n", cmp.McNemarChi2, cmp.Significant)
	fmt.Printf("Winner: %s\n", cmp.Winner)
	fmt.Println("======================")

	log.Info().Str("output", outputPath).Msg("Comparison completed")
}
