// Evolve runs a single evolution locally, persists its best solution and
// prints the per-generation statistics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/evolver/internal/app"
	"github.com/ajitpratap0/evolver/internal/config"
	"github.com/ajitpratap0/evolver/internal/metrics"
	"github.com/ajitpratap0/evolver/internal/report"
	"github.com/ajitpratap0/evolver/pkg/evolution"
)

var (
	configPath  = flag.String("config", "", "Path to config file")
	generations = flag.Int("generations", 0, "Number of generations (default from config)")
	popSize     = flag.Int("pop-size", 0, "Population size (default from config)")
	seed        = flag.Int64("seed", 0, "Random seed, 0 = config value")
	outputFile  = flag.String("output", "", "Also export the best solution to this file")
	format      = flag.String("format", "yaml", "Export format for -output: yaml or json")
	xlsxFile    = flag.String("xlsx", "", "Write generation statistics to this .xlsx workbook")
	showBest    = flag.Bool("best", false, "Print the persisted best solution and exit")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	level := cfg.App.LogLevel
	if *verbose {
		level = "debug"
	}
	// stdout carries the result table only
	config.InitLoggerWithOutput(level, "console", os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("Evolution failed")
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	if *showBest {
		record, err := application.Service.GetBest(ctx)
		if err != nil {
			return err
		}
		report.RenderStats(os.Stdout, record)
		return nil
	}

	runCfg := application.Service.Defaults()
	if *generations != 0 {
		runCfg.Generations = *generations
	}
	if *popSize != 0 {
		runCfg.PopSize = *popSize
	}
	if *seed != 0 {
		runCfg.Seed = *seed
	}

	exportFormat, err := evolution.ParseExportFormat(*format)
	if err != nil {
		return err
	}

	done := metrics.StartRun()
	record, err := application.Service.RunWithConfig(ctx, runCfg)
	done(err)
	if err != nil {
		return err
	}

	report.RenderStats(os.Stdout, record)

	if *outputFile != "" {
		data, err := evolution.ExportRecord(record, exportFormat)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*outputFile, data, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", *outputFile, err)
		}
		log.Info().Str("path", *outputFile).Msg("Best solution exported")
	}

	if *xlsxFile != "" {
		if err := report.WriteWorkbook(*xlsxFile, record); err != nil {
			return err
		}
		log.Info().Str("path", *xlsxFile).Msg("Statistics workbook written")
	}

	return nil
}
