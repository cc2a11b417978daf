// Package main provides the entry point for cputester.
// cputester differentially tests a Verilog MIPS CPU against the software
// emulator with randomly generated programs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cputester/config"
	"github.com/sarchlab/cputester/gen"
	"github.com/sarchlab/cputester/testbench"
)

var (
	configPath = flag.String("config", "config.json", "Path to a JSON or Starlark (.star) configuration file")
	verbose    = flag.Bool("v", false, "Verbose output")
	oracleKind = flag.String("oracle", "", "Override the oracle: verilog, docker or reference")
	seed       = flag.Int64("seed", 0, "Override the random seed (0 keeps the configured one)")
	tests      = flag.Int("tests", -1, "Override the number of tests")
	workers    = flag.Int("workers", 0, "Override the number of workers")
	reportPath = flag.String("report", "", "Write a JSON run summary to this path")
	statsAddr  = flag.String("statsview", "", "Serve runtime statistics on this address, e.g. localhost:18066")
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitFailures    = 2
	exitInterrupted = 130
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cputester [options]\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	os.Exit(run())
}

func run() int {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.WithError(err).Error("Invalid configuration")
		return exitError
	}

	runSeed := cfg.Seed
	if runSeed == 0 {
		runSeed = time.Now().UnixNano()
	}

	if *statsAddr != "" {
		launchStatsview(*statsAddr, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator, err := gen.NewGenerator(cfg.GeneratorConfig(), rand.New(rand.NewSource(runSeed)))
	if err != nil {
		logger.WithError(err).Error("Failed to create program generator")
		return exitError
	}
	store := testbench.NewFailureStore(cfg.FailuresDirectory, rand.New(rand.NewSource(runSeed+1)))

	newOracle, cleanup, err := oracleFactory(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to prepare oracle")
		return exitError
	}
	defer cleanup()

	tb := testbench.New(cfg, generator, newOracle, store, testbench.WithLogger(logger))
	logger.WithFields(logrus.Fields{
		"run":    tb.RunID(),
		"seed":   runSeed,
		"oracle": cfg.Oracle,
	}).Info("Configured")

	summary, err := tb.Run(ctx)
	if summary != nil && cfg.ReportPath != "" {
		if saveErr := summary.Save(cfg.ReportPath); saveErr != nil {
			logger.WithError(saveErr).Error("Failed to write report")
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("Interrupted")
		return exitInterrupted
	case err != nil:
		logger.WithError(err).Error("Run failed")
		return exitError
	case summary.Failed > 0:
		return exitFailures
	default:
		return exitOK
	}
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	if *oracleKind != "" {
		cfg.Oracle = *oracleKind
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *tests >= 0 {
		cfg.TestCount = *tests
	}
	if *workers > 0 {
		cfg.WorkerCount = *workers
	}
	if *reportPath != "" {
		cfg.ReportPath = *reportPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
