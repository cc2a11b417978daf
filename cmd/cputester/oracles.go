package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cputester/config"
	"github.com/sarchlab/cputester/emu"
	"github.com/sarchlab/cputester/oracle"
	"github.com/sarchlab/cputester/testbench"
)

// oracleFactory returns the per-worker oracle constructor for the configured
// oracle kind and a cleanup for resources shared between workers.
func oracleFactory(cfg *config.Config, logger *logrus.Logger) (testbench.OracleFactory, func(), error) {
	noop := func() {}

	switch cfg.Oracle {
	case config.OracleReference:
		return func(_ context.Context, _ int) (oracle.Oracle, error) {
			return oracle.NewReference(emu.WithMemoryCells(cfg.MemoryCells)), nil
		}, noop, nil

	case config.OracleVerilog:
		return verilogFactory(cfg, logger), noop, nil

	case config.OracleDocker:
		runner, err := oracle.NewDockerRunner(cfg.DockerImage, cfg.DockerMounts()...)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := runner.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close docker client")
			}
		}
		return verilogFactory(cfg, logger, oracle.WithRunner(runner)), cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown oracle %q", cfg.Oracle)
	}
}

func verilogFactory(cfg *config.Config, logger *logrus.Logger, opts ...oracle.VerilogOption) testbench.OracleFactory {
	return func(ctx context.Context, worker int) (oracle.Oracle, error) {
		workerOpts := append([]oracle.VerilogOption{
			oracle.WithLogger(logger.WithField("worker", worker)),
		}, opts...)

		return oracle.NewVerilog(ctx, cfg.VerilogConfig(), workerOpts...)
	}
}
