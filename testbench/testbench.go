// Package testbench runs the differential test: a coordinator generates
// programs and hands them to a pool of workers, each of which runs a program
// on the software emulator and on an oracle and compares final memory.
//
// The coordinator is the only writer of counters and failure artifacts.
// Results may arrive in any order and are matched to their jobs by ID.
package testbench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cputester/cache"
	"github.com/sarchlab/cputester/config"
	"github.com/sarchlab/cputester/emu"
	"github.com/sarchlab/cputester/gen"
	"github.com/sarchlab/cputester/insts"
	"github.com/sarchlab/cputester/oracle"
	"github.com/sarchlab/cputester/translate"
)

var f = translate.From

// tallyEvery is how many results pass between progress lines.
const tallyEvery = 100

// OracleFactory creates the private oracle of one worker.
type OracleFactory func(ctx context.Context, worker int) (oracle.Oracle, error)

// TestBench coordinates a differential testing run.
type TestBench struct {
	config    *config.Config
	generator *gen.Generator
	newOracle OracleFactory
	store     *FailureStore
	logger    logrus.FieldLogger
	runID     string
	emuOpts   []emu.EmulatorOption
}

// Option is a functional option for configuring the TestBench.
type Option func(*TestBench)

// WithLogger sets the logger. Every line carries the run ID.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(tb *TestBench) {
		tb.logger = logger
	}
}

// WithEmulatorOptions adds options applied to every worker's emulator after
// the configured memory size and cache.
func WithEmulatorOptions(opts ...emu.EmulatorOption) Option {
	return func(tb *TestBench) {
		tb.emuOpts = append(tb.emuOpts, opts...)
	}
}

// New creates a TestBench. The configuration must already be valid.
func New(
	cfg *config.Config,
	generator *gen.Generator,
	newOracle OracleFactory,
	store *FailureStore,
	opts ...Option,
) *TestBench {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tb := &TestBench{
		config:    cfg,
		generator: generator,
		newOracle: newOracle,
		store:     store,
		logger:    logger,
		runID:     uuid.NewString(),
	}

	for _, opt := range opts {
		opt(tb)
	}

	tb.logger = tb.logger.WithField("run", tb.runID)

	return tb
}

// RunID returns the unique identifier of this run.
func (tb *TestBench) RunID() string {
	return tb.runID
}

// Run executes config.TestCount jobs and returns the summary. If ctx is
// cancelled, Run stops dispatching, waits for the workers and returns the
// partial summary together with the context error.
func (tb *TestBench) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := newSummary(tb.runID, tb.config.TestCount)

	workers, err := tb.startWorkers(ctx)
	if err != nil {
		return nil, err
	}

	depth := tb.config.JobQueueDepth()
	maxInFlight := depth + len(workers)

	jobs := make(chan Job, depth)
	results := make(chan Result, maxInFlight)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			w.run(ctx, jobs, results, stop)
		}(w)
	}

	tb.logger.WithFields(logrus.Fields{
		"workers": len(workers),
		"tests":   tb.config.TestCount,
	}).Info(f("Starting"))

	runErr := tb.coordinate(ctx, jobs, results, maxInFlight, summary)

	close(stop)
	wg.Wait()
	tb.closeWorkers(workers)

	summary.ElapsedMS = time.Since(start).Milliseconds()
	summary.Interrupted = runErr != nil

	tb.logger.WithFields(logrus.Fields{
		"total":   summary.Total,
		"passed":  summary.Passed,
		"failed":  summary.Failed,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info(f("Finished"))

	return summary, runErr
}

// coordinate is the main loop: drain available results, then enqueue a new
// job while the in-flight bound allows it.
func (tb *TestBench) coordinate(
	ctx context.Context,
	jobs chan<- Job,
	results <-chan Result,
	maxInFlight int,
	summary *Summary,
) error {
	pending := make(map[int][]insts.Instruction, maxInFlight)
	remaining := tb.config.TestCount
	enqueued := 0
	nextID := 0

	ticker := time.NewTicker(tb.config.PollInterval())
	defer ticker.Stop()

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		progressed := false

	drain:
		for {
			select {
			case result := <-results:
				tb.handle(result, pending, summary)
				remaining--
				progressed = true
			default:
				break drain
			}
		}

		if remaining == 0 {
			break
		}

		if enqueued < summary.Total && len(pending) < maxInFlight && len(jobs) < cap(jobs) {
			nextID++
			program := tb.generator.Generate()
			pending[nextID] = program
			jobs <- Job{ID: nextID, Instructions: program}
			enqueued++
			progressed = true
		}

		if progressed {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case result := <-results:
			tb.handle(result, pending, summary)
			remaining--
		case <-ticker.C:
		}
	}

	return nil
}

// handle accounts one result and persists the program of a failed job.
func (tb *TestBench) handle(result Result, pending map[int][]insts.Instruction, summary *Summary) {
	program, ok := pending[result.JobID]
	if !ok {
		tb.logger.WithField("job", result.JobID).Error(f("Result for unknown job"))
		return
	}
	delete(pending, result.JobID)

	summary.Cache.Add(result.Stats)

	if result.OK {
		summary.Passed++
	} else {
		summary.Failed++
		summary.BySource[result.Source]++
		tb.recordFailure(result, program, summary)
	}

	if summary.Processed()%tallyEvery == 0 {
		tb.logger.WithFields(logrus.Fields{
			"total":     summary.Total,
			"failed":    summary.Failed,
			"passed":    summary.Passed,
			"cache_hit": fmt.Sprintf("%.3f", summary.Cache.HitRate()),
		}).Info(f("Progress"))
	}
}

func (tb *TestBench) recordFailure(result Result, program []insts.Instruction, summary *Summary) {
	logger := tb.logger.WithFields(logrus.Fields{
		"job":    result.JobID,
		"worker": result.Worker,
		"source": result.Source,
		"reason": result.Reason,
	})

	if result.Snapshots != nil {
		logger = logger.WithFields(logrus.Fields{
			"cpu_memory":    result.Snapshots.CPU,
			"oracle_memory": result.Snapshots.Oracle,
		})
	}

	// Artifact write errors never stop the run.
	tag, err := tb.store.Save(program)
	if err != nil {
		logger.WithError(err).Error(f("Failed to save failing program"))
		tag = "<unknown>"
	} else {
		summary.FailureTags = append(summary.FailureTags, tag)
	}

	logger.WithFields(logrus.Fields{
		"tag":    tag,
		"failed": summary.Failed,
		"passed": summary.Passed,
	}).Warn(f("Failure"))
}

func (tb *TestBench) startWorkers(ctx context.Context) ([]*worker, error) {
	workers := make([]*worker, 0, tb.config.WorkerCount)

	for id := 0; id < tb.config.WorkerCount; id++ {
		opts := []emu.EmulatorOption{
			emu.WithMemoryCells(tb.config.MemoryCells),
			emu.WithRegisterCount(tb.config.RegisterCount),
		}

		if tb.config.CacheEnabled() {
			dataCache, err := cache.New(tb.config.CacheConfig())
			if err != nil {
				tb.closeWorkers(workers)
				return nil, fmt.Errorf("failed to create data cache: %w", err)
			}
			opts = append(opts, emu.WithDataCache(dataCache))
		}

		o, err := tb.newOracle(ctx, id)
		if err != nil {
			tb.closeWorkers(workers)
			return nil, fmt.Errorf("failed to start oracle for worker %d: %w", id, err)
		}

		workers = append(workers, &worker{
			id:          id,
			emulator:    emu.NewEmulator(append(opts, tb.emuOpts...)...),
			oracle:      o,
			memoryCells: tb.config.MemoryCells,
			timeout:     tb.config.Timeout(),
			logger:      tb.logger.WithField("worker", id),
		})
	}

	return workers, nil
}

func (tb *TestBench) closeWorkers(workers []*worker) {
	var errs []error
	for _, w := range workers {
		if err := w.oracle.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		tb.logger.WithError(err).Error(f("Failed to close oracles"))
	}
}
