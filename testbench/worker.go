package testbench

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cputester/emu"
	"github.com/sarchlab/cputester/oracle"
)

// worker owns a private emulator and a private oracle for its lifetime.
type worker struct {
	id          int
	emulator    *emu.Emulator
	oracle      oracle.Oracle
	memoryCells int
	timeout     time.Duration
	logger      logrus.FieldLogger
}

// run processes jobs until stop is closed.
func (w *worker) run(ctx context.Context, jobs <-chan Job, results chan<- Result, stop <-chan struct{}) {
	w.logger.Debug("Worker started")
	defer w.logger.Debug("Worker stopped")

	for {
		select {
		case <-stop:
			return
		case job := <-jobs:
			result := w.process(ctx, job)

			select {
			case results <- result:
			case <-stop:
				return
			}
		}
	}
}

// process runs job on the emulator, then on the oracle, and compares the
// first memoryCells cells.
func (w *worker) process(ctx context.Context, job Job) (result Result) {
	result = Result{JobID: job.ID, Worker: w.id}
	source := SourceCPU

	defer func() {
		if r := recover(); r != nil {
			result.OK = false
			result.Source = source
			result.Reason = f("unexpected error: %v", r)
			result.Snapshots = nil
		}
	}()

	w.emulator.Reset()
	w.emulator.LoadProgram(job.Instructions)
	err := w.emulator.Run(w.timeout)
	result.Stats = w.emulator.CacheStats()
	if err != nil {
		result.Source = SourceCPU
		result.Reason = f("unexpected error: %v", err)
		return result
	}

	// An in-flight run is bounded by its own timeout, not by cancellation.
	source = SourceOracle
	snapshot, err := w.oracle.Run(context.WithoutCancel(ctx), job.Instructions, w.timeout)
	if err != nil {
		result.Source = SourceOracle
		result.Reason = f("unexpected error: %v", err)
		return result
	}

	cpuMemory := w.emulator.Memory().Snapshot()
	for i := 0; i < w.memoryCells; i++ {
		var cpuCell int32
		if i < len(cpuMemory) {
			cpuCell = cpuMemory[i]
		}

		if cpuCell != snapshot.Cell(i) {
			result.Source = SourceMismatch
			result.Reason = f("memory check failed at cell %s", strconv.Itoa(i))
			result.Snapshots = &Snapshots{CPU: cpuMemory, Oracle: snapshot.Memory}

			w.logger.WithFields(logrus.Fields{
				"job":              job.ID,
				"cpu_registers":    w.emulator.RegFile().Snapshot(),
				"oracle_registers": snapshot.Registers,
			}).Debug("Register state at mismatch")

			return result
		}
	}

	result.OK = true
	return result
}
