// Package oracle defines the reference side of a differential test and its
// implementations.
//
// An Oracle receives the same program as the software emulator and returns
// the final register and memory state it observed. The Verilog oracle
// compiles a hardware testbench with Icarus Verilog once, then runs it per
// program and parses the dump it prints:
//
//	MEMORY_DUMP_BEGIN
//	0 00000000000000000000000001100011
//	1 11111111111111111111111111111111
//	MEMORY_DUMP_END
//	REGISTER_DUMP_BEGIN
//	...
//	REGISTER_DUMP_END
//	FINISH
//
// The Reference oracle runs a second emulator and is used for self-checks.
package oracle

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cputester/insts"
)

// Snapshot is the final machine state reported by an oracle.
type Snapshot struct {
	Registers []int32 `json:"registers,omitempty"`
	Memory    []int32 `json:"memory"`
}

// Cell returns memory cell i, or 0 when the dump did not reach it.
func (s Snapshot) Cell(i int) int32 {
	if i < 0 || i >= len(s.Memory) {
		return 0
	}
	return s.Memory[i]
}

// Oracle runs a program on a reference implementation.
//
// An Oracle is owned by one worker and is not required to be safe for
// concurrent use.
type Oracle interface {
	// Run executes program and returns the final state. Failures are
	// reported as *InvocationError.
	Run(ctx context.Context, program []insts.Instruction, timeout time.Duration) (Snapshot, error)

	// Close releases build artifacts and other resources.
	Close() error
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
