package oracle

import (
	"context"
	"time"

	"github.com/sarchlab/cputester/emu"
	"github.com/sarchlab/cputester/insts"
)

// Reference is an Oracle that runs a private emulator. Comparing the
// emulator against itself must never report a mismatch, which makes it a
// self-check of the whole pipeline.
type Reference struct {
	emulator *emu.Emulator
}

// NewReference creates a Reference oracle.
func NewReference(opts ...emu.EmulatorOption) *Reference {
	return &Reference{emulator: emu.NewEmulator(opts...)}
}

// Run implements Oracle.
func (r *Reference) Run(ctx context.Context, program []insts.Instruction, timeout time.Duration) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, &InvocationError{Stage: StageSimulate, Err: err}
	}

	if err := r.emulator.RunProgram(program, timeout); err != nil {
		return Snapshot{}, &InvocationError{Stage: StageSimulate, Err: err}
	}

	return Snapshot{
		Registers: r.emulator.RegFile().Snapshot(),
		Memory:    r.emulator.Memory().Snapshot(),
	}, nil
}

// Close implements Oracle.
func (r *Reference) Close() error {
	return nil
}
