package emu

import (
	"errors"
	"strconv"

	"github.com/sarchlab/cputester/translate"
)

var f = translate.From

var (
	// ErrTimeout is returned by Run when the program does not halt within
	// the wall-clock budget.
	ErrTimeout = errors.New(f("simulator timed out"))

	// ErrStepLimit is returned when the configured instruction budget is
	// exhausted before the program halts.
	ErrStepLimit = errors.New(f("instruction limit reached"))

	// ErrUnknownInstruction is returned when the loaded program contains an
	// op with no execution handler.
	ErrUnknownInstruction = errors.New(f("unknown instruction"))

	// ErrNotRunning is returned by Step once the emulator has left the
	// Running state.
	ErrNotRunning = errors.New(f("emulator is not running"))
)

// OutOfBoundsError reports a register or memory index outside the
// configured storage.
type OutOfBoundsError struct {
	Space string // "memory" or "register"
	Index int64
	Size  int
}

func (err *OutOfBoundsError) Error() string {
	return f("%v index %s out of bounds [0, %s)", err.Space,
		strconv.FormatInt(err.Index, 10), strconv.Itoa(err.Size))
}
