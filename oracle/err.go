package oracle

import (
	"errors"

	"github.com/sarchlab/cputester/translate"
)

var f = translate.From

var (
	// ErrNoFinish is returned when the simulation output ends without the
	// FINISH marker.
	ErrNoFinish = errors.New(f("simulation output has no FINISH marker"))

	// ErrMalformedDump is returned for a dump line that is not an
	// "index value" pair.
	ErrMalformedDump = errors.New(f("malformed dump line"))
)

// Invocation stages.
const (
	StageBuild    = "build"
	StageWrite    = "write"
	StageSimulate = "simulate"
	StageParse    = "parse"
)

// InvocationError reports a failed oracle invocation: a build or
// subprocess failure, a timeout, or unparsable output.
type InvocationError struct {
	Stage  string
	Err    error
	Output string // captured process output, if any
}

func (err *InvocationError) Error() string {
	return f("oracle %v failed: %v", err.Stage, err.Err)
}

func (err *InvocationError) Unwrap() error {
	return err.Err
}
