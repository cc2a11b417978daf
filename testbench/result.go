package testbench

import (
	"github.com/sarchlab/cputester/cache"
	"github.com/sarchlab/cputester/insts"
)

// Source names the side of a differential test that produced a failure.
type Source uint8

// Failure sources.
const (
	SourceNone     Source = iota
	SourceCPU             // emulator fault, step limit or timeout
	SourceOracle          // oracle invocation failure
	SourceMismatch        // both ran, final memory differs
)

func (s Source) String() string {
	switch s {
	case SourceCPU:
		return "cpu"
	case SourceOracle:
		return "oracle"
	case SourceMismatch:
		return "mismatch"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Job is one generated program submitted for dual execution.
type Job struct {
	ID           int
	Instructions []insts.Instruction
}

// Snapshots holds both final memories of a mismatching job.
type Snapshots struct {
	CPU    []int32 `json:"cpu"`
	Oracle []int32 `json:"oracle"`
}

// Result is the verdict for one Job. Exactly one Result is produced per Job.
type Result struct {
	JobID     int
	Worker    int
	OK        bool
	Reason    string
	Source    Source
	Snapshots *Snapshots // set for SourceMismatch only
	Stats     cache.Statistics
}
