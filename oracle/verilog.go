package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cputester/insts"
)

// breakpoint is the all-zero word the testbench stops at.
var breakpoint = strings.Repeat("0", insts.WordBits)

// VerilogConfig holds the already-resolved build and runtime parameters of
// the hardware testbench.
type VerilogConfig struct {
	Iverilog string // compiler executable
	Vvp      string // runtime executable

	TestbenchPath string
	CPUFolder     string   // include directory
	Flags         []string // extra iverilog flags, e.g. -g2012

	BuildDirectory        string
	InstructionsDirectory string

	// MaxInstructions is the instruction memory size of the design. Programs
	// are cut to MaxInstructions-1 so the breakpoint always fits.
	MaxInstructions int

	// Internal array names bound through preprocessor defines. Empty names
	// are not passed.
	MemoryArrayName       string
	RegistersArrayName    string
	InstructionsArrayName string
}

// DefaultVerilogConfig returns the parameters of the standard testbench
// layout.
func DefaultVerilogConfig() VerilogConfig {
	return VerilogConfig{
		Iverilog:              "iverilog",
		Vvp:                   "vvp",
		TestbenchPath:         "./cpu/cpu_test.v",
		CPUFolder:             "./cpu",
		Flags:                 []string{"-g2012"},
		BuildDirectory:        "test_build_folder",
		InstructionsDirectory: "instructions_tmp_folder",
		MaxInstructions:       200,
	}
}

// Verilog is an Oracle backed by an Icarus Verilog testbench. Each instance
// compiles its own image and writes its own instructions file, so instances
// owned by different workers never share files.
type Verilog struct {
	config VerilogConfig
	runner Runner
	logger logrus.FieldLogger

	image            string
	instructionsPath string
}

// VerilogOption is a functional option for configuring the Verilog oracle.
type VerilogOption func(*Verilog)

// WithRunner sets how the external tools are executed.
func WithRunner(runner Runner) VerilogOption {
	return func(v *Verilog) {
		v.runner = runner
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(logger logrus.FieldLogger) VerilogOption {
	return func(v *Verilog) {
		v.logger = logger
	}
}

// NewVerilog compiles the testbench and returns a ready oracle.
func NewVerilog(ctx context.Context, config VerilogConfig, opts ...VerilogOption) (*Verilog, error) {
	v := &Verilog{
		config: config,
		runner: ExecRunner{},
		logger: discardLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	buildDir, err := filepath.Abs(config.BuildDirectory)
	if err != nil {
		return nil, &InvocationError{Stage: StageBuild, Err: err}
	}
	instructionsDir, err := filepath.Abs(config.InstructionsDirectory)
	if err != nil {
		return nil, &InvocationError{Stage: StageBuild, Err: err}
	}

	for _, dir := range []string{buildDir, instructionsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &InvocationError{Stage: StageBuild, Err: err}
		}
	}

	name := uuid.NewString()
	v.image = filepath.Join(buildDir, name)
	v.instructionsPath = filepath.Join(instructionsDir, name+".dat")

	cmd := Command{Name: config.Iverilog, Args: v.buildArgs()}
	v.logger.WithField("command", cmd.String()).Debug("Compiling testbench")

	out, err := v.runner.Run(ctx, cmd)
	if err != nil {
		return nil, &InvocationError{Stage: StageBuild, Err: err, Output: string(out)}
	}

	return v, nil
}

func (v *Verilog) buildArgs() []string {
	args := []string{"-o", v.image}
	args = append(args, v.config.Flags...)

	if v.config.CPUFolder != "" {
		args = append(args, "-I", absOrSelf(v.config.CPUFolder))
	}

	defines := []struct{ name, value string }{
		{"MEMORY_ARRAY", v.config.MemoryArrayName},
		{"REGISTERS_ARRAY", v.config.RegistersArrayName},
		{"INSTRUCTIONS_ARRAY", v.config.InstructionsArrayName},
	}
	for _, d := range defines {
		if d.value != "" {
			args = append(args, fmt.Sprintf("-D%s=%s", d.name, d.value))
		}
	}

	return append(args, absOrSelf(v.config.TestbenchPath))
}

// Image returns the path of the compiled testbench.
func (v *Verilog) Image() string {
	return v.image
}

// InstructionsPath returns the file this oracle writes programs to.
func (v *Verilog) InstructionsPath() string {
	return v.instructionsPath
}

// Run implements Oracle.
func (v *Verilog) Run(ctx context.Context, program []insts.Instruction, timeout time.Duration) (Snapshot, error) {
	if err := v.writeInstructions(program); err != nil {
		return Snapshot{}, &InvocationError{Stage: StageWrite, Err: err}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := v.runner.Run(ctx, Command{
		Name: v.config.Vvp,
		Args: []string{v.image, "+instructions=" + v.instructionsPath},
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %v: %w", timeout, context.DeadlineExceeded)
		}
		return Snapshot{}, &InvocationError{Stage: StageSimulate, Err: err, Output: string(out)}
	}

	snapshot, err := ParseDump(bytes.NewReader(out))
	if err != nil {
		return Snapshot{}, &InvocationError{Stage: StageParse, Err: err, Output: string(out)}
	}

	return snapshot, nil
}

// writeInstructions writes one encoded word per line followed by the
// breakpoint.
func (v *Verilog) writeInstructions(program []insts.Instruction) error {
	if limit := v.config.MaxInstructions - 1; limit >= 0 && len(program) > limit {
		v.logger.WithFields(logrus.Fields{
			"instructions": len(program),
			"limit":        limit,
		}).Warn("Program truncated to reserve a breakpoint slot")
		program = program[:limit]
	}

	text, err := insts.EncodeProgram(program)
	if err != nil {
		return err
	}
	if text != "" {
		text += "\n"
	}
	text += breakpoint + "\n"

	return os.WriteFile(v.instructionsPath, []byte(text), 0o644)
}

// Close removes the compiled image and the instructions file.
func (v *Verilog) Close() error {
	var errs []error
	for _, path := range []string{v.image, v.instructionsPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
