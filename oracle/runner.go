package oracle

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command is one external tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes external tools. The Verilog oracle uses it for both the
// iverilog build and the vvp simulation, so the same oracle can run tools
// on the host or inside a container.
type Runner interface {
	// Run executes cmd and returns its standard output. A non-zero exit is
	// an error; the returned output is still set when available.
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs tools as host subprocesses.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s",
			cmd.Name, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}
