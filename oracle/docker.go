package oracle

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerRunner runs tools inside a container image that ships Icarus
// Verilog. Every mount is bound at the same absolute path inside the
// container, so paths built on the host stay valid.
type DockerRunner struct {
	cli    *client.Client
	image  string
	mounts []string
}

// NewDockerRunner connects to the Docker daemon described by the
// environment. Mounts resolving to the same absolute path are bound once.
func NewDockerRunner(image string, mounts ...string) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	r := &DockerRunner{cli: cli, image: image}
	seen := make(map[string]bool, len(mounts))
	for _, m := range mounts {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve mount %s: %w", m, err)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		r.mounts = append(r.mounts, abs)
	}

	return r, nil
}

// Binds returns the host:container bind mounts passed to the container.
func (r *DockerRunner) Binds() []string {
	binds := make([]string, len(r.mounts))
	for i, m := range r.mounts {
		binds[i] = m + ":" + m
	}
	return binds
}

// Run implements Runner. The container is removed when the command
// finishes or ctx is done.
func (r *DockerRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	config := &container.Config{
		Image:      r.image,
		Cmd:        append([]string{cmd.Name}, cmd.Args...),
		WorkingDir: cmd.Dir,
	}
	hostConfig := &container.HostConfig{
		Binds: r.Binds(),
	}

	resp, err := r.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create failed: %w", err)
	}
	defer func() {
		_ = r.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID,
			container.RemoveOptions{Force: true})
	}()

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start failed: %w", err)
	}

	var exitCode int64
	statusCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("wait failed: %w", err)
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	logs, err := r.cli.ContainerLogs(ctx, resp.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("logs failed: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, fmt.Errorf("failed to demultiplex logs: %w", err)
	}

	if exitCode != 0 {
		return stdout.Bytes(), fmt.Errorf("%s exited with status %d: %s",
			cmd.Name, exitCode, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

// Close closes the Docker client.
func (r *DockerRunner) Close() error {
	return r.cli.Close()
}
