// Package ffmpeg launches capture tool subprocesses (FFmpeg, arecord) with
// graceful cancellation.
package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/oszuidwest/zwfm-selftest/internal/util"
)

// ShutdownTimeout is how long a capture process gets to exit after the
// graceful signal before it is killed.
const ShutdownTimeout = 3000 * time.Millisecond

// Process represents a running capture subprocess.
type Process struct {
	Cmd    *exec.Cmd
	Cancel context.CancelFunc
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
}

// StartProcess launches a capture subprocess whose stdout carries media data.
// Stderr is streamed into stderr as the process writes it.
func StartProcess(name string, args []string, stderr io.Writer) (*Process, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, name, args...)

	// Cancellation sends the graceful signal first, then kills after WaitDelay.
	cmd.Cancel = func() error {
		return util.GracefulSignal(cmd.Process)
	}
	cmd.WaitDelay = ShutdownTimeout
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		util.SafeClose(stdin, "stdin pipe")
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		if closeErr := stdin.Close(); closeErr != nil {
			slog.Warn("failed to close stdin pipe", "error", closeErr)
		}
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	return &Process{
		Cmd:    cmd,
		Cancel: cancel,
		Stdin:  stdin,
		Stdout: stdout,
	}, nil
}

// Stop asks the process to exit. Wait must still be called by the owner.
func (p *Process) Stop() {
	if err := util.StopViaStdin(p.Stdin); err != nil {
		slog.Debug("failed to close capture stdin", "error", err)
	}
	p.Cancel()
}
