//go:build !windows

package util

import (
	"io"
	"os"
	"syscall"
)

// ShutdownSignals returns the signals to listen for graceful shutdown.
func ShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// GracefulSignal asks a capture process to exit by sending SIGINT.
func GracefulSignal(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Signal(syscall.SIGINT)
}

// StopViaStdin closes stdin; SIGINT does the actual work on Unix.
func StopViaStdin(stdin io.WriteCloser) error {
	if stdin == nil {
		return nil
	}
	return stdin.Close()
}
