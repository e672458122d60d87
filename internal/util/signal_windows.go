//go:build windows

package util

import (
	"io"
	"os"
)

// ShutdownSignals returns the signals to listen for graceful shutdown.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// GracefulSignal is a no-op on Windows; capture processes are stopped through
// StopViaStdin or killed once their wait delay expires.
func GracefulSignal(p *os.Process) error {
	return nil
}

// StopViaStdin sends FFmpeg's 'q' command and closes stdin.
func StopViaStdin(stdin io.WriteCloser) error {
	if stdin == nil {
		return nil
	}
	_, _ = stdin.Write([]byte("q"))
	return stdin.Close()
}
