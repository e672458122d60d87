// Package util provides small helpers shared across the self-test packages.
package util

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// maxErrorLineLength is the maximum length for extracted error messages.
const maxErrorLineLength = 200

// WrapError wraps an error with a descriptive operation context.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// ExtractLastError returns the last non-empty line of a capture tool's stderr,
// truncated to a readable length.
func ExtractLastError(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if len(line) > maxErrorLineLength {
			return line[:maxErrorLineLength] + "..."
		}
		return line
	}
	return ""
}

// SafeClose closes c and logs a failure instead of returning it.
func SafeClose(c io.Closer, what string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		slog.Debug("close failed", "resource", what, "error", err)
	}
}
