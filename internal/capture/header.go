package capture

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/oszuidwest/zwfm-selftest/internal/util"
)

const (
	maxStderrLines   = 20
	maxPartialLength = 4096
)

// videoStreamPattern matches FFmpeg stream headers such as
// "Stream #0:0: Video: mjpeg (Baseline), yuvj422p(pc), 1280x720, 30 fps".
var videoStreamPattern = regexp.MustCompile(`Stream #\d+:\d+.*Video:.*?\b(\d{2,5})x(\d{2,5})\b`)

// ParseStreamDimensions extracts the frame size from an FFmpeg video stream header line.
func ParseStreamDimensions(line string) (Dimensions, bool) {
	m := videoStreamPattern.FindStringSubmatch(line)
	if len(m) < 3 {
		return Dimensions{}, false
	}
	w, errW := strconv.Atoi(m[1])
	h, errH := strconv.Atoi(m[2])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Dimensions{}, false
	}
	return Dimensions{Width: w, Height: h}, true
}

// stderrMonitor is the stderr sink of a capture process. It keeps the last
// lines for error reporting and signals once a video stream header arrives.
// It is safe for concurrent use.
type stderrMonitor struct {
	mu       sync.Mutex
	partial  []byte
	lines    []string
	dims     Dimensions
	hasDims  bool
	metadata chan struct{}
	once     sync.Once
}

func newStderrMonitor() *stderrMonitor {
	return &stderrMonitor{metadata: make(chan struct{})}
}

// Write implements io.Writer.
func (m *stderrMonitor) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.partial = append(m.partial, p...)
	for {
		i := bytes.IndexByte(m.partial, '\n')
		if i < 0 {
			break
		}
		m.handleLine(strings.TrimRight(string(m.partial[:i]), "\r"))
		m.partial = m.partial[i+1:]
	}
	if len(m.partial) > maxPartialLength {
		m.partial = m.partial[len(m.partial)-maxPartialLength:]
	}
	return len(p), nil
}

// handleLine records one stderr line. Caller must hold m.mu.
func (m *stderrMonitor) handleLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	m.lines = append(m.lines, line)
	if len(m.lines) > maxStderrLines {
		m.lines = m.lines[len(m.lines)-maxStderrLines:]
	}
	if m.hasDims {
		return
	}
	if d, ok := ParseStreamDimensions(line); ok {
		m.dims = d
		m.hasDims = true
		m.once.Do(func() { close(m.metadata) })
	}
}

// finish unblocks metadata waiters when the process ends without a header.
func (m *stderrMonitor) finish() {
	m.once.Do(func() { close(m.metadata) })
}

func (m *stderrMonitor) dimensions() (Dimensions, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dims, m.hasDims
}

// lastError returns the most recent meaningful stderr line.
func (m *stderrMonitor) lastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	text := strings.Join(m.lines, "\n")
	if len(m.partial) > 0 {
		text += "\n" + string(m.partial)
	}
	return util.ExtractLastError(text)
}
