package capture

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/oszuidwest/zwfm-selftest/internal/ffmpeg"
)

// ProcessConfig selects the capture devices and tool paths.
type ProcessConfig struct {
	FFmpegPath  string
	AudioDevice string
	VideoDevice string
}

// ProcessPlatform captures through external tools: one subprocess per track.
// Opening succeeds once the tool produces its first bytes; a tool that exits
// first is reported as a PlatformError carrying its last stderr line.
type ProcessPlatform struct {
	config func() ProcessConfig
}

// NewProcessPlatform creates a platform that reads its device selection from
// config on every Open.
func NewProcessPlatform(config func() ProcessConfig) *ProcessPlatform {
	return &ProcessPlatform{config: config}
}

// Open starts one capture process per requested kind.
func (p *ProcessPlatform) Open(ctx context.Context, req Request) ([]Track, error) {
	cfg := p.config()

	var tracks []Track
	for _, kind := range req.Kinds() {
		device := cfg.AudioDevice
		if kind == Video {
			device = cfg.VideoDevice
		}

		t, err := startProcessTrack(ctx, kind, device, cfg.FFmpegPath)
		if err != nil {
			for _, started := range tracks {
				_ = started.Stop() //nolint:errcheck // Stop never fails for process tracks
			}
			return nil, Classify(kind, err)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// processTrack is a track backed by a capture subprocess.
type processTrack struct {
	kind   MediaKind
	label  string
	proc   *ffmpeg.Process
	stderr *stderrMonitor
	out    *bufio.Reader

	enabled  atomic.Bool
	stopping atomic.Bool
	stopOnce sync.Once
	done     chan struct{}

	mu  sync.Mutex
	err *CaptureError
}

func startProcessTrack(ctx context.Context, kind MediaKind, device, ffmpegPath string) (Track, error) {
	name, args, err := BuildCaptureCommand(kind, device, ffmpegPath)
	if err != nil {
		return nil, err
	}

	monitor := newStderrMonitor()
	proc, err := ffmpeg.StartProcess(name, args, monitor)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, &CaptureError{Kind: UnknownError, Media: kind, Detail: name + " is not installed", Err: err}
		}
		return nil, &CaptureError{Kind: UnknownError, Media: kind, Detail: err.Error(), Err: err}
	}

	if device == "" {
		device = name
	}
	t := &processTrack{
		kind:   kind,
		label:  device,
		proc:   proc,
		stderr: monitor,
		out:    bufio.NewReaderSize(proc.Stdout, 64*1024),
		done:   make(chan struct{}),
	}
	t.enabled.Store(true)
	go t.wait()

	// The tool may sit on a permission prompt; wait for data, exit or cancellation.
	first := make(chan error, 1)
	go func() {
		_, err := t.out.Peek(1)
		first <- err
	}()

	select {
	case err := <-first:
		if err != nil {
			<-t.done
			return nil, &PlatformError{Name: "CaptureFailed", Message: t.failureDetail(err)}
		}
	case <-ctx.Done():
		_ = t.Stop() //nolint:errcheck // Stop never fails for process tracks
		return nil, ctx.Err()
	}

	slog.Info("capture track started", "media", kind, "command", name, "device", device)

	if kind == Video {
		go t.drain()
		return &videoTrack{t}, nil
	}
	return &audioTrack{t}, nil
}

// wait reaps the process and records why it ended.
func (t *processTrack) wait() {
	err := t.proc.Cmd.Wait()
	t.stderr.finish()

	if !t.stopping.Load() {
		detail := t.failureDetail(err)
		t.mu.Lock()
		t.err = Classify(t.kind, &PlatformError{Name: "TrackEnded", Message: detail})
		t.mu.Unlock()
		slog.Warn("capture track ended unexpectedly", "media", t.kind, "error", detail)
	}

	t.proc.Cancel()
	close(t.done)
}

func (t *processTrack) failureDetail(err error) string {
	if detail := t.stderr.lastError(); detail != "" {
		return detail
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return err.Error()
	}
	return "capture process exited"
}

// drain discards preview frames so the capture tool never blocks on stdout.
func (t *processTrack) drain() {
	_, _ = io.Copy(io.Discard, t.out) //nolint:errcheck // Ends when the process exits
}

func (t *processTrack) Kind() MediaKind       { return t.kind }
func (t *processTrack) Label() string         { return t.label }
func (t *processTrack) Enabled() bool         { return t.enabled.Load() }
func (t *processTrack) SetEnabled(on bool)    { t.enabled.Store(on) }
func (t *processTrack) Done() <-chan struct{} { return t.done }

func (t *processTrack) Err() *CaptureError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Stop ends the capture process and waits for it to be reaped.
func (t *processTrack) Stop() error {
	t.stopOnce.Do(func() {
		t.stopping.Store(true)
		t.proc.Stop()
	})
	<-t.done
	return nil
}

// audioTrack exposes the PCM output of an audio capture process.
type audioTrack struct {
	*processTrack
}

// PCM returns the sample stream. A disabled track reads as digital silence.
func (t *audioTrack) PCM() io.Reader {
	return mutingReader{t.processTrack}
}

func (t *audioTrack) Format() PCMFormat {
	return PCMFormat{SampleRate: SampleRate, Channels: Channels}
}

type mutingReader struct {
	t *processTrack
}

func (r mutingReader) Read(p []byte) (int, error) {
	n, err := r.t.out.Read(p)
	if !r.t.enabled.Load() {
		clear(p[:n])
	}
	return n, err
}

// videoTrack exposes the negotiated size of a video capture process.
type videoTrack struct {
	*processTrack
}

func (t *videoTrack) MetadataLoaded() <-chan struct{} {
	return t.stderr.metadata
}

func (t *videoTrack) Dimensions() (Dimensions, bool) {
	return t.stderr.dimensions()
}
