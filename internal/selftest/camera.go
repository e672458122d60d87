package selftest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/oszuidwest/zwfm-selftest/internal/capture"
	"github.com/oszuidwest/zwfm-selftest/internal/diagnostic"
	"github.com/oszuidwest/zwfm-selftest/internal/readiness"
	"github.com/oszuidwest/zwfm-selftest/internal/util"
	"github.com/oszuidwest/zwfm-selftest/internal/video"
)

// CameraTest acquires the camera and reports its negotiated resolution.
// It is safe for concurrent use.
type CameraTest struct {
	broker    *capture.Broker
	readiness *readiness.Evaluator
	publish   func(Update)

	mu     sync.Mutex
	state  State
	runID  string
	cancel context.CancelFunc
	stream *capture.Stream
	dims   capture.Dimensions
	last   diagnostic.WebcamDiagnostic
}

// NewCameraTest creates a stopped camera test.
func NewCameraTest(broker *capture.Broker, eval *readiness.Evaluator, publish func(Update)) *CameraTest {
	return &CameraTest{
		broker:    broker,
		readiness: eval,
		publish:   publish,
		state:     StateStopped,
	}
}

// Snapshot returns the current state and diagnostic.
func (c *CameraTest) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	var d diagnostic.DeviceDiagnostic
	if c.last.Status != "" {
		d = diagnostic.CameraDiagnostic(c.last)
	}
	return Snapshot{State: c.state, Diagnostic: d}
}

// Start acquires the camera. The resolution is published once the capture
// tool reports it. A refusal is published and recorded before the
// *capture.CaptureError is returned.
func (c *CameraTest) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.state = StateStarting
	c.cancel = cancel
	c.runID = uuid.NewString()
	runID := c.runID
	c.mu.Unlock()
	defer cancel()

	slog.Info("starting camera test", "run_id", runID)

	stream, err := c.broker.RequestCapture(ctx, capture.Request{WantsVideo: true})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.finish(diagnostic.WebcamDiagnostic{}, false)
			return err
		}
		c.finish(diagnostic.DeriveWebcamStatus(capture.KindOf(err), false, c.lastDims()), true)
		return err
	}

	track, ok := stream.Track(capture.Video)
	src, isSource := track.(capture.DimensionSource)
	if !ok || !isSource {
		_ = stream.Release() //nolint:errcheck // Already failing
		c.finish(diagnostic.DeriveWebcamStatus(capture.UnknownError, false, c.lastDims()), true)
		return ErrNoTrack
	}

	// Stop cancels ctx under c.mu, so checking here cannot miss it.
	c.mu.Lock()
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		_ = stream.Release() //nolint:errcheck // Abandoned start
		c.finish(diagnostic.WebcamDiagnostic{}, false)
		return err
	}
	c.stream = stream
	c.state = StateRunning
	c.mu.Unlock()

	c.update(diagnostic.DeriveWebcamStatus(capture.KindNone, true, capture.Dimensions{}))

	go c.probe(stream, src)
	go c.watch(stream, track)
	return nil
}

// probe publishes the resolution once metadata arrives.
func (c *CameraTest) probe(stream *capture.Stream, src capture.DimensionSource) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stream.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	res := video.Probe(ctx, src)
	if !res.Known {
		return
	}
	slog.Info("camera resolution", "stream_id", stream.ID(), "width", res.Width, "height", res.Height, "quality", res.Quality)

	c.mu.Lock()
	if c.stream != stream {
		c.mu.Unlock()
		return
	}
	c.dims = res.Dimensions()
	c.mu.Unlock()

	c.update(diagnostic.DeriveWebcamStatus(capture.KindNone, true, res.Dimensions()))
}

func (c *CameraTest) update(d diagnostic.WebcamDiagnostic) {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.last = d
	runID, state := c.runID, c.state
	c.mu.Unlock()

	c.readiness.RecordCamera(d)
	c.publish(Update{RunID: runID, Component: readiness.Camera, State: state, Diagnostic: diagnostic.CameraDiagnostic(d)})
}

func (c *CameraTest) lastDims() capture.Dimensions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dims
}

// Stop releases the camera. Stopping while the device request is pending
// abandons the request.
func (c *CameraTest) Stop() error {
	c.mu.Lock()
	switch c.state {
	case StateStarting:
		c.cancel()
		c.mu.Unlock()
		return nil
	case StateRunning:
	default:
		c.mu.Unlock()
		return ErrNotRunning
	}
	stream := c.stream
	last := c.last
	c.stream = nil
	c.state = StateStopping
	c.mu.Unlock()

	err := stream.Release()
	slog.Info("camera test stopped", "stream_id", stream.ID())
	c.finish(last, true)
	return util.WrapError("release camera", err)
}

// watch releases the stream if the track ends without Stop being called.
func (c *CameraTest) watch(stream *capture.Stream, track capture.Track) {
	select {
	case <-stream.Done():
		return
	case <-track.Done():
	}

	cerr := track.Err()
	if cerr == nil {
		return
	}

	c.mu.Lock()
	if c.stream != stream {
		c.mu.Unlock()
		return
	}
	c.stream = nil
	c.state = StateStopping
	dims := c.dims
	c.mu.Unlock()

	slog.Warn("camera track ended", "stream_id", stream.ID(), "kind", cerr.Kind, "error", cerr.Detail)
	if err := stream.Release(); err != nil {
		slog.Warn("failed to release camera", "error", err)
	}
	c.finish(diagnostic.DeriveWebcamStatus(cerr.Kind, false, dims), true)
}

func (c *CameraTest) finish(d diagnostic.WebcamDiagnostic, record bool) {
	c.mu.Lock()
	c.state = StateStopped
	c.cancel = nil
	runID := c.runID
	if record {
		c.last = d
	}
	c.mu.Unlock()

	if !record {
		return
	}
	c.readiness.RecordCamera(d)
	c.publish(Update{RunID: runID, Component: readiness.Camera, State: StateStopped, Diagnostic: diagnostic.CameraDiagnostic(d)})
}
