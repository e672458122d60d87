package selftest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/oszuidwest/zwfm-selftest/internal/audio"
	"github.com/oszuidwest/zwfm-selftest/internal/capture"
	"github.com/oszuidwest/zwfm-selftest/internal/diagnostic"
	"github.com/oszuidwest/zwfm-selftest/internal/readiness"
	"github.com/oszuidwest/zwfm-selftest/internal/util"
)

// MicrophoneTest acquires the microphone, meters its level and classifies
// every meter tick. It is safe for concurrent use.
type MicrophoneTest struct {
	broker    *capture.Broker
	readiness *readiness.Evaluator
	scheduler audio.FrameScheduler
	meterOpts []audio.MeterOption
	publish   func(Update)

	mu     sync.Mutex
	state  State
	runID  string
	cancel context.CancelFunc
	stream *capture.Stream
	track  capture.Track
	last   diagnostic.DeviceDiagnostic
}

// NewMicrophoneTest creates a stopped microphone test.
func NewMicrophoneTest(broker *capture.Broker, eval *readiness.Evaluator, scheduler audio.FrameScheduler, publish func(Update), opts ...audio.MeterOption) *MicrophoneTest {
	return &MicrophoneTest{
		broker:    broker,
		readiness: eval,
		scheduler: scheduler,
		meterOpts: opts,
		publish:   publish,
		state:     StateStopped,
	}
}

// Snapshot returns the current state and diagnostic.
func (m *MicrophoneTest) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, Diagnostic: m.last}
}

// Start acquires the microphone and starts metering. It blocks until the
// device is granted, refused or ctx is done. A refusal is published and
// recorded before the *capture.CaptureError is returned.
func (m *MicrophoneTest) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateStopped {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	m.state = StateStarting
	m.cancel = cancel
	m.runID = uuid.NewString()
	runID := m.runID
	m.mu.Unlock()
	defer cancel()

	slog.Info("starting microphone test", "run_id", runID)

	stream, err := m.broker.RequestCapture(ctx, capture.Request{WantsAudio: true})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.finish(diagnostic.DeviceDiagnostic{}, false)
			return err
		}
		status := diagnostic.DeriveMicStatus(capture.KindOf(err), false, 0, false)
		m.finish(diagnostic.ErrorDiagnostic(status), true)
		return err
	}

	track, err := m.attachMeter(stream)
	if err != nil {
		_ = stream.Release() //nolint:errcheck // Already failing
		m.finish(diagnostic.ErrorDiagnostic(diagnostic.StatusUnknownError), true)
		return err
	}

	// Stop cancels ctx under m.mu, so checking here cannot miss it.
	m.mu.Lock()
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		_ = stream.Release() //nolint:errcheck // Abandoned start
		m.finish(diagnostic.DeviceDiagnostic{}, false)
		return err
	}
	m.stream = stream
	m.track = track
	m.state = StateRunning
	m.mu.Unlock()

	go m.watch(stream, track)
	return nil
}

// attachMeter wires an analyser and a level meter to the stream's audio track.
func (m *MicrophoneTest) attachMeter(stream *capture.Stream) (capture.Track, error) {
	track, ok := stream.Track(capture.Audio)
	if !ok {
		return nil, ErrNoTrack
	}
	src, ok := track.(capture.PCMSource)
	if !ok {
		return nil, ErrNoTrack
	}

	analyser, err := audio.NewAnalyser(audio.DefaultFFTSize)
	if err != nil {
		return nil, util.WrapError("create analyser", err)
	}
	if err := stream.Attach(analyser); err != nil {
		return nil, err
	}

	meter, err := audio.NewMeter(src, analyser, m.scheduler, func(r audio.Reading) {
		status := diagnostic.DeriveMicStatus(capture.KindNone, true, r.Level, track.Enabled())
		m.update(diagnostic.MicDiagnostic(status, r.Level, r.RMSDB, r.HeldPeakDB))
	}, m.meterOpts...)
	if err != nil {
		return nil, util.WrapError("create level meter", err)
	}
	// Attached last so it is closed first.
	if err := stream.Attach(meter); err != nil {
		return nil, err
	}
	meter.Start()
	return track, nil
}

func (m *MicrophoneTest) update(d diagnostic.DeviceDiagnostic) {
	m.mu.Lock()
	if m.state != StateRunning && m.state != StateStarting {
		m.mu.Unlock()
		return
	}
	m.last = d
	runID, state := m.runID, m.state
	m.mu.Unlock()

	m.readiness.RecordMicrophone(d)
	m.publish(Update{RunID: runID, Component: readiness.Microphone, State: state, Diagnostic: d})
}

// SetMuted disables or re-enables the input track.
func (m *MicrophoneTest) SetMuted(muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRunning || m.track == nil {
		return ErrNotRunning
	}
	m.track.SetEnabled(!muted)
	slog.Info("microphone input toggled", "muted", muted)
	return nil
}

// Stop releases the microphone. Stopping while the device request is pending
// abandons the request.
func (m *MicrophoneTest) Stop() error {
	m.mu.Lock()
	switch m.state {
	case StateStarting:
		m.cancel()
		m.mu.Unlock()
		return nil
	case StateRunning:
	default:
		m.mu.Unlock()
		return ErrNotRunning
	}
	stream := m.stream
	last := m.last
	m.stream = nil
	m.track = nil
	m.state = StateStopping
	m.mu.Unlock()

	err := stream.Release()
	slog.Info("microphone test stopped", "stream_id", stream.ID())

	if last.Status == "" {
		// Stopped before the first tick: the stream was live but nothing was heard.
		last = diagnostic.ErrorDiagnostic(diagnostic.DeriveMicStatus(capture.KindNone, true, 0, true))
	}
	m.finish(last, true)
	return util.WrapError("release microphone", err)
}

// watch releases the stream if the track ends without Stop being called.
func (m *MicrophoneTest) watch(stream *capture.Stream, track capture.Track) {
	select {
	case <-stream.Done():
		return
	case <-track.Done():
	}

	cerr := track.Err()
	if cerr == nil {
		return
	}

	m.mu.Lock()
	if m.stream != stream {
		m.mu.Unlock()
		return
	}
	m.stream = nil
	m.track = nil
	m.state = StateStopping
	m.mu.Unlock()

	slog.Warn("microphone track ended", "stream_id", stream.ID(), "kind", cerr.Kind, "error", cerr.Detail)
	if err := stream.Release(); err != nil {
		slog.Warn("failed to release microphone", "error", err)
	}
	m.finish(diagnostic.ErrorDiagnostic(diagnostic.DeriveMicStatus(cerr.Kind, false, 0, false)), true)
}

// finish moves the test to stopped and optionally records and publishes d.
func (m *MicrophoneTest) finish(d diagnostic.DeviceDiagnostic, record bool) {
	m.mu.Lock()
	m.state = StateStopped
	m.cancel = nil
	runID := m.runID
	if record {
		m.last = d
	}
	m.mu.Unlock()

	if !record {
		return
	}
	m.readiness.RecordMicrophone(d)
	m.publish(Update{RunID: runID, Component: readiness.Microphone, State: StateStopped, Diagnostic: d})
}
