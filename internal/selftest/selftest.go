// Package selftest runs the microphone, camera and connectivity tests of one
// session and feeds their results into the readiness evaluator.
package selftest

import (
	"errors"
	"time"

	"github.com/oszuidwest/zwfm-selftest/internal/audio"
	"github.com/oszuidwest/zwfm-selftest/internal/capture"
	"github.com/oszuidwest/zwfm-selftest/internal/diagnostic"
	"github.com/oszuidwest/zwfm-selftest/internal/network"
	"github.com/oszuidwest/zwfm-selftest/internal/readiness"
)

// Sentinel errors for test operations.
var (
	ErrAlreadyRunning = errors.New("test already running")
	ErrNotRunning     = errors.New("test not running")
	ErrNoTrack        = errors.New("stream has no usable track")
)

// State is the lifecycle state of a device test.
type State string

const (
	// StateStopped indicates the test is not running.
	StateStopped State = "stopped"
	// StateStarting indicates the test is waiting for the device.
	StateStarting State = "starting"
	// StateRunning indicates the test holds the device and is measuring.
	StateRunning State = "running"
	// StateStopping indicates the device is being released.
	StateStopping State = "stopping"
)

// Update is published whenever a device test produces a new diagnostic.
type Update struct {
	RunID      string                      `json:"run_id"`
	Component  readiness.Component         `json:"component"`
	State      State                       `json:"state"`
	Diagnostic diagnostic.DeviceDiagnostic `json:"diagnostic"`
}

// Snapshot is the current state of a device test.
type Snapshot struct {
	State      State                       `json:"state"`
	Diagnostic diagnostic.DeviceDiagnostic `json:"diagnostic"`
}

// Options configures a Session.
type Options struct {
	// Scheduler drives the microphone level meter. Defaults to 60 fps.
	Scheduler audio.FrameScheduler
	// PeakHold is how long the microphone dB peak is held. Zero selects the default.
	PeakHold time.Duration
	// Connectivity returns the probe configuration for each network run.
	Connectivity func() network.Config
	// Publish receives every device update. It must not block.
	Publish func(Update)
}

// Session groups the tests that share one broker and one readiness evaluator.
type Session struct {
	Broker     *capture.Broker
	Readiness  *readiness.Evaluator
	Microphone *MicrophoneTest
	Camera     *CameraTest
	Network    *NetworkTest
}

// NewSession creates a session on top of a capture platform and a prober.
func NewSession(platform capture.Platform, prober network.Prober, opts Options) *Session {
	if opts.Scheduler == nil {
		opts.Scheduler = audio.NewIntervalScheduler(audio.DefaultFrameRate)
	}
	if opts.Connectivity == nil {
		opts.Connectivity = func() network.Config { return network.Config{} }
	}
	if opts.Publish == nil {
		opts.Publish = func(Update) {}
	}

	broker := capture.NewBroker(platform)
	eval := readiness.NewEvaluator()
	return &Session{
		Broker:     broker,
		Readiness:  eval,
		Microphone: NewMicrophoneTest(broker, eval, opts.Scheduler, opts.Publish, audio.WithPeakHold(opts.PeakHold)),
		Camera:     NewCameraTest(broker, eval, opts.Publish),
		Network:    NewNetworkTest(prober, eval, opts.Connectivity),
	}
}

// Close stops every running device test.
func (s *Session) Close() error {
	var errs []error
	if err := s.Microphone.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		errs = append(errs, err)
	}
	if err := s.Camera.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
