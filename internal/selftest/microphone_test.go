package selftest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oszuidwest/zwfm-selftest/internal/audio"
	"github.com/oszuidwest/zwfm-selftest/internal/capture"
	"github.com/oszuidwest/zwfm-selftest/internal/diagnostic"
	"github.com/oszuidwest/zwfm-selftest/internal/readiness"
)

const waitFor = 2 * time.Second

func newMicSession(t *testing.T, track capture.Track) (*Session, *manualScheduler, *updateLog) {
	t.Helper()
	ctrl := gomock.NewController(t)
	platform := capture.NewMockPlatform(ctrl)
	platform.EXPECT().Open(gomock.Any(), capture.Request{WantsAudio: true}).Return([]capture.Track{track}, nil)

	sched := &manualScheduler{}
	log := &updateLog{}
	return NewSession(platform, nil, Options{Scheduler: sched, Publish: log.add}), sched, log
}

func TestMicrophoneSignalIsOK(t *testing.T) {
	track := newFakeAudioTrack()
	s, sched, log := newMicSession(t, track)

	require.NoError(t, s.Microphone.Start(context.Background()))
	assert.True(t, s.Broker.Held(capture.Audio))
	track.play()

	require.Eventually(t, func() bool {
		sched.fire()
		return s.Microphone.Snapshot().Diagnostic.Status == diagnostic.StatusOK
	}, waitFor, 5*time.Millisecond)

	snap := s.Microphone.Snapshot()
	assert.Equal(t, StateRunning, snap.State)
	require.NotNil(t, snap.Diagnostic.Level)
	assert.Greater(t, *snap.Diagnostic.Level, diagnostic.SignalThreshold)
	assert.Equal(t, readiness.Microphone, log.last().Component)

	require.NoError(t, s.Microphone.Stop())
	assert.False(t, s.Broker.Held(capture.Audio))
	assert.EqualValues(t, 1, track.stops.Load())
	assert.Zero(t, sched.fire(), "meter must not tick after release")

	res, ok := s.Readiness.Result(readiness.Microphone)
	require.True(t, ok)
	assert.True(t, res.Passed)
	assert.Equal(t, StateStopped, log.last().State)

	assert.ErrorIs(t, s.Microphone.Stop(), ErrNotRunning)
}

func TestMicrophoneMuted(t *testing.T) {
	track := newFakeAudioTrack()
	s, sched, _ := newMicSession(t, track)

	require.NoError(t, s.Microphone.Start(context.Background()))
	require.NoError(t, s.Microphone.SetMuted(true))
	assert.False(t, track.Enabled())

	sched.fire()
	assert.Equal(t, diagnostic.StatusInputMuted, s.Microphone.Snapshot().Diagnostic.Status)

	require.NoError(t, s.Microphone.SetMuted(false))
	sched.fire()
	assert.Equal(t, diagnostic.StatusNoAudioDetected, s.Microphone.Snapshot().Diagnostic.Status)

	require.NoError(t, s.Microphone.Stop())
	assert.ErrorIs(t, s.Microphone.SetMuted(true), ErrNotRunning)
	assert.False(t, s.Readiness.Report().Ready)
}

func TestMicrophoneStopBeforeFirstTick(t *testing.T) {
	track := newFakeAudioTrack()
	s, _, _ := newMicSession(t, track)

	require.NoError(t, s.Microphone.Start(context.Background()))
	require.NoError(t, s.Microphone.Stop())

	res, ok := s.Readiness.Result(readiness.Microphone)
	require.True(t, ok)
	assert.Equal(t, string(diagnostic.StatusNoAudioDetected), res.Status)
}

func TestMicrophoneAlreadyRunning(t *testing.T) {
	track := newFakeAudioTrack()
	s, _, _ := newMicSession(t, track)

	require.NoError(t, s.Microphone.Start(context.Background()))
	assert.ErrorIs(t, s.Microphone.Start(context.Background()), ErrAlreadyRunning)
	require.NoError(t, s.Close())
}

func TestMicrophoneTrackEndsUnexpectedly(t *testing.T) {
	track := newFakeAudioTrack()
	s, sched, log := newMicSession(t, track)

	require.NoError(t, s.Microphone.Start(context.Background()))
	track.fail(capture.InUseElsewhere)

	require.Eventually(t, func() bool {
		return s.Microphone.Snapshot().State == StateStopped
	}, waitFor, 5*time.Millisecond)

	assert.Equal(t, diagnostic.StatusInUseElsewhere, s.Microphone.Snapshot().Diagnostic.Status)
	assert.False(t, s.Broker.Held(capture.Audio))
	assert.Zero(t, sched.fire())
	assert.Equal(t, diagnostic.StatusInUseElsewhere, log.last().Diagnostic.Status)

	res, _ := s.Readiness.Result(readiness.Microphone)
	assert.Equal(t, "in_use_elsewhere", res.Status)
}

func TestMicrophonePermissionDenied(t *testing.T) {
	ctrl := gomock.NewController(t)
	platform := capture.NewMockPlatform(ctrl)
	platform.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil, &capture.PlatformError{Name: "NotAllowedError"})

	log := &updateLog{}
	s := NewSession(platform, nil, Options{Scheduler: &manualScheduler{}, Publish: log.add})

	err := s.Microphone.Start(context.Background())
	assert.Equal(t, capture.PermissionDenied, capture.KindOf(err))

	snap := s.Microphone.Snapshot()
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, diagnostic.StatusPermissionDenied, snap.Diagnostic.Status)
	assert.Equal(t, diagnostic.StatusPermissionDenied, log.last().Diagnostic.Status)

	report := s.Readiness.Report()
	assert.False(t, report.Ready)
	assert.Equal(t, []readiness.Component{readiness.Microphone}, report.Failing)
}

func TestMicrophoneStopAbandonsPendingRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	platform := capture.NewMockPlatform(ctrl)
	platform.EXPECT().Open(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ capture.Request) ([]capture.Track, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	s := NewSession(platform, nil, Options{Scheduler: &manualScheduler{}})

	errc := make(chan error, 1)
	go func() { errc <- s.Microphone.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return s.Microphone.Snapshot().State == StateStarting
	}, waitFor, time.Millisecond)
	require.NoError(t, s.Microphone.Stop())

	err := <-errc
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateStopped, s.Microphone.Snapshot().State)
	assert.False(t, s.Broker.Held(capture.Audio))

	_, recorded := s.Readiness.Result(readiness.Microphone)
	assert.False(t, recorded)
}

// stoppingScheduler calls stop from the first frame request, which the level
// meter makes while the microphone is still starting.
type stoppingScheduler struct {
	manualScheduler
	stop func() error
	once sync.Once
	err  error
}

func (s *stoppingScheduler) RequestFrame(fn func()) audio.CancelFunc {
	s.once.Do(func() { s.err = s.stop() })
	return s.manualScheduler.RequestFrame(fn)
}

func TestMicrophoneStopWhileWiringReleasesDevice(t *testing.T) {
	track := newFakeAudioTrack()
	ctrl := gomock.NewController(t)
	platform := capture.NewMockPlatform(ctrl)
	platform.EXPECT().Open(gomock.Any(), capture.Request{WantsAudio: true}).Return([]capture.Track{track}, nil)

	sched := &stoppingScheduler{}
	s := NewSession(platform, nil, Options{Scheduler: sched})
	sched.stop = s.Microphone.Stop

	err := s.Microphone.Start(context.Background())
	require.NoError(t, sched.err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, StateStopped, s.Microphone.Snapshot().State)
	assert.False(t, s.Broker.Held(capture.Audio))
	assert.EqualValues(t, 1, track.stops.Load())
	assert.Zero(t, sched.fire(), "meter must not tick after release")
	assert.ErrorIs(t, s.Microphone.Stop(), ErrNotRunning)

	_, recorded := s.Readiness.Result(readiness.Microphone)
	assert.False(t, recorded)
}

func TestMicrophoneUpdateCarriesCurrentState(t *testing.T) {
	log := &updateLog{}
	m := NewMicrophoneTest(nil, readiness.NewEvaluator(), nil, log.add)

	m.mu.Lock()
	m.state = StateStarting
	m.mu.Unlock()
	m.update(diagnostic.ErrorDiagnostic(diagnostic.StatusNoAudioDetected))
	assert.Equal(t, StateStarting, log.last().State)

	m.mu.Lock()
	m.state = StateRunning
	m.mu.Unlock()
	m.update(diagnostic.ErrorDiagnostic(diagnostic.StatusNoAudioDetected))
	assert.Equal(t, StateRunning, log.last().State)
}
