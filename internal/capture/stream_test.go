package capture

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTrack is a minimal in-memory Track.
type fakeTrack struct {
	kind    MediaKind
	enabled atomic.Bool
	stops   atomic.Int32
	done    chan struct{}
	err     *CaptureError
}

func newFakeTrack(kind MediaKind) *fakeTrack {
	t := &fakeTrack{kind: kind, done: make(chan struct{})}
	t.enabled.Store(true)
	return t
}

func (t *fakeTrack) Kind() MediaKind       { return t.kind }
func (t *fakeTrack) Label() string         { return "fake " + string(t.kind) }
func (t *fakeTrack) Enabled() bool         { return t.enabled.Load() }
func (t *fakeTrack) SetEnabled(on bool)    { t.enabled.Store(on) }
func (t *fakeTrack) Done() <-chan struct{} { return t.done }
func (t *fakeTrack) Err() *CaptureError    { return t.err }

func (t *fakeTrack) Stop() error {
	if t.stops.Add(1) == 1 {
		close(t.done)
	}
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRequestKinds(t *testing.T) {
	assert.Empty(t, Request{}.Kinds())
	assert.Equal(t, []MediaKind{Audio}, Request{WantsAudio: true}.Kinds())
	assert.Equal(t, []MediaKind{Audio, Video}, Request{WantsAudio: true, WantsVideo: true}.Kinds())
}

func TestStreamReleaseStopsEverything(t *testing.T) {
	audio := newFakeTrack(Audio)
	video := newFakeTrack(Video)

	var order []string
	var released int
	s := newStream("s1", []Track{audio, video}, func() { released++ })

	require.NoError(t, s.Attach(closerFunc(func() error { order = append(order, "analyser"); return nil })))
	require.NoError(t, s.Attach(closerFunc(func() error { order = append(order, "meter"); return nil })))

	require.NoError(t, s.Release())
	assert.True(t, s.Released())
	assert.Equal(t, []string{"meter", "analyser"}, order)
	assert.EqualValues(t, 1, audio.stops.Load())
	assert.EqualValues(t, 1, video.stops.Load())
	assert.Equal(t, 1, released)

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestStreamReleaseIdempotent(t *testing.T) {
	track := newFakeTrack(Audio)
	var released int
	s := newStream("s1", []Track{track}, func() { released++ })

	require.NoError(t, s.Release())
	require.NoError(t, s.Release())
	assert.EqualValues(t, 1, track.stops.Load())
	assert.Equal(t, 1, released)
}

func TestStreamReleaseJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	s := newStream("s1", []Track{newFakeTrack(Audio)}, nil)
	require.NoError(t, s.Attach(closerFunc(func() error { return boom })))

	assert.ErrorIs(t, s.Release(), boom)
}

func TestStreamAttachAfterRelease(t *testing.T) {
	s := newStream("s1", nil, nil)
	require.NoError(t, s.Release())

	var closed bool
	err := s.Attach(closerFunc(func() error { closed = true; return nil }))
	assert.ErrorIs(t, err, ErrStreamReleased)
	assert.True(t, closed)
}

func TestStreamTrackLookup(t *testing.T) {
	video := newFakeTrack(Video)
	s := newStream("s1", []Track{video}, nil)

	got, ok := s.Track(Video)
	require.True(t, ok)
	assert.Same(t, video, got)

	_, ok = s.Track(Audio)
	assert.False(t, ok)

	tracks := s.Tracks()
	tracks[0] = nil
	assert.NotNil(t, s.Tracks()[0])
}
