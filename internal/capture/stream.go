package capture

import (
	"errors"
	"io"
	"sync"
)

// ErrStreamReleased is returned when attaching to a stream that was already released.
var ErrStreamReleased = errors.New("stream already released")

// MediaKind identifies the kind of media a track carries.
type MediaKind string

// Media kinds.
const (
	Audio MediaKind = "audio"
	Video MediaKind = "video"
)

// Request describes which media kinds a test wants to capture.
type Request struct {
	WantsVideo bool `json:"wants_video"`
	WantsAudio bool `json:"wants_audio"`
}

// Kinds returns the requested media kinds in a fixed order.
func (r Request) Kinds() []MediaKind {
	var kinds []MediaKind
	if r.WantsAudio {
		kinds = append(kinds, Audio)
	}
	if r.WantsVideo {
		kinds = append(kinds, Video)
	}
	return kinds
}

// Stream is a live capture handle. The component that requested it owns it
// exclusively and must call Release on every exit path.
type Stream struct {
	id        string
	tracks    []Track
	onRelease func()

	mu       sync.Mutex
	closers  []io.Closer
	released bool
	done     chan struct{}
}

func newStream(id string, tracks []Track, onRelease func()) *Stream {
	return &Stream{
		id:        id,
		tracks:    tracks,
		onRelease: onRelease,
		done:      make(chan struct{}),
	}
}

// ID returns the stream identifier used in logs.
func (s *Stream) ID() string {
	return s.id
}

// Tracks returns the stream's tracks.
func (s *Stream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Track returns the first track of the given kind.
func (s *Stream) Track(kind MediaKind) (Track, bool) {
	for _, t := range s.tracks {
		if t.Kind() == kind {
			return t, true
		}
	}
	return nil, false
}

// Attach ties a processing context (analyser, meter) to the stream so that
// Release closes it. Attaching to a released stream closes c immediately.
func (s *Stream) Attach(c io.Closer) error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return errors.Join(ErrStreamReleased, c.Close())
	}
	s.closers = append(s.closers, c)
	s.mu.Unlock()
	return nil
}

// Released reports whether Release has been called.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Done is closed once the stream has been released.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Release closes every attached processing context, stops every track and
// frees the device. Calling it more than once is a no-op.
func (s *Stream) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	// Consumers go first so nothing reads from a stopped track.
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, t := range s.tracks {
		if err := t.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	close(s.done)
	if s.onRelease != nil {
		s.onRelease()
	}
	return errors.Join(errs...)
}
