package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Broker hands out streams and serializes access per media kind: while a
// stream (or a pending request) holds a kind, further requests for that kind
// fail with InUseElsewhere. It is safe for concurrent use.
type Broker struct {
	platform Platform

	mu   sync.Mutex
	held map[MediaKind]string // media kind -> owning stream ID
}

// NewBroker creates a broker on top of the given platform.
func NewBroker(p Platform) *Broker {
	return &Broker{
		platform: p,
		held:     make(map[MediaKind]string),
	}
}

// RequestCapture acquires the requested media kinds. It blocks until the
// platform answers or ctx is done; there is no internal timeout. Every failure
// is returned as a *CaptureError.
func (b *Broker) RequestCapture(ctx context.Context, req Request) (*Stream, error) {
	kinds := req.Kinds()
	media := singleKind(kinds)
	if len(kinds) == 0 {
		return nil, &CaptureError{Kind: UnknownError, Detail: "no media kind requested"}
	}

	id := uuid.NewString()
	if kind, busy := b.reserve(id, kinds); busy {
		slog.Warn("capture request rejected, device held", "media", kind)
		return nil, &CaptureError{Kind: InUseElsewhere, Media: kind, Detail: "device is held by another test"}
	}

	slog.Info("requesting capture", "stream_id", id, "audio", req.WantsAudio, "video", req.WantsVideo)

	tracks, err := b.platform.Open(ctx, req)
	if err == nil && len(tracks) == 0 {
		err = &PlatformError{Name: "NotFoundError", Message: "platform returned no tracks"}
	}
	if err != nil {
		b.free(id)
		cerr := Classify(media, err)
		slog.Warn("capture request failed", "stream_id", id, "kind", cerr.Kind, "error", err)
		return nil, cerr
	}

	slog.Info("capture acquired", "stream_id", id, "tracks", len(tracks))
	return newStream(id, tracks, func() {
		b.free(id)
		slog.Info("capture released", "stream_id", id)
	}), nil
}

// Release releases the stream. It is a convenience for callers holding a
// possibly nil stream; releasing twice is a no-op.
func (b *Broker) Release(s *Stream) error {
	if s == nil {
		return nil
	}
	return s.Release()
}

// Held reports whether a stream or pending request currently holds kind.
func (b *Broker) Held(kind MediaKind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.held[kind]
	return ok
}

// reserve claims all kinds for id, or returns the first kind already held.
func (b *Broker) reserve(id string, kinds []MediaKind) (MediaKind, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range kinds {
		if _, busy := b.held[k]; busy {
			return k, true
		}
	}
	for _, k := range kinds {
		b.held[k] = id
	}
	return "", false
}

func (b *Broker) free(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, owner := range b.held {
		if owner == id {
			delete(b.held, k)
		}
	}
}

func singleKind(kinds []MediaKind) MediaKind {
	if len(kinds) == 1 {
		return kinds[0]
	}
	return ""
}
