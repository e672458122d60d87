// Package capture acquires exclusive access to audio and video input devices
// and reports failures as a closed set of error kinds.
package capture

//go:generate mockgen -destination=mock_capture.go -package=capture github.com/oszuidwest/zwfm-selftest/internal/capture Platform,Track

import (
	"context"
	"io"
)

// Platform opens capture tracks on the host. Implementations may block while
// the host asks the user for permission.
type Platform interface {
	Open(ctx context.Context, req Request) ([]Track, error)
}

// Track is one media channel of a stream.
type Track interface {
	Kind() MediaKind
	Label() string
	Enabled() bool
	SetEnabled(enabled bool)
	// Done is closed when the track ends, either stopped or failed.
	Done() <-chan struct{}
	// Err returns the classified reason the track ended unexpectedly, if any.
	Err() *CaptureError
	Stop() error
}

// PCMFormat describes interleaved signed 16-bit little-endian PCM.
type PCMFormat struct {
	SampleRate int
	Channels   int
}

// PCMSource is implemented by audio tracks that expose raw samples.
type PCMSource interface {
	PCM() io.Reader
	Format() PCMFormat
}

// Dimensions is a negotiated video frame size.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DimensionSource is implemented by video tracks that report their negotiated size.
type DimensionSource interface {
	// MetadataLoaded is closed once the stream header was seen or the track ended.
	MetadataLoaded() <-chan struct{}
	Dimensions() (Dimensions, bool)
}
