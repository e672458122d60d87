package video

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oszuidwest/zwfm-selftest/internal/capture"
	"github.com/oszuidwest/zwfm-selftest/internal/diagnostic"
)

type fakeSource struct {
	loaded chan struct{}
	dims   capture.Dimensions
	ok     bool
}

func (s *fakeSource) MetadataLoaded() <-chan struct{} { return s.loaded }

func (s *fakeSource) Dimensions() (capture.Dimensions, bool) { return s.dims, s.ok }

func TestProbeAfterMetadata(t *testing.T) {
	src := &fakeSource{loaded: make(chan struct{}), dims: capture.Dimensions{Width: 1920, Height: 1080}, ok: true}
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(src.loaded)
	}()

	r := Probe(context.Background(), src)
	assert.Equal(t, Resolution{Width: 1920, Height: 1080, Quality: diagnostic.QualityFullHD, Known: true}, r)
	assert.Equal(t, capture.Dimensions{Width: 1920, Height: 1080}, r.Dimensions())
}

func TestProbeMissingDimensions(t *testing.T) {
	src := &fakeSource{loaded: make(chan struct{})}
	close(src.loaded)

	r := Probe(context.Background(), src)
	assert.False(t, r.Known)
	assert.Equal(t, diagnostic.QualityUnknown, r.Quality)
}

func TestProbeCanceled(t *testing.T) {
	src := &fakeSource{loaded: make(chan struct{}), dims: capture.Dimensions{Width: 640, Height: 480}, ok: true}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	r := Probe(ctx, src)
	assert.Equal(t, diagnostic.QualityUnknown, r.Quality)
	assert.Zero(t, r.Height)
}

func TestRead(t *testing.T) {
	src := &fakeSource{dims: capture.Dimensions{Width: 1280, Height: 720}, ok: true}
	assert.Equal(t, diagnostic.QualityHD, Read(src).Quality)
}
