// Package video reads the negotiated size of a live camera stream.
package video

import (
	"context"

	"github.com/oszuidwest/zwfm-selftest/internal/capture"
	"github.com/oszuidwest/zwfm-selftest/internal/diagnostic"
)

// Resolution is the negotiated frame size and its quality tier.
type Resolution struct {
	Width   int                    `json:"width"`
	Height  int                    `json:"height"`
	Quality diagnostic.QualityTier `json:"quality"`
	// Known is false when the source never reported dimensions.
	Known bool `json:"known"`
}

// Probe waits until src reports that metadata has loaded, then reads its
// dimensions once. If ctx ends first, or the source has no dimensions, the
// result has tier unknown; this is not an error.
func Probe(ctx context.Context, src capture.DimensionSource) Resolution {
	select {
	case <-src.MetadataLoaded():
	case <-ctx.Done():
		return Resolution{Quality: diagnostic.QualityUnknown}
	}
	return Read(src)
}

// Read returns the dimensions src currently reports, without waiting.
func Read(src capture.DimensionSource) Resolution {
	dims, ok := src.Dimensions()
	if !ok {
		return Resolution{Quality: diagnostic.QualityUnknown}
	}
	return Resolution{
		Width:   dims.Width,
		Height:  dims.Height,
		Quality: diagnostic.ClassifyQuality(dims.Height),
		Known:   true,
	}
}

// Dimensions returns the resolution as capture dimensions.
func (r Resolution) Dimensions() capture.Dimensions {
	return capture.Dimensions{Width: r.Width, Height: r.Height}
}
