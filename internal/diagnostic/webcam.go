package diagnostic

import "github.com/oszuidwest/zwfm-selftest/internal/capture"

// QualityTier is a coarse bucket for the negotiated video height.
type QualityTier string

// Quality tiers.
const (
	QualityUnknown QualityTier = "unknown"
	QualityLow     QualityTier = "low"
	QualityHD      QualityTier = "hd"
	QualityFullHD  QualityTier = "full_hd"
)

// ClassifyQuality maps a frame height onto a quality tier. It depends on
// height alone.
func ClassifyQuality(height int) QualityTier {
	switch {
	case height >= 1080:
		return QualityFullHD
	case height >= 720:
		return QualityHD
	case height > 0:
		return QualityLow
	default:
		return QualityUnknown
	}
}

// WebcamDiagnostic is the result of the webcam classifier.
type WebcamDiagnostic struct {
	Status  Status      `json:"status"`
	Width   int         `json:"width,omitempty"`
	Height  int         `json:"height,omitempty"`
	Quality QualityTier `json:"quality"`
}

// DeriveWebcamStatus classifies a webcam test. A live stream is ok; otherwise
// a recognized capture error maps to its status and anything else is
// unknown_error. The quality tier is computed from dims regardless of status,
// so an error still reports the last known tier.
func DeriveWebcamStatus(errKind capture.ErrorKind, streamPresent bool, dims capture.Dimensions) WebcamDiagnostic {
	d := WebcamDiagnostic{
		Status:  StatusUnknownError,
		Width:   dims.Width,
		Height:  dims.Height,
		Quality: ClassifyQuality(dims.Height),
	}
	if streamPresent {
		d.Status = StatusOK
	} else if s, ok := errorStatus(errKind); ok {
		d.Status = s
	}
	return d
}
