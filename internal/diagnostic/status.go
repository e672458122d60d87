// Package diagnostic turns capture outcomes and live measurements into a
// discrete, user-actionable device status.
package diagnostic

import "github.com/oszuidwest/zwfm-selftest/internal/capture"

// Status is the closed set of device test results.
type Status string

// Device statuses.
const (
	StatusOK               Status = "ok"
	StatusPermissionDenied Status = "permission_denied"
	StatusNoDevice         Status = "no_device"
	StatusInUseElsewhere   Status = "in_use_elsewhere"
	StatusBlockedByBrowser Status = "blocked_by_browser"
	StatusInputMuted       Status = "input_muted"
	StatusNoAudioDetected  Status = "no_audio_detected"
	StatusUnknownError     Status = "unknown_error"
)

// Level thresholds for the microphone classifier.
const (
	// SignalThreshold is the level a live signal must exceed to count as working.
	SignalThreshold = 0.05
	// SilenceThreshold is the level at or below which the input counts as silent.
	SilenceThreshold = 0.02
)

// Passed reports whether s is the success case.
func (s Status) Passed() bool {
	return s == StatusOK
}

// errorStatus maps a capture error kind onto its status. ok is false for
// KindNone and for kinds without a dedicated status.
func errorStatus(kind capture.ErrorKind) (Status, bool) {
	switch kind {
	case capture.PermissionDenied:
		return StatusPermissionDenied, true
	case capture.NoDevice:
		return StatusNoDevice, true
	case capture.InUseElsewhere:
		return StatusInUseElsewhere, true
	case capture.BlockedByBrowser:
		return StatusBlockedByBrowser, true
	default:
		return "", false
	}
}

// DeriveMicStatus classifies a microphone test. Rules are applied in order and
// the first match wins:
//
//  1. a live stream with level above SignalThreshold is ok, even if an error is set
//  2. a recognized capture error maps to its status
//  3. a live stream with a disabled track is input_muted
//  4. a live stream with level at or below SilenceThreshold is no_audio_detected
//  5. anything else is unknown_error
//
// Levels between the two thresholds have no rule and fall through to unknown_error.
func DeriveMicStatus(errKind capture.ErrorKind, streamPresent bool, level float64, trackEnabled bool) Status {
	if streamPresent && level > SignalThreshold {
		return StatusOK
	}
	if s, ok := errorStatus(errKind); ok {
		return s
	}
	if streamPresent && !trackEnabled {
		return StatusInputMuted
	}
	if streamPresent && level <= SilenceThreshold {
		return StatusNoAudioDetected
	}
	return StatusUnknownError
}
