package capture

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind is the closed set of reasons a capture request can fail.
// The zero value means "no error".
type ErrorKind string

// Capture error kinds.
const (
	KindNone         ErrorKind = ""
	PermissionDenied ErrorKind = "permission_denied"
	NoDevice         ErrorKind = "no_device"
	InUseElsewhere   ErrorKind = "in_use_elsewhere"
	// BlockedByBrowser means the host's security policy refused access
	// (browser sandbox, macOS privacy controls, SELinux and friends).
	BlockedByBrowser ErrorKind = "blocked_by_browser"
	UnknownError     ErrorKind = "unknown_error"
)

// CaptureError is the only error type returned by the broker. It carries the
// classified kind; the platform's raw identifier stays in Detail.
type CaptureError struct {
	Kind   ErrorKind
	Media  MediaKind
	Detail string
	Err    error
}

func (e *CaptureError) Error() string {
	msg := "capture failed: " + string(e.Kind)
	if e.Media != "" {
		msg = string(e.Media) + " " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// PlatformError is a rejection reported by a capture platform before
// classification. Name is the platform's error identifier.
type PlatformError struct {
	Name    string
	Message string
}

func (e *PlatformError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

// platformPatterns is evaluated in order; the first group with a matching
// substring decides the kind.
var platformPatterns = []struct {
	kind    ErrorKind
	needles []string
}{
	{PermissionDenied, []string{"notallowed", "permission", "denied"}},
	{NoDevice, []string{"notfound", "devicesnotfound", "no such device", "no such file", "no soundcards", "could not find"}},
	{InUseElsewhere, []string{"notreadable", "trackstart", "busy", "in use"}},
	{BlockedByBrowser, []string{"security", "not authorized"}},
}

// ClassifyPlatformError maps a platform error identifier onto an ErrorKind.
// Unrecognized identifiers map to UnknownError.
func ClassifyPlatformError(id string) ErrorKind {
	lower := strings.ToLower(id)
	for _, p := range platformPatterns {
		for _, needle := range p.needles {
			if strings.Contains(lower, needle) {
				return p.kind
			}
		}
	}
	return UnknownError
}

// Classify converts any error produced while acquiring media into a
// CaptureError. It returns nil for a nil error.
func Classify(media MediaKind, err error) *CaptureError {
	if err == nil {
		return nil
	}

	var cerr *CaptureError
	if errors.As(err, &cerr) {
		if cerr.Media == "" && media != "" {
			clone := *cerr
			clone.Media = media
			return &clone
		}
		return cerr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &CaptureError{Kind: UnknownError, Media: media, Detail: "capture request abandoned", Err: err}
	}

	var perr *PlatformError
	if errors.As(err, &perr) {
		return &CaptureError{
			Kind:   ClassifyPlatformError(perr.Name + " " + perr.Message),
			Media:  media,
			Detail: perr.Error(),
			Err:    err,
		}
	}

	return &CaptureError{Kind: ClassifyPlatformError(err.Error()), Media: media, Detail: err.Error(), Err: err}
}

// KindOf returns the ErrorKind carried by err: KindNone for nil and
// UnknownError for errors that are not capture errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var cerr *CaptureError
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return UnknownError
}
