package diagnostic

// DeviceDiagnostic is the published state of one device test. It is a value:
// every tick produces a new one rather than mutating the last.
type DeviceDiagnostic struct {
	Status Status `json:"status"`

	// Level is the normalized input level in [0, 1] (microphone only).
	Level *float64 `json:"level,omitempty"`
	// RMSDB and PeakDB are the input level in dBFS (microphone only).
	RMSDB  *float64 `json:"rms_db,omitempty"`
	PeakDB *float64 `json:"peak_db,omitempty"`

	Width   int         `json:"width,omitempty"`
	Height  int         `json:"height,omitempty"`
	Quality QualityTier `json:"quality,omitempty"`
}

// MicDiagnostic builds the diagnostic for a microphone tick.
func MicDiagnostic(status Status, level, rmsDB, peakDB float64) DeviceDiagnostic {
	return DeviceDiagnostic{
		Status: status,
		Level:  &level,
		RMSDB:  &rmsDB,
		PeakDB: &peakDB,
	}
}

// CameraDiagnostic converts a webcam classification into a DeviceDiagnostic.
func CameraDiagnostic(w WebcamDiagnostic) DeviceDiagnostic {
	return DeviceDiagnostic{
		Status:  w.Status,
		Width:   w.Width,
		Height:  w.Height,
		Quality: w.Quality,
	}
}

// ErrorDiagnostic is the diagnostic of a test that has no live measurement.
func ErrorDiagnostic(status Status) DeviceDiagnostic {
	return DeviceDiagnostic{Status: status}
}
