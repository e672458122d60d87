package types

import (
	"github.com/oszuidwest/zwfm-selftest/internal/capture"
	"github.com/oszuidwest/zwfm-selftest/internal/network"
	"github.com/oszuidwest/zwfm-selftest/internal/readiness"
	"github.com/oszuidwest/zwfm-selftest/internal/selftest"
)

// WSCommandResult is the standard response for command execution.
type WSCommandResult struct {
	Type    string `json:"type"`            // "<command>_result"
	Success bool   `json:"success"`         // true if command succeeded
	Error   any    `json:"error,omitempty"` // Error message or *ValidationError
	Data    any    `json:"data,omitempty"`  // Optional response data
}

// WSStatusResponse is sent to clients on connect and every few seconds.
type WSStatusResponse struct {
	Type            string            `json:"type"`             // "status"
	FFmpegAvailable bool              `json:"ffmpeg_available"` // FFmpeg binary is available
	Microphone      selftest.Snapshot `json:"microphone"`       // Microphone test state
	Camera          selftest.Snapshot `json:"camera"`           // Camera test state
	NetworkRunning  bool              `json:"network_running"`  // A connectivity run is in progress
	Readiness       readiness.Report  `json:"readiness"`        // Current readiness verdict
	Settings        WSSettings        `json:"settings"`         // Current settings
	Version         VersionInfo       `json:"version"`          // Version information
}

// WSSettings contains the settings sub-object in status responses.
type WSSettings struct {
	AudioInput string `json:"audio_input"` // Selected audio input device
	VideoInput string `json:"video_input"` // Selected video input device
	Platform   string `json:"platform"`    // Operating system platform
}

// WSDiagnosticResponse carries the live device diagnostics.
type WSDiagnosticResponse struct {
	Type       string            `json:"type"` // "diagnostic"
	Microphone selftest.Snapshot `json:"microphone"`
	Camera     selftest.Snapshot `json:"camera"`
}

// WSNetworkProgress is pushed after every connectivity iteration.
type WSNetworkProgress struct {
	Type    string `json:"type"`    // "network_progress"
	Percent int    `json:"percent"` // 0-100
}

// NetworkRunResult is the outcome of one connectivity run.
type NetworkRunResult struct {
	RunID string        `json:"run_id"`
	Stats network.Stats `json:"stats"`
}

// DeviceList contains the available capture devices per kind.
type DeviceList struct {
	Audio []capture.Device `json:"audio"`
	Video []capture.Device `json:"video"`
}

// APIConfigResponse is returned by GET /api/config.
type APIConfigResponse struct {
	Config          any         `json:"config"`           // Configuration snapshot
	Devices         DeviceList  `json:"devices"`          // Available capture devices
	Platform        string      `json:"platform"`         // Operating system platform
	FFmpegAvailable bool        `json:"ffmpeg_available"` // FFmpeg binary is available
	Version         VersionInfo `json:"version"`          // Version information
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}
