package capture

import (
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// Device is an available input device.
type Device struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Kind MediaKind `json:"kind"`
}

// DeviceListConfig defines how to list input devices of one kind on a platform.
type DeviceListConfig struct {
	// Command and args that print the device list.
	Command []string

	// Glob lists device nodes directly instead of running a command.
	Glob string

	// StartMarker starts the relevant section of the output (optional).
	StartMarker string

	// StopMarker ends the relevant section of the output (optional).
	StopMarker string

	// DevicePattern extracts device info from one line.
	DevicePattern *regexp.Regexp

	// ParseDevice converts regex matches to a Device.
	ParseDevice func(matches []string) *Device

	// FallbackDevices are returned if detection fails.
	FallbackDevices []Device
}

// Devices returns the available input devices of kind on this platform.
func Devices(kind MediaKind) []Device {
	cfg := deviceListConfig(kind)
	devices := listDevices(cfg)
	for i := range devices {
		devices[i].Kind = kind
	}
	return devices
}

//nolint:gocritic // hugeParam: config is built once per listing
func listDevices(cfg DeviceListConfig) []Device {
	if cfg.Glob != "" {
		paths, err := filepath.Glob(cfg.Glob)
		if err != nil || len(paths) == 0 {
			return cfg.FallbackDevices
		}
		devices := make([]Device, 0, len(paths))
		for _, p := range paths {
			devices = append(devices, Device{ID: p, Name: filepath.Base(p)})
		}
		return devices
	}

	if len(cfg.Command) == 0 {
		return cfg.FallbackDevices
	}

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil && len(output) == 0 {
		slog.Error("failed to list input devices", "command", cfg.Command[0], "error", err)
		return cfg.FallbackDevices
	}

	return parseDeviceOutput(string(output), cfg)
}

// parseDeviceOutput extracts devices from the output of a listing command.
//
//nolint:gocritic // hugeParam: config is built once per listing
func parseDeviceOutput(output string, cfg DeviceListConfig) []Device {
	var devices []Device
	inSection := cfg.StartMarker == ""

	for line := range strings.SplitSeq(output, "\n") {
		if cfg.StartMarker != "" && strings.Contains(line, cfg.StartMarker) {
			inSection = true
			continue
		}
		if cfg.StopMarker != "" && strings.Contains(line, cfg.StopMarker) {
			inSection = false
			continue
		}
		if !inSection || cfg.DevicePattern == nil || cfg.ParseDevice == nil {
			continue
		}
		// Windows DirectShow repeats each device as an "Alternative name" line.
		if strings.Contains(line, "Alternative name") {
			continue
		}
		if matches := cfg.DevicePattern.FindStringSubmatch(line); len(matches) > 0 {
			if dev := cfg.ParseDevice(matches); dev != nil {
				devices = append(devices, *dev)
			}
		}
	}

	if len(devices) == 0 {
		return cfg.FallbackDevices
	}
	return devices
}
