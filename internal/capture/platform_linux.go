//go:build linux

package capture

import (
	"fmt"
	"regexp"
)

func audioCommand() CommandConfig {
	return CommandConfig{
		Command:       "arecord",
		DefaultDevice: "default",
		BuildArgs: func(device string) []string {
			return []string{
				"-D", device,
				"-f", "S16_LE",
				"-r", fmt.Sprint(SampleRate),
				"-c", fmt.Sprint(Channels),
				"-t", "raw",
				"-q",
				"-",
			}
		},
	}
}

func videoCommand() CommandConfig {
	return CommandConfig{
		Command:       "ffmpeg",
		DefaultDevice: "/dev/video0",
		UsesFFmpeg:    true,
		BuildArgs: func(device string) []string {
			return ffmpegVideoArgs("v4l2", device, nil, false)
		},
	}
}

func deviceListConfig(kind MediaKind) DeviceListConfig {
	if kind == Video {
		return DeviceListConfig{Glob: "/dev/video*"}
	}
	return DeviceListConfig{
		Command:       []string{"arecord", "-l"},
		DevicePattern: regexp.MustCompile(`card\s+(\d+):\s+(\w+)\s+\[([^\]]+)\]`),
		ParseDevice: func(matches []string) *Device {
			if len(matches) < 4 {
				return nil
			}
			return &Device{ID: "default:CARD=" + matches[2], Name: matches[3]}
		},
		FallbackDevices: []Device{{ID: "default", Name: "System default"}},
	}
}
