//go:build windows

package capture

import (
	"regexp"
	"strings"
)

// Windows has no safe default device; both kinds are auto-detected.
// FFmpeg keeps stdin so it can be stopped with 'q'.

func audioCommand() CommandConfig {
	return CommandConfig{
		Command:    "ffmpeg",
		UsesFFmpeg: true,
		BuildArgs: func(device string) []string {
			return ffmpegAudioArgs("dshow", device, true)
		},
	}
}

func videoCommand() CommandConfig {
	return CommandConfig{
		Command:    "ffmpeg",
		UsesFFmpeg: true,
		BuildArgs: func(device string) []string {
			return ffmpegVideoArgs("dshow", device, nil, true)
		},
	}
}

func deviceListConfig(kind MediaKind) DeviceListConfig {
	suffix, prefix := "audio", "audio="
	if kind == Video {
		suffix, prefix = "video", "video="
	}
	return DeviceListConfig{
		// FFmpeg versions vary in section headers, so match on the "(audio)"/"(video)" suffix.
		Command:       []string{"ffmpeg", "-hide_banner", "-f", "dshow", "-list_devices", "true", "-i", "dummy"},
		DevicePattern: regexp.MustCompile(`\[dshow[^\]]*\]\s*"([^"]+)"\s*\(` + suffix + `\)`),
		ParseDevice: func(matches []string) *Device {
			if len(matches) < 2 {
				return nil
			}
			name := strings.TrimSpace(matches[1])
			return &Device{ID: prefix + name, Name: name}
		},
	}
}
