//go:build darwin

package capture

import "regexp"

var avfoundationPattern = regexp.MustCompile(`\[AVFoundation[^\]]*\]\s*\[(\d+)\]\s*(.+)`)

func audioCommand() CommandConfig {
	return CommandConfig{
		Command:       "ffmpeg",
		DefaultDevice: ":0",
		UsesFFmpeg:    true,
		BuildArgs: func(device string) []string {
			return ffmpegAudioArgs("avfoundation", device, false)
		},
	}
}

func videoCommand() CommandConfig {
	return CommandConfig{
		Command:       "ffmpeg",
		DefaultDevice: "0:none",
		UsesFFmpeg:    true,
		BuildArgs: func(device string) []string {
			return ffmpegVideoArgs("avfoundation", device, []string{"-framerate", "30"}, false)
		},
	}
}

func deviceListConfig(kind MediaKind) DeviceListConfig {
	cfg := DeviceListConfig{
		Command:       []string{"ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""},
		DevicePattern: avfoundationPattern,
	}
	if kind == Video {
		cfg.StartMarker = "AVFoundation video devices:"
		cfg.StopMarker = "AVFoundation audio devices:"
		cfg.ParseDevice = func(matches []string) *Device {
			if len(matches) < 3 {
				return nil
			}
			return &Device{ID: matches[1] + ":none", Name: matches[2]}
		}
		return cfg
	}
	cfg.StartMarker = "AVFoundation audio devices:"
	cfg.StopMarker = "AVFoundation video devices:"
	cfg.ParseDevice = func(matches []string) *Device {
		if len(matches) < 3 {
			return nil
		}
		return &Device{ID: ":" + matches[1], Name: matches[2]}
	}
	return cfg
}
