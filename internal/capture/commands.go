package capture

import "fmt"

// CommandConfig defines how one media kind is captured on the current platform.
type CommandConfig struct {
	// Command is the executable name (e.g., "arecord", "ffmpeg").
	Command string

	// DefaultDevice is used when no device is configured.
	// Empty means auto-detect through Devices.
	DefaultDevice string

	// UsesFFmpeg indicates the configured FFmpeg path replaces Command.
	UsesFFmpeg bool

	// BuildArgs returns the command arguments for capturing from device.
	BuildArgs func(device string) []string
}

// Capture format produced by every audio command.
const (
	SampleRate = 48000
	Channels   = 2
)

// BuildCaptureCommand returns the command and arguments that capture kind from
// device. An empty device falls back to the platform default, then to the
// first detected device.
func BuildCaptureCommand(kind MediaKind, device, ffmpegPath string) (cmd string, args []string, err error) {
	cfg, ok := commandConfig(kind)
	if !ok {
		return "", nil, fmt.Errorf("unsupported media kind %q", kind)
	}

	if device == "" {
		device = cfg.DefaultDevice
	}
	if device == "" {
		devices := Devices(kind)
		if len(devices) == 0 {
			return "", nil, &PlatformError{Name: "NotFoundError", Message: fmt.Sprintf("no %s input device found", kind)}
		}
		device = devices[0].ID
	}

	command := cfg.Command
	if cfg.UsesFFmpeg && ffmpegPath != "" {
		command = ffmpegPath
	}

	return command, cfg.BuildArgs(device), nil
}

func commandConfig(kind MediaKind) (CommandConfig, bool) {
	switch kind {
	case Audio:
		return audioCommand(), true
	case Video:
		return videoCommand(), true
	default:
		return CommandConfig{}, false
	}
}

// ffmpegAudioArgs captures audio from an FFmpeg input device as raw PCM on stdout.
func ffmpegAudioArgs(inputFormat, device string, withStdin bool) []string {
	args := []string{"-f", inputFormat, "-i", device}
	if !withStdin {
		args = append(args, "-nostdin")
	}
	return append(args,
		"-hide_banner",
		"-loglevel", "warning",
		"-vn",
		"-f", "s16le",
		"-ac", fmt.Sprint(Channels),
		"-ar", fmt.Sprint(SampleRate),
		"pipe:1",
	)
}

// ffmpegVideoArgs captures a camera at its negotiated size and emits a small
// grayscale preview on stdout. Log level info keeps the stream header on stderr.
func ffmpegVideoArgs(inputFormat, device string, inputOpts []string, withStdin bool) []string {
	args := []string{"-f", inputFormat}
	args = append(args, inputOpts...)
	args = append(args, "-i", device)
	if !withStdin {
		args = append(args, "-nostdin")
	}
	return append(args,
		"-hide_banner",
		"-nostats",
		"-loglevel", "info",
		"-an",
		"-vf", "fps=2,scale=160:-2",
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"pipe:1",
	)
}
