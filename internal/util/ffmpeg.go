package util

import "os/exec"

// ResolveFFmpegPath returns the path to the FFmpeg binary.
// If customPath is set, it must resolve to an executable; otherwise "ffmpeg"
// is looked up in PATH. Returns an empty string if FFmpeg is not found.
func ResolveFFmpegPath(customPath string) string {
	if customPath != "" {
		return ResolveTool(customPath)
	}
	return ResolveTool("ffmpeg")
}

// ResolveTool returns the resolved path of an external capture tool, or an
// empty string when it is not installed.
func ResolveTool(name string) string {
	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return path
}
