package main

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/oszuidwest/zwfm-selftest/internal/capture"
	"github.com/oszuidwest/zwfm-selftest/internal/diagnostic"
	"github.com/oszuidwest/zwfm-selftest/internal/network"
)

func TestLevelBar(t *testing.T) {
	assert.Equal(t, "----------", levelBar(0, 10))
	assert.Equal(t, "#####-----", levelBar(0.5, 10))
	assert.Equal(t, "##########", levelBar(1.7, 10))
	assert.Equal(t, "----------", levelBar(-1, 10))
}

func TestFormatMicrophone(t *testing.T) {
	color.NoColor = true

	assert.Equal(t, "microphone:   permission_denied",
		formatMicrophone(diagnostic.ErrorDiagnostic(diagnostic.StatusPermissionDenied)))

	line := formatMicrophone(diagnostic.MicDiagnostic(diagnostic.StatusOK, 0.2, -20, -6))
	assert.Contains(t, line, "ok")
	assert.Contains(t, line, "[######------------------------] 0.20")
	assert.Contains(t, line, "rms -20.0 dBFS  peak -6.0 dBFS")
}

func TestFormatCamera(t *testing.T) {
	color.NoColor = true

	d := diagnostic.CameraDiagnostic(diagnostic.DeriveWebcamStatus(capture.KindNone, true, capture.Dimensions{Width: 1280, Height: 720}))
	assert.Equal(t, "camera:       ok  1280x720 (hd)", formatCamera(d))
}

func TestFormatNetwork(t *testing.T) {
	color.NoColor = true

	stats := network.ComputeStats(network.SamplesFromMillis([]float64{40, 42, 999, 44, 40}))
	assert.Equal(t, "connectivity: success  avg 42 ms  jitter 2 ms  (4/5 answered)", formatNetwork(stats))

	failed := network.ComputeStats(network.SamplesFromMillis([]float64{999, 999}))
	assert.Equal(t, "connectivity: failure  (0/2 answered)", formatNetwork(failed))
}
