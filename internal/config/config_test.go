package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-selftest/internal/network"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := New(path)
	require.NoError(t, cfg.Load())

	_, err := os.Stat(path)
	require.NoError(t, err)

	snap := cfg.Snapshot()
	assert.Equal(t, DefaultWebPort, snap.WebPort)
	assert.Equal(t, DefaultMeterFPS, snap.MeterFPS)
	assert.Equal(t, DefaultEndpoints, snap.Endpoints)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"audio": {"input": "hw:1"}}`)
	cfg := New(path)
	require.NoError(t, cfg.Load())

	snap := cfg.Snapshot()
	assert.Equal(t, "hw:1", snap.AudioInput)
	assert.Equal(t, DefaultWebPort, snap.WebPort)
	assert.Equal(t, DefaultIterations, snap.Iterations)
	assert.Equal(t, int64(DefaultProbeTimeoutMs), snap.ProbeTimeoutMs)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"system":`},
		{"port out of range", `{"system": {"port": 70000}}`},
		{"fps out of range", `{"meter": {"fps": 1000}}`},
		{"unsupported scheme", `{"connectivity": {"endpoints": ["ftp://example.com"]}}`},
		{"tcp without port", `{"connectivity": {"endpoints": ["tcp://example.com"]}}`},
		{"single iteration", `{"connectivity": {"iterations": 1}}`},
		{"bad origin", `{"system": {"origins": ["not a url"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New(writeConfig(t, tt.body))
			assert.Error(t, cfg.Load())
		})
	}
}

func TestNetworkConfig(t *testing.T) {
	path := writeConfig(t, `{"connectivity": {"endpoints": ["icmp://192.0.2.1", "tcp://192.0.2.1:80"], "iterations": 3, "timeout_ms": 500, "delay_ms": 50}}`)
	cfg := New(path)
	require.NoError(t, cfg.Load())

	nc := cfg.NetworkConfig()
	assert.Equal(t, network.Config{
		Endpoints:  []string{"icmp://192.0.2.1", "tcp://192.0.2.1:80"},
		Iterations: 3,
		Timeout:    500 * time.Millisecond,
		Delay:      50 * time.Millisecond,
	}, nc)

	nc.Endpoints[0] = "changed"
	assert.Equal(t, "icmp://192.0.2.1", cfg.NetworkConfig().Endpoints[0])
}

func TestProcessConfig(t *testing.T) {
	path := writeConfig(t, `{"system": {"ffmpeg_path": "/opt/ffmpeg"}, "audio": {"input": "hw:0"}, "video": {"input": "/dev/video0"}}`)
	cfg := New(path)
	require.NoError(t, cfg.Load())

	pc := cfg.ProcessConfig()
	assert.Equal(t, "/opt/ffmpeg", pc.FFmpegPath)
	assert.Equal(t, "hw:0", pc.AudioDevice)
	assert.Equal(t, "/dev/video0", pc.VideoDevice)
}

func TestSettersPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)
	require.NoError(t, cfg.Load())

	require.NoError(t, cfg.SetAudioInput("hw:2"))
	require.NoError(t, cfg.SetVideoInput("/dev/video1"))

	reloaded := New(path)
	require.NoError(t, reloaded.Load())
	snap := reloaded.Snapshot()
	assert.Equal(t, "hw:2", snap.AudioInput)
	assert.Equal(t, "/dev/video1", snap.VideoInput)
}

func TestSetConnectivityKeepsPreviousOnError(t *testing.T) {
	cfg := New(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, cfg.Load())

	err := cfg.SetConnectivity(ConnectivityConfig{
		Endpoints:  []string{"gopher://example.com"},
		Iterations: 5,
		TimeoutMs:  1000,
	})
	require.Error(t, err)
	assert.Equal(t, DefaultEndpoints, cfg.Snapshot().Endpoints)

	require.NoError(t, cfg.SetConnectivity(ConnectivityConfig{
		Endpoints:  []string{"tcp://192.0.2.1:443"},
		Iterations: 4,
		TimeoutMs:  1000,
		DelayMs:    10,
	}))
	snap := cfg.Snapshot()
	assert.Equal(t, []string{"tcp://192.0.2.1:443"}, snap.Endpoints)
	assert.Equal(t, 4, snap.Iterations)
}

func TestZeroDelaySelectsDefault(t *testing.T) {
	path := writeConfig(t, `{"connectivity": {"delay_ms": 0}}`)
	cfg := New(path)
	require.NoError(t, cfg.Load())
	assert.Equal(t, network.DefaultDelay, cfg.NetworkConfig().Delay)

	err := cfg.SetConnectivity(ConnectivityConfig{
		Endpoints:  []string{"tcp://192.0.2.1:443"},
		Iterations: 4,
		TimeoutMs:  1000,
		DelayMs:    0,
	})
	require.Error(t, err)
	assert.Equal(t, int64(DefaultProbeDelayMs), cfg.Snapshot().ProbeDelayMs)
}
