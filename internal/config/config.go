// Package config provides application configuration management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/oszuidwest/zwfm-selftest/internal/audio"
	"github.com/oszuidwest/zwfm-selftest/internal/capture"
	"github.com/oszuidwest/zwfm-selftest/internal/network"
	"github.com/oszuidwest/zwfm-selftest/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort        = 8080
	DefaultMeterFPS       = audio.DefaultFrameRate
	DefaultPeakHoldMs     = 1500
	DefaultIterations     = network.DefaultIterations
	DefaultProbeTimeoutMs = 8000
	DefaultProbeDelayMs   = 200
)

// DefaultEndpoints are probed in order when no endpoints are configured.
var DefaultEndpoints = []string{
	"https://www.cloudflare.com/cdn-cgi/trace",
	"https://www.google.com/generate_204",
	"tcp://1.1.1.1:443",
}

// validate is the shared validator instance for config validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	FFmpegPath string   `json:"ffmpeg_path"`                     // Path to FFmpeg binary (empty = use PATH)
	Port       int      `json:"port" validate:"min=1,max=65535"` // HTTP server port
	Origins    []string `json:"origins" validate:"dive,url"`     // Extra origins allowed on /ws
}

// AudioConfig holds audio input device settings.
type AudioConfig struct {
	Input string `json:"input"` // Audio input device identifier
}

// VideoConfig holds video input device settings.
type VideoConfig struct {
	Input string `json:"input"` // Video input device identifier
}

// MeterConfig holds level meter timing.
type MeterConfig struct {
	FPS        int   `json:"fps" validate:"min=1,max=240"`            // Level ticks per second
	PeakHoldMs int64 `json:"peak_hold_ms" validate:"min=0,max=10000"` // Peak hold time for the dB peak
}

// ConnectivityConfig holds connectivity probe settings.
type ConnectivityConfig struct {
	Endpoints  []string `json:"endpoints" validate:"min=1,dive,required"` // Endpoints in fallback order
	Iterations int      `json:"iterations" validate:"min=2,max=50"`       // Measurements per run
	TimeoutMs  int64    `json:"timeout_ms" validate:"min=100,max=60000"`  // Per-endpoint timeout
	DelayMs    int64    `json:"delay_ms" validate:"min=1,max=10000"`      // Delay between iterations
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System       SystemConfig       `json:"system"`
	Audio        AudioConfig        `json:"audio"`
	Video        VideoConfig        `json:"video"`
	Meter        MeterConfig        `json:"meter"`
	Connectivity ConnectivityConfig `json:"connectivity"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{Port: DefaultWebPort},
		Meter: MeterConfig{
			FPS:        DefaultMeterFPS,
			PeakHoldMs: DefaultPeakHoldMs,
		},
		Connectivity: ConnectivityConfig{
			Endpoints:  slices.Clone(DefaultEndpoints),
			Iterations: DefaultIterations,
			TimeoutMs:  DefaultProbeTimeoutMs,
			DelayMs:    DefaultProbeDelayMs,
		},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	if err := c.validate(); err != nil {
		return err
	}

	return nil
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return util.WrapError("validate config", err)
	}
	for _, ep := range c.Connectivity.Endpoints {
		if err := network.ValidateEndpoint(ep); err != nil {
			return fmt.Errorf("invalid endpoint %q: %w", ep, err)
		}
	}
	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.System.Port == 0 {
		c.System.Port = DefaultWebPort
	}
	if c.Meter.FPS == 0 {
		c.Meter.FPS = DefaultMeterFPS
	}
	if len(c.Connectivity.Endpoints) == 0 {
		c.Connectivity.Endpoints = slices.Clone(DefaultEndpoints)
	}
	if c.Connectivity.Iterations == 0 {
		c.Connectivity.Iterations = DefaultIterations
	}
	if c.Connectivity.TimeoutMs == 0 {
		c.Connectivity.TimeoutMs = DefaultProbeTimeoutMs
	}
	if c.Connectivity.DelayMs == 0 {
		c.Connectivity.DelayMs = DefaultProbeDelayMs
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// --- Getters for individual settings ---

// ProcessConfig returns the capture settings for the process platform.
func (c *Config) ProcessConfig() capture.ProcessConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return capture.ProcessConfig{
		FFmpegPath:  c.System.FFmpegPath,
		AudioDevice: c.Audio.Input,
		VideoDevice: c.Video.Input,
	}
}

// NetworkConfig returns the connectivity probe configuration.
func (c *Config) NetworkConfig() network.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return network.Config{
		Endpoints:  slices.Clone(c.Connectivity.Endpoints),
		Iterations: c.Connectivity.Iterations,
		Timeout:    time.Duration(c.Connectivity.TimeoutMs) * time.Millisecond,
		Delay:      time.Duration(c.Connectivity.DelayMs) * time.Millisecond,
	}
}

// GetFFmpegPath returns the configured FFmpeg binary path.
func (c *Config) GetFFmpegPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.FFmpegPath
}

// --- Setters for individual settings ---

// SetAudioInput updates the audio input device and saves the configuration.
func (c *Config) SetAudioInput(input string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.Input = input
	return c.saveLocked()
}

// SetVideoInput updates the video input device and saves the configuration.
func (c *Config) SetVideoInput(input string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Video.Input = input
	return c.saveLocked()
}

// SetConnectivity replaces the connectivity settings after validating them.
// The previous settings are kept when validation fails.
func (c *Config) SetConnectivity(cc ConnectivityConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.Connectivity
	c.Connectivity = cc
	c.Connectivity.Endpoints = slices.Clone(cc.Endpoints)
	if err := c.validate(); err != nil {
		c.Connectivity = prev
		return err
	}
	return c.saveLocked()
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	WebPort    int      `json:"port"`
	FFmpegPath string   `json:"ffmpeg_path"`
	Origins    []string `json:"origins"`

	AudioInput string `json:"audio_input"`
	VideoInput string `json:"video_input"`

	MeterFPS   int           `json:"meter_fps"`
	PeakHold   time.Duration `json:"-"`
	PeakHoldMs int64         `json:"peak_hold_ms"`

	Endpoints      []string `json:"endpoints"`
	Iterations     int      `json:"iterations"`
	ProbeTimeoutMs int64    `json:"timeout_ms"`
	ProbeDelayMs   int64    `json:"delay_ms"`
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		WebPort:    c.System.Port,
		FFmpegPath: c.System.FFmpegPath,
		Origins:    slices.Clone(c.System.Origins),

		AudioInput: c.Audio.Input,
		VideoInput: c.Video.Input,

		MeterFPS:   c.Meter.FPS,
		PeakHold:   time.Duration(c.Meter.PeakHoldMs) * time.Millisecond,
		PeakHoldMs: c.Meter.PeakHoldMs,

		Endpoints:      slices.Clone(c.Connectivity.Endpoints),
		Iterations:     c.Connectivity.Iterations,
		ProbeTimeoutMs: c.Connectivity.TimeoutMs,
		ProbeDelayMs:   c.Connectivity.DelayMs,
	}
}
