// Package config handles the player configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const fileName = "config.json"

// Config represents the player configuration
type Config struct {
	// Audio settings
	Audio AudioConfig `json:"audio"`

	// Behavior settings
	Behavior BehaviorConfig `json:"behavior"`

	// Control socket settings
	Control ControlConfig `json:"control"`
}

// AudioConfig contains audio-related settings
type AudioConfig struct {
	// DeviceSampleRate is the rate the output device is opened at (default: 44100)
	DeviceSampleRate int `json:"deviceSampleRate"`

	// DefaultVolume 0.0 - 2.0 (default: 1.0)
	DefaultVolume float64 `json:"defaultVolume"`

	// PollIntervalMs is how often the worker samples the output (default: 120)
	PollIntervalMs int `json:"pollIntervalMs"`

	// ResampleQuality 1 - 6 for device-rate conversion (default: 4)
	ResampleQuality int `json:"resampleQuality"`

	// FFmpegFallback decodes unknown formats with ffmpeg when installed (default: true)
	FFmpegFallback bool `json:"ffmpegFallback"`
}

// BehaviorConfig contains behavior-related settings
type BehaviorConfig struct {
	Shuffle bool `json:"shuffle"`
	Repeat  bool `json:"repeat"`

	// MPRIS exposes the player to desktop media controls (default: true)
	MPRIS bool `json:"mpris"`
}

// ControlConfig contains control socket settings
type ControlConfig struct {
	// SocketPath defaults to a per-user path, see DefaultSocketPath
	SocketPath string `json:"socketPath,omitempty"`
}

// PollInterval returns the poll interval as a duration.
func (a AudioConfig) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalMs) * time.Millisecond
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			DeviceSampleRate: 44100,
			DefaultVolume:    1.0,
			PollIntervalMs:   120,
			ResampleQuality:  4,
			FFmpegFallback:   true,
		},
		Behavior: BehaviorConfig{
			MPRIS: true,
		},
	}
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	switch {
	case c.Audio.DeviceSampleRate < 8000 || c.Audio.DeviceSampleRate > 192000:
		return fmt.Errorf("audio.deviceSampleRate %d out of range", c.Audio.DeviceSampleRate)
	case c.Audio.DefaultVolume < 0 || c.Audio.DefaultVolume > 2:
		return fmt.Errorf("audio.defaultVolume %g out of range [0, 2]", c.Audio.DefaultVolume)
	case c.Audio.PollIntervalMs < 10:
		return fmt.Errorf("audio.pollIntervalMs %d below 10", c.Audio.PollIntervalMs)
	case c.Audio.ResampleQuality < 1 || c.Audio.ResampleQuality > 6:
		return fmt.Errorf("audio.resampleQuality %d out of range [1, 6]", c.Audio.ResampleQuality)
	}
	return nil
}

// DefaultDir returns ~/.config/spindle or the platform equivalent.
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "spindle"), nil
}

// DefaultSocketPath returns the per-user control socket path.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "spindle.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("spindle-%d.sock", os.Getuid()))
}

// Manager handles loading and saving configuration
type Manager struct {
	configDir  string
	configPath string

	mu     sync.RWMutex
	config *Config
}

// NewManager creates a new configuration manager
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, fileName),
		config:     DefaultConfig(),
	}
}

// Load reads the configuration from disk. A missing file leaves the
// defaults in place and writes nothing.
func (m *Manager) Load() error {
	config, err := m.read()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	return nil
}

func (m *Manager) read() (*Config, error) {
	data, err := os.ReadFile(m.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}
	return config, nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	// Ensure config directory exists
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	m.mu.RLock()
	data, err := json.MarshalIndent(m.config, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Exists reports whether the config file is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// GetPath returns the config file path
func (m *Manager) GetPath() string {
	return m.configPath
}

// SocketPath returns the configured control socket or the default.
func (m *Manager) SocketPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config.Control.SocketPath != "" {
		return m.config.Control.SocketPath
	}
	return DefaultSocketPath()
}
