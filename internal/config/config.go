// ABOUTME: YAML configuration for the device simulator and bridge
// ABOUTME: Load overlays a file on the defaults and validates each section
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/songbird-audio/voicechat-go/pkg/codec"
	"github.com/songbird-audio/voicechat-go/pkg/container"
	"github.com/songbird-audio/voicechat-go/pkg/storage"
	"github.com/songbird-audio/voicechat-go/pkg/transport"
)

// Config represents the complete configuration
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Codec     codec.Config    `yaml:"codec"`
	Storage   StorageConfig   `yaml:"storage"`
	Transport TransportConfig `yaml:"transport"`
	Link      LinkConfig      `yaml:"link"`
	Audio     AudioConfig     `yaml:"audio"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig contains identity and control-loop settings
type DeviceConfig struct {
	Name     string `yaml:"name"`
	Channels int    `yaml:"channels"`
	AutoPlay bool   `yaml:"auto_play"`
	Tick     string `yaml:"tick"`
}

// StorageConfig describes the simulated card
type StorageConfig struct {
	Dir       string `yaml:"dir"`
	Capacity  int64  `yaml:"capacity_bytes"`
	SyncEvery int    `yaml:"sync_every"`
	StateFile string `yaml:"state_file"`
}

// TransportConfig tunes the link protocol
type TransportConfig struct {
	Liveness string `yaml:"liveness"`
}

// LinkConfig locates the bridge
type LinkConfig struct {
	URL       string `yaml:"url"`
	Discover  bool   `yaml:"discover"`
	Reconnect string `yaml:"reconnect"`
	Listen    string `yaml:"listen"`
	PingEvery string `yaml:"ping_every"`
	MDNS      bool   `yaml:"mdns"`
}

// AudioConfig selects the microphone substitute and speaker
type AudioConfig struct {
	Source string `yaml:"source"`
	Output string `yaml:"output"`
	Volume int    `yaml:"volume"`
}

// MetricsConfig enables the Prometheus endpoint
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	File   string `yaml:"file"`
	Stdout bool   `yaml:"stdout"`
	Bridge bool   `yaml:"bridge"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Channels: storage.Channels,
			AutoPlay: true,
			Tick:     "2ms",
		},
		Codec: codec.DefaultConfig(),
		Storage: StorageConfig{
			Dir:       "card",
			SyncEvery: container.DefaultSyncEvery,
			StateFile: "state.yaml",
		},
		Transport: TransportConfig{
			Liveness: transport.LivenessWindow.String(),
		},
		Link: LinkConfig{
			Reconnect: "2s",
			Listen:    ":8930",
			PingEvery: "1s",
			MDNS:      true,
		},
		Audio: AudioConfig{
			Source: "tone",
			Output: "oto",
			Volume: 100,
		},
		Logging: LoggingConfig{
			File:   "voicechat.log",
			Bridge: true,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}
	if err := validateCodec(&c.Codec); err != nil {
		return fmt.Errorf("codec config: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport config: %w", err)
	}
	if err := c.Link.Validate(); err != nil {
		return fmt.Errorf("link config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	return nil
}

// Validate validates device configuration
func (d *DeviceConfig) Validate() error {
	if d.Channels < 1 || d.Channels > storage.Channels {
		return fmt.Errorf("channels must be between 1 and %d, got %d", storage.Channels, d.Channels)
	}
	if len(d.Name) > transport.MaxUsername {
		return fmt.Errorf("name must be at most %d bytes, got %d", transport.MaxUsername, len(d.Name))
	}
	if _, err := parsePositive(d.Tick); err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	return nil
}

func validateCodec(c *codec.Config) error {
	if c.Bitrate < 6000 || c.Bitrate > 510000 {
		return fmt.Errorf("bitrate must be between 6000 and 510000, got %d", c.Bitrate)
	}
	if c.Complexity < 0 || c.Complexity > 10 {
		return fmt.Errorf("complexity must be between 0 and 10, got %d", c.Complexity)
	}
	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	if s.Dir == "" {
		return fmt.Errorf("dir cannot be empty")
	}
	if s.Capacity < 0 {
		return fmt.Errorf("capacity_bytes cannot be negative, got %d", s.Capacity)
	}
	if s.SyncEvery < 1 {
		return fmt.Errorf("sync_every must be at least 1, got %d", s.SyncEvery)
	}
	return nil
}

// Validate validates transport configuration
func (t *TransportConfig) Validate() error {
	if _, err := parsePositive(t.Liveness); err != nil {
		return fmt.Errorf("liveness: %w", err)
	}
	return nil
}

// Validate validates link configuration
func (l *LinkConfig) Validate() error {
	if _, err := parsePositive(l.Reconnect); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	if _, err := parsePositive(l.PingEvery); err != nil {
		return fmt.Errorf("ping_every: %w", err)
	}
	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	switch a.Output {
	case "oto", "null":
	default:
		return fmt.Errorf("output must be 'oto' or 'null', got '%s'", a.Output)
	}
	if a.Source == "" {
		return fmt.Errorf("source cannot be empty")
	}
	if a.Volume < 0 || a.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", a.Volume)
	}
	return nil
}

func parsePositive(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := parsePositive(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetTick returns the control loop period
func (d *DeviceConfig) GetTick() time.Duration {
	return mustDuration(d.Tick, 2*time.Millisecond)
}

// GetLiveness returns the link liveness window
func (t *TransportConfig) GetLiveness() time.Duration {
	return mustDuration(t.Liveness, transport.LivenessWindow)
}

// GetReconnect returns the delay between link dial attempts
func (l *LinkConfig) GetReconnect() time.Duration {
	return mustDuration(l.Reconnect, 2*time.Second)
}

// GetPingEvery returns the bridge keepalive period
func (l *LinkConfig) GetPingEvery() time.Duration {
	return mustDuration(l.PingEvery, time.Second)
}
