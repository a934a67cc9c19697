// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/ttyscope/internal/log"
)

// Config is the top-level configuration. Maps to the `ttyscope:` root key
// in YAML; env vars use the TTYSCOPE_ prefix (e.g. TTYSCOPE_BAUD_RATE).
type Config struct {
	Port         string        `mapstructure:"port" yaml:"port"`
	BaudRate     int           `mapstructure:"baud_rate" yaml:"baud_rate"`
	DataBits     int           `mapstructure:"data_bits" yaml:"data_bits"`
	Parity       string        `mapstructure:"parity" yaml:"parity"`             // none | odd | even
	StopBits     int           `mapstructure:"stop_bits" yaml:"stop_bits"`       // 1 | 2
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"` // device read poll window
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	Encoding       string        `mapstructure:"encoding" yaml:"encoding"`
	PacketTimeout  time.Duration `mapstructure:"packet_timeout" yaml:"packet_timeout"` // silence threshold for packet boundaries
	RelayCapacity  int           `mapstructure:"relay_capacity" yaml:"relay_capacity"`
	MaxPacketBytes int           `mapstructure:"max_packet_bytes" yaml:"max_packet_bytes"`
	ConnectRetries int           `mapstructure:"connect_retries" yaml:"connect_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`

	ShowTimestamp bool     `mapstructure:"show_timestamp" yaml:"show_timestamp"`
	HexDisplay    bool     `mapstructure:"hex_display" yaml:"hex_display"`
	Color         bool     `mapstructure:"color" yaml:"color"`
	Modbus        bool     `mapstructure:"modbus" yaml:"modbus"`
	Keywords      []string `mapstructure:"keywords" yaml:"keywords"`

	Log     log.Config    `mapstructure:"log" yaml:"log"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CaptureConfig configures the session data log (RECV/SEND lines).
type CaptureConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"` // empty = timestamped filename
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// configRoot is the top-level wrapper matching the YAML structure
// `ttyscope: ...`.
type configRoot struct {
	Ttyscope Config `mapstructure:"ttyscope" yaml:"ttyscope"`
}

// Load loads configuration from file. An empty path yields the defaults
// merged with env overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// No explicit env prefix: the `ttyscope.` key prefix maps to TTYSCOPE_
	// through the key replacer (key "ttyscope.baud_rate" → env
	// "TTYSCOPE_BAUD_RATE").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Ttyscope

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration, used by `ttyscope config init`.
func Default() (*Config, error) {
	return Load("")
}

// setDefaults sets default values. All keys use the "ttyscope." prefix to
// match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ttyscope.port", "")
	v.SetDefault("ttyscope.baud_rate", 115200)
	v.SetDefault("ttyscope.data_bits", 8)
	v.SetDefault("ttyscope.parity", "none")
	v.SetDefault("ttyscope.stop_bits", 1)
	v.SetDefault("ttyscope.read_timeout", "100ms")
	v.SetDefault("ttyscope.write_timeout", "100ms")

	v.SetDefault("ttyscope.encoding", "UTF-8")
	v.SetDefault("ttyscope.packet_timeout", "10ms")
	v.SetDefault("ttyscope.relay_capacity", 1000)
	v.SetDefault("ttyscope.max_packet_bytes", 65536)
	v.SetDefault("ttyscope.connect_retries", 3)
	v.SetDefault("ttyscope.retry_delay", "1s")

	v.SetDefault("ttyscope.show_timestamp", false)
	v.SetDefault("ttyscope.hex_display", false)
	v.SetDefault("ttyscope.color", true)
	v.SetDefault("ttyscope.modbus", false)

	v.SetDefault("ttyscope.log.level", "info")
	v.SetDefault("ttyscope.log.format", "text")

	v.SetDefault("ttyscope.capture.enabled", false)
	v.SetDefault("ttyscope.capture.path", "")

	v.SetDefault("ttyscope.metrics.enabled", false)
	v.SetDefault("ttyscope.metrics.listen", ":9091")
	v.SetDefault("ttyscope.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration values that would
// otherwise surface as obscure runtime failures. The encoding name is
// deliberately not validated here: the CLI checks it against the supported
// list and falls back to the default with a warning.
func (cfg *Config) ValidateAndApplyDefaults() error {
	if cfg.BaudRate <= 0 {
		return fmt.Errorf("invalid baud_rate: %d (must be positive)", cfg.BaudRate)
	}
	switch cfg.DataBits {
	case 5, 6, 7, 8:
	default:
		return fmt.Errorf("invalid data_bits: %d (must be 5-8)", cfg.DataBits)
	}
	switch strings.ToLower(cfg.Parity) {
	case "none", "odd", "even":
	default:
		return fmt.Errorf("invalid parity: %s (must be none/odd/even)", cfg.Parity)
	}
	if cfg.StopBits != 1 && cfg.StopBits != 2 {
		return fmt.Errorf("invalid stop_bits: %d (must be 1 or 2)", cfg.StopBits)
	}
	if cfg.PacketTimeout <= 0 {
		return fmt.Errorf("invalid packet_timeout: %s (must be positive)", cfg.PacketTimeout)
	}
	if cfg.RelayCapacity <= 0 {
		return fmt.Errorf("invalid relay_capacity: %d (must be positive)", cfg.RelayCapacity)
	}
	if cfg.MaxPacketBytes <= 0 {
		return fmt.Errorf("invalid max_packet_bytes: %d (must be positive)", cfg.MaxPacketBytes)
	}
	if cfg.ConnectRetries <= 0 {
		return fmt.Errorf("invalid connect_retries: %d (must be positive)", cfg.ConnectRetries)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
	}
	return nil
}
