package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/dimsway/internal/logger"
	"gopkg.in/yaml.v3"
)

// Default opacity levels and adjustment step
const (
	DefaultFocusedOpacity   = 1.0
	DefaultUnfocusedOpacity = 0.95
	DefaultOpacityStep      = 0.05
)

// Protocol bounds for max_message_size
const (
	minMessageSize = 14
	maxMessageSize = 4096
)

// Config represents the application configuration
type Config struct {
	FocusedOpacity   float64       `json:"focused_opacity" yaml:"focused_opacity"`
	UnfocusedOpacity float64       `json:"unfocused_opacity" yaml:"unfocused_opacity"`
	OpacityStep      float64       `json:"opacity_step" yaml:"opacity_step"`
	LogLevel         string        `json:"log_level" yaml:"log_level"`
	SocketPath       string        `json:"socket_path" yaml:"socket_path"`
	MaxMessageSize   int           `json:"max_message_size" yaml:"max_message_size"`
	ReadRetryDelay   string        `json:"read_retry_delay" yaml:"read_retry_delay"`
	Control          ControlConfig `json:"control" yaml:"control"`
}

// ControlConfig selects which runtime triggers are active
type ControlConfig struct {
	Signals  bool   `json:"signals" yaml:"signals"`
	DBus     bool   `json:"dbus" yaml:"dbus"`
	HTTPAddr string `json:"http_addr" yaml:"http_addr"`
}

// Levels returns the opacity snapshot described by the config.
func (c *Config) Levels() Snapshot {
	return Snapshot{
		Focused:   c.FocusedOpacity,
		Unfocused: c.UnfocusedOpacity,
		Step:      c.OpacityStep,
	}
}

// RetryDelay parses ReadRetryDelay, returning zero when unset.
func (c *Config) RetryDelay() (time.Duration, error) {
	if strings.TrimSpace(c.ReadRetryDelay) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ReadRetryDelay)
	if err != nil {
		return 0, fmt.Errorf("invalid read_retry_delay %q: %w", c.ReadRetryDelay, err)
	}
	return d, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := ValidateOpacity("focused_opacity", c.FocusedOpacity); err != nil {
		return err
	}
	if err := ValidateOpacity("unfocused_opacity", c.UnfocusedOpacity); err != nil {
		return err
	}
	if err := ValidateStep("opacity_step", c.OpacityStep); err != nil {
		return err
	}
	if c.MaxMessageSize < minMessageSize || c.MaxMessageSize > maxMessageSize {
		return fmt.Errorf("max_message_size must be between %d and %d, got %d", minMessageSize, maxMessageSize, c.MaxMessageSize)
	}
	if d, err := c.RetryDelay(); err != nil {
		return err
	} else if d < 0 {
		return fmt.Errorf("read_retry_delay must not be negative")
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		FocusedOpacity:   DefaultFocusedOpacity,
		UnfocusedOpacity: DefaultUnfocusedOpacity,
		OpacityStep:      DefaultOpacityStep,
		LogLevel:         "info",
		MaxMessageSize:   maxMessageSize,
		ReadRetryDelay:   "500us",
		Control: ControlConfig{
			Signals: true,
		},
	}
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $XDG_CONFIG_HOME/dimsway/config.yaml, falling back to
// ~/.config/dimsway/config.yaml.
func DefaultPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "dimsway", "config.yaml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "dimsway", "config.yaml"), nil
}

// NewManager loads configFile (or the default path). A missing file yields
// defaults and is not created until Save.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = p
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Debug().
			Str("path", m.configPath).
			Msg("Config file not found, using defaults")
		m.config = Defaults()
	}

	return m, nil
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	// Unset keys keep their defaults
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Float64("unfocused_opacity", cfg.UnfocusedOpacity).
		Msg("Config loaded")
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Update validates and replaces the configuration in memory
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c := *cfg
	m.mu.Lock()
	m.config = &c
	m.mu.Unlock()
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	cfg := m.Get()

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Keys lists the settable configuration keys
var Keys = []string{
	"focused_opacity",
	"unfocused_opacity",
	"opacity_step",
	"log_level",
	"socket_path",
	"max_message_size",
	"read_retry_delay",
	"control.signals",
	"control.dbus",
	"control.http_addr",
}

// Lookup returns the value stored under key
func (m *Manager) Lookup(key string) (interface{}, error) {
	cfg := m.Get()
	switch key {
	case "focused_opacity":
		return cfg.FocusedOpacity, nil
	case "unfocused_opacity":
		return cfg.UnfocusedOpacity, nil
	case "opacity_step":
		return cfg.OpacityStep, nil
	case "log_level":
		return cfg.LogLevel, nil
	case "socket_path":
		return cfg.SocketPath, nil
	case "max_message_size":
		return cfg.MaxMessageSize, nil
	case "read_retry_delay":
		return cfg.ReadRetryDelay, nil
	case "control.signals":
		return cfg.Control.Signals, nil
	case "control.dbus":
		return cfg.Control.DBus, nil
	case "control.http_addr":
		return cfg.Control.HTTPAddr, nil
	default:
		return nil, fmt.Errorf("configuration key not found: %s", key)
	}
}

// Set parses value for key and applies it in memory
func (m *Manager) Set(key, value string) error {
	cfg := m.Get()

	switch key {
	case "focused_opacity", "unfocused_opacity", "opacity_step":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		switch key {
		case "focused_opacity":
			cfg.FocusedOpacity = f
		case "unfocused_opacity":
			cfg.UnfocusedOpacity = f
		default:
			cfg.OpacityStep = f
		}
	case "log_level":
		cfg.LogLevel = value
	case "socket_path":
		cfg.SocketPath = value
	case "max_message_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		cfg.MaxMessageSize = n
	case "read_retry_delay":
		cfg.ReadRetryDelay = value
	case "control.signals", "control.dbus":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		if key == "control.signals" {
			cfg.Control.Signals = b
		} else {
			cfg.Control.DBus = b
		}
	case "control.http_addr":
		cfg.Control.HTTPAddr = value
	default:
		return fmt.Errorf("configuration key not found: %s", key)
	}

	return m.Update(cfg)
}

// GetConfigPath returns the configuration file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
