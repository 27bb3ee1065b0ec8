// Package config loads the bridge configuration.
//
// Values are layered: built-in defaults, then the YAML config file, then
// AGENT_ASSISTANT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/zhubert/agent-assistant/paths"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "AGENT_ASSISTANT_"

// Defaults
const (
	DefaultListen         = "127.0.0.1:8080"
	DefaultPath           = "/ws"
	DefaultRequestTimeout = 10 * time.Minute
	DefaultConnectWait    = 30 * time.Second
)

// Config holds the bridge configuration
type Config struct {
	Listen         string   `yaml:"listen" env:"LISTEN"`                   // WebSocket listen address
	Path           string   `yaml:"path" env:"WS_PATH"`                    // WebSocket endpoint path
	RequestTimeout Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"` // Max wait for a front-end reply
	ConnectWait    Duration `yaml:"connect_wait" env:"CONNECT_WAIT"`       // Max wait for a first front-end connection
	Debug          bool     `yaml:"debug" env:"DEBUG"`
	LogFile        string   `yaml:"log_file" env:"LOG_FILE"`     // Empty means the default log path
	LogStderr      bool     `yaml:"log_stderr" env:"LOG_STDERR"` // Log to stderr instead of a file

	Companion Companion `yaml:"companion" envPrefix:"COMPANION_"`
}

// Companion configures the auto-launched front-end executable.
type Companion struct {
	Enabled    bool     `yaml:"enabled" env:"ENABLED"`
	Candidates []string `yaml:"candidates" env:"CANDIDATES"` // Empty means the built-in search list
	Args       []string `yaml:"args" env:"ARGS"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:         DefaultListen,
		Path:           DefaultPath,
		RequestTimeout: Duration{DefaultRequestTimeout},
		ConnectWait:    Duration{DefaultConnectWait},
		Companion: Companion{
			Enabled: true,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment. An empty path means the default config file location, which
// may be absent. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := paths.ConfigFilePath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks that the config is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return fmt.Errorf("listen address is empty")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("websocket path %q must start with /", c.Path)
	}
	if c.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.ConnectWait.Duration < 0 {
		return fmt.Errorf("connect_wait must not be negative, got %s", c.ConnectWait)
	}
	return nil
}
