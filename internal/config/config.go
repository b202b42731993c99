// Package config loads the YAML configuration of the cytomat command.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-cytomat/cytomat"
	"github.com/moffa90/go-cytomat/logging"
	"github.com/moffa90/go-cytomat/protocol"
	"github.com/moffa90/go-cytomat/serial"
)

// Config is the complete tool configuration.
type Config struct {
	Serial  serial.Config  `yaml:"serial"`
	Engine  EngineConfig   `yaml:"engine"`
	Log     logging.Config `yaml:"log"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// EngineConfig holds response timeouts.
type EngineConfig struct {
	Timeout         time.Duration            `yaml:"timeout"`
	CommandTimeouts map[string]time.Duration `yaml:"command_timeouts"`
}

// MetricsConfig controls the Prometheus endpoint of the watch command.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// moveTimeout covers plate transports and initialization.
const moveTimeout = 60 * time.Second

// Default returns the configuration used when no file is given.
func Default() Config {
	timeouts := make(map[string]time.Duration)
	for _, name := range []string{
		protocol.CmdTransferToStorage, protocol.CmdStorageToTransfer,
		protocol.CmdStorageToWait, protocol.CmdWaitToStorage,
		protocol.CmdTransferToWait, protocol.CmdWaitToTransfer,
		protocol.CmdMoveHandler, protocol.CmdInitialize, protocol.CmdReset,
		protocol.CmdRotateSwapStation, protocol.CmdHomeSwapStation,
	} {
		timeouts[name] = moveTimeout
	}

	return Config{
		Serial: serial.DefaultConfig("/dev/ttyUSB0"),
		Engine: EngineConfig{
			Timeout:         cytomat.DefaultTimeout,
			CommandTimeouts: timeouts,
		},
		Log: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},
	}
}

// Load reads the file at path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, err = Parse(data, cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over base and validates the result. base is not modified.
func Parse(data []byte, base Config) (Config, error) {
	cfg := base
	cfg.Engine.CommandTimeouts = make(map[string]time.Duration, len(base.Engine.CommandTimeouts))
	for name, d := range base.Engine.CommandTimeouts {
		cfg.Engine.CommandTimeouts[name] = d
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot use.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Serial.Device) == "" {
		return errors.New("serial.device must not be empty")
	}
	if _, err := cfg.Serial.Mode(); err != nil {
		return err
	}
	if cfg.Engine.Timeout <= 0 {
		return errors.New("engine.timeout must be > 0")
	}

	names := make([]string, 0, len(cfg.Engine.CommandTimeouts))
	for name := range cfg.Engine.CommandTimeouts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := protocol.Lookup(name); !ok {
			return fmt.Errorf("engine.command_timeouts: unknown command %q", name)
		}
		if cfg.Engine.CommandTimeouts[name] <= 0 {
			return fmt.Errorf("engine.command_timeouts.%s must be > 0", name)
		}
	}

	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Listen) == "" {
		return errors.New("metrics.listen must not be empty when metrics.enabled=true")
	}
	return nil
}

// EngineOptions converts the engine section into engine options.
func (c Config) EngineOptions() []cytomat.Option {
	opts := []cytomat.Option{cytomat.WithTimeout(c.Engine.Timeout)}
	for name, d := range c.Engine.CommandTimeouts {
		opts = append(opts, cytomat.WithCommandTimeout(name, d))
	}
	return opts
}
