// Package config loads the wsl-notifyd configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText parses strings such as "10s" or "1m30s".
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// Config represents the structure of the configuration file.
type Config struct {
	Server        Server        `toml:"server" yaml:"server"`
	Renderer      Renderer      `toml:"renderer" yaml:"renderer"`
	Notifications Notifications `toml:"notifications" yaml:"notifications"`
	Log           Log           `toml:"log" yaml:"log"`
}

type Server struct {
	Listen      string   `toml:"listen" yaml:"listen"`
	BusAddress  string   `toml:"bus_address" yaml:"bus_address"`
	CallTimeout Duration `toml:"call_timeout" yaml:"call_timeout"`
}

type Renderer struct {
	// Command starts the renderer. The listen address is appended.
	Command         []string `toml:"command" yaml:"command"`
	IdleTimeout     Duration `toml:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	ReadyTimeout    Duration `toml:"ready_timeout" yaml:"ready_timeout"`
	RestartInterval Duration `toml:"restart_interval" yaml:"restart_interval"`
	RestartBurst    int      `toml:"restart_burst" yaml:"restart_burst"`
}

type Notifications struct {
	DefaultDuration  Duration `toml:"default_duration" yaml:"default_duration"`
	SpoolLinger      Duration `toml:"spool_linger" yaml:"spool_linger"`
	SignalGapTimeout Duration `toml:"signal_gap_timeout" yaml:"signal_gap_timeout"`
}

type Log struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: Server{
			Listen:      "127.0.0.1:0",
			CallTimeout: Duration(25 * time.Second),
		},
		Renderer: Renderer{
			IdleTimeout:     Duration(10 * time.Second),
			ShutdownTimeout: Duration(5 * time.Second),
			ReadyTimeout:    Duration(10 * time.Second),
			RestartInterval: Duration(time.Second),
			RestartBurst:    3,
		},
		Notifications: Notifications{
			DefaultDuration:  Duration(5 * time.Second),
			SpoolLinger:      Duration(time.Second),
			SignalGapTimeout: Duration(2 * time.Second),
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the file at path on top of the defaults, then a sibling
// local override (config.local.toml next to config.toml) when present.
// A missing main file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	for _, p := range []string{path, localPath(path)} {
		err := decodeFile(p, config)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
		slog.Debug("Loaded config", "path", p)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func decodeFile(path string, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, config)
	default:
		md, err := toml.DecodeFile(path, config)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			slog.Warn("Unknown config keys", "path", path, "keys", undecoded)
		}
		return nil
	}
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	host, _, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		return fmt.Errorf("server.listen: %w", err)
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("server.listen: %q is not a loopback address", c.Server.Listen)
	}

	for name, d := range map[string]Duration{
		"server.call_timeout":              c.Server.CallTimeout,
		"renderer.idle_timeout":            c.Renderer.IdleTimeout,
		"renderer.shutdown_timeout":        c.Renderer.ShutdownTimeout,
		"renderer.ready_timeout":           c.Renderer.ReadyTimeout,
		"renderer.restart_interval":        c.Renderer.RestartInterval,
		"notifications.default_duration":   c.Notifications.DefaultDuration,
		"notifications.signal_gap_timeout": c.Notifications.SignalGapTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Notifications.SpoolLinger < 0 {
		return fmt.Errorf("notifications.spool_linger must not be negative, got %s", c.Notifications.SpoolLinger)
	}
	if c.Renderer.RestartBurst < 1 {
		return fmt.Errorf("renderer.restart_burst must be at least 1, got %d", c.Renderer.RestartBurst)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// LogLevel returns the configured level, info when unset.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
