// Package config loads the quasselctl TOML file onto client and logging
// settings. Keys absent from the file keep their defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/libquassel/internal/client"
	"github.com/danmuck/libquassel/internal/logging"
	"github.com/danmuck/libquassel/internal/protocol/session"
	"github.com/go-playground/validator/v10"
)

type fileConfig struct {
	Addr              string   `toml:"addr"`
	User              string   `toml:"user"`
	Password          string   `toml:"password"`
	TLS               bool     `toml:"tls"`
	TLSInsecure       bool     `toml:"tls_insecure"`
	TLSServerName     string   `toml:"tls_server_name"`
	TLSCAFile         string   `toml:"tls_ca_file"`
	Compression       bool     `toml:"compression"`
	Protocols         []string `toml:"protocols"`
	ConnectTimeout    string   `toml:"connect_timeout"`
	HandshakeTimeout  string   `toml:"handshake_timeout"`
	HeartbeatInterval string   `toml:"heartbeat_interval"`
	IdleFlushAfter    string   `toml:"idle_flush_after"`
	BacklogLimit      int      `toml:"backlog_limit"`
	ClientVersion     string   `toml:"client_version"`
	MetricsAddr       string   `toml:"metrics_addr"`
	Log               struct {
		Level     string `toml:"level"`
		JSON      bool   `toml:"json"`
		NoColor   bool   `toml:"no_color"`
		Timestamp bool   `toml:"timestamp"`
	} `toml:"log"`
}

// Config is the validated result of Load.
type Config struct {
	Addr          string `validate:"required,hostname_port"`
	User          string `validate:"required_with=Password"`
	Password      string
	Protocols     []string `validate:"dive,oneof=datastream legacy"`
	ClientVersion string   `validate:"required"`
	BacklogLimit  int      `validate:"gte=0"`
	MetricsAddr   string   `validate:"omitempty,hostname_port"`
	Session       session.Config
	Log           LogConfig
}

type LogConfig struct {
	Level     string `validate:"omitempty,oneof=trace debug info warn warning error off disabled"`
	JSON      bool
	NoColor   bool
	Timestamp bool
}

func Default() Config {
	return Config{
		Addr:          "localhost:4242",
		Protocols:     []string{"datastream", "legacy"},
		ClientVersion: "quasselctl",
		BacklogLimit:  50,
		Session:       session.DefaultConfig(),
		Log:           LogConfig{Level: "info", Timestamp: true},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	return c.Session.ValidateClientTransport()
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("user") {
		cfg.User = strings.TrimSpace(raw.User)
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("tls") {
		cfg.Session.TLS.Enabled = raw.TLS
	}
	if meta.IsDefined("tls_insecure") {
		cfg.Session.TLS.InsecureSkipVerify = raw.TLSInsecure
	}
	if meta.IsDefined("tls_server_name") {
		cfg.Session.TLS.ServerName = strings.TrimSpace(raw.TLSServerName)
	}
	if meta.IsDefined("tls_ca_file") {
		cfg.Session.TLS.CAFile = strings.TrimSpace(raw.TLSCAFile)
	}
	if meta.IsDefined("compression") {
		cfg.Session.Compression = raw.Compression
	}
	if meta.IsDefined("protocols") {
		cfg.Protocols = normalizeNames(raw.Protocols)
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.Session.ConnectTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.Session.HandshakeTimeout},
		{"heartbeat_interval", raw.HeartbeatInterval, &cfg.Session.HeartbeatInterval},
		{"idle_flush_after", raw.IdleFlushAfter, &cfg.Session.IdleFlushAfter},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("backlog_limit") {
		cfg.BacklogLimit = raw.BacklogLimit
	}
	if meta.IsDefined("client_version") {
		cfg.ClientVersion = strings.TrimSpace(raw.ClientVersion)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}
	if meta.IsDefined("log", "json") {
		cfg.Log.JSON = raw.Log.JSON
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Log.Timestamp = raw.Log.Timestamp
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func normalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, name := range in {
		v := strings.ToLower(strings.TrimSpace(name))
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ClientOptions maps the file settings onto a client connection.
func (c Config) ClientOptions() client.Options {
	return client.Options{
		Session:       c.Session,
		Protocols:     c.Protocols,
		ClientVersion: c.ClientVersion,
		User:          c.User,
		Password:      c.Password,
		BacklogLimit:  c.BacklogLimit,
	}
}

// Logging maps the [log] section onto the logger backend.
func (l LogConfig) Logging() logging.Config {
	level, ok := logging.ParseLevel(l.Level)
	if !ok {
		level, _ = logging.ParseLevel("info")
	}
	return logging.Config{
		Level:     level,
		JSON:      l.JSON,
		NoColor:   l.NoColor,
		Timestamp: l.Timestamp,
		Out:       os.Stderr,
	}
}
