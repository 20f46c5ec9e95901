// Package config loads and validates the benchmark configuration from
// defaults, an optional YAML file, and SPEEDTEST_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Role represents the process's chosen role.
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

// Duration wraps time.Duration so YAML values like "500ms" or "1s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"1s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config stores every tunable of the server and client cores. Entry-point
// layers fill the client's per-run parameters from flags or prompts, with
// Client carrying their defaults.
type Config struct {
	OfferPort         int      `yaml:"offer_port"`         // well-known offer broadcast port
	BroadcastAddr     string   `yaml:"broadcast_addr"`     // broadcast or multicast target for offers
	BroadcastInterval Duration `yaml:"broadcast_interval"` // time between offer datagrams

	TCPPort int `yaml:"tcp_port"` // TCP responder port, 0 picks an ephemeral one
	UDPPort int `yaml:"udp_port"` // UDP responder port, 0 picks an ephemeral one

	SegmentPayloadSize int      `yaml:"segment_payload_size"` // data bytes per UDP segment
	UDPTimeout         Duration `yaml:"udp_timeout"`          // client's UDP inactivity window
	TCPBufferSize      int      `yaml:"tcp_buffer_size"`      // chunk size for TCP streaming
	SocketTimeout      Duration `yaml:"socket_timeout"`       // TCP dial and per-read deadline

	Monitor MonitorConfig `yaml:"monitor"`
	Client  ClientConfig  `yaml:"client"`
}

// MonitorConfig controls the server's optional observability listener.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// ClientConfig carries default per-run parameters for client mode.
type ClientConfig struct {
	FileSize uint64 `yaml:"file_size"` // bytes requested per connection
	TCPConns int    `yaml:"tcp_conns"`
	UDPConns int    `yaml:"udp_conns"`
}

// DefaultConfig returns the reference settings of the protocol.
func DefaultConfig() *Config {
	return &Config{
		OfferPort:          13117,
		BroadcastAddr:      "255.255.255.255",
		BroadcastInterval:  Duration(time.Second),
		TCPPort:            0,
		UDPPort:            0,
		SegmentPayloadSize: 1024,
		UDPTimeout:         Duration(time.Second),
		TCPBufferSize:      4096,
		SocketTimeout:      Duration(5 * time.Second),
		Monitor: MonitorConfig{
			Enabled: false,
			Listen:  ":9100",
		},
		Client: ClientConfig{
			FileSize: 1_000_000,
			TCPConns: 1,
			UDPConns: 1,
		},
	}
}

// Load builds the effective configuration: defaults, overlaid by the YAML
// file at path (skipped when path is empty), overlaid by environment
// variables. A .env file in the working directory is read first when
// present. The result is validated.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // a missing .env is fine

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays SPEEDTEST_* environment variables onto cfg.
func applyEnv(cfg *Config) error {
	var err error
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" || err != nil {
			return
		}
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = fmt.Errorf("%s: %w", key, perr)
			return
		}
		*dst = n
	}
	setBool := func(key string, dst *bool) {
		v := os.Getenv(key)
		if v == "" || err != nil {
			return
		}
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			err = fmt.Errorf("%s: %w", key, perr)
			return
		}
		*dst = b
	}
	setDuration := func(key string, dst *Duration) {
		v := os.Getenv(key)
		if v == "" || err != nil {
			return
		}
		d, perr := time.ParseDuration(v)
		if perr != nil {
			err = fmt.Errorf("%s: %w", key, perr)
			return
		}
		*dst = Duration(d)
	}

	setInt("SPEEDTEST_OFFER_PORT", &cfg.OfferPort)
	setStr("SPEEDTEST_BROADCAST_ADDR", &cfg.BroadcastAddr)
	setDuration("SPEEDTEST_BROADCAST_INTERVAL", &cfg.BroadcastInterval)
	setInt("SPEEDTEST_TCP_PORT", &cfg.TCPPort)
	setInt("SPEEDTEST_UDP_PORT", &cfg.UDPPort)
	setInt("SPEEDTEST_SEGMENT_PAYLOAD_SIZE", &cfg.SegmentPayloadSize)
	setDuration("SPEEDTEST_UDP_TIMEOUT", &cfg.UDPTimeout)
	setInt("SPEEDTEST_TCP_BUFFER_SIZE", &cfg.TCPBufferSize)
	setDuration("SPEEDTEST_SOCKET_TIMEOUT", &cfg.SocketTimeout)
	setBool("SPEEDTEST_MONITOR_ENABLED", &cfg.Monitor.Enabled)
	setStr("SPEEDTEST_MONITOR_LISTEN", &cfg.Monitor.Listen)

	return err
}

// Validate rejects settings the cores cannot run with.
func (c *Config) Validate() error {
	if c.OfferPort < 1 || c.OfferPort > 65535 {
		return fmt.Errorf("offer_port %d out of range 1~65535", c.OfferPort)
	}
	if c.TCPPort < 0 || c.TCPPort > 65535 {
		return fmt.Errorf("tcp_port %d out of range 0~65535", c.TCPPort)
	}
	if c.UDPPort < 0 || c.UDPPort > 65535 {
		return fmt.Errorf("udp_port %d out of range 0~65535", c.UDPPort)
	}
	if c.BroadcastAddr == "" {
		return fmt.Errorf("broadcast_addr must not be empty")
	}
	if c.BroadcastInterval <= 0 {
		return fmt.Errorf("broadcast_interval must be positive")
	}
	if c.SegmentPayloadSize < 1 {
		return fmt.Errorf("segment_payload_size must be at least 1")
	}
	if c.UDPTimeout <= 0 {
		return fmt.Errorf("udp_timeout must be positive")
	}
	if c.TCPBufferSize < 1 {
		return fmt.Errorf("tcp_buffer_size must be at least 1")
	}
	if c.SocketTimeout <= 0 {
		return fmt.Errorf("socket_timeout must be positive")
	}
	if c.Monitor.Enabled && c.Monitor.Listen == "" {
		return fmt.Errorf("monitor.listen must be set when monitor is enabled")
	}
	return nil
}
