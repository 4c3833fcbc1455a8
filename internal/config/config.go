// Package config loads the YAML configuration shared by the idlkit commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"solana-idl-kit/internal/solana"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	RPC     RPCConfig     `yaml:"rpc"`
	Program ProgramConfig `yaml:"program"`
	Storage StorageConfig `yaml:"storage"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type RPCConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	WSEndpoint string        `yaml:"ws_endpoint"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type ProgramConfig struct {
	ID string `yaml:"id"`
	// IDLPath is the Anchor IDL JSON of the program. Empty selects the
	// embedded feed program IDL.
	IDLPath string `yaml:"idl_path"`
}

type StorageConfig struct {
	Type          string `yaml:"type"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type MetricsConfig struct {
	// Addr is the listen address of /metrics. Empty disables the server.
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path and applies defaults. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data and applies defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RPC.Endpoint == "" {
		c.RPC.Endpoint = "https://api.devnet.solana.com"
	}
	if c.RPC.WSEndpoint == "" {
		c.RPC.WSEndpoint = WSEndpointFor(c.RPC.Endpoint)
	}
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = 30 * time.Second
	}
	if c.RPC.MaxRetries == 0 {
		c.RPC.MaxRetries = 3
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageMemory
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "idlkit.events"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// WSEndpointFor derives the WebSocket endpoint served next to an HTTP endpoint.
func WSEndpointFor(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	if c.RPC.Timeout < 0 {
		errs = append(errs, errors.New("rpc.timeout must not be negative"))
	}
	if c.RPC.MaxRetries < 0 {
		errs = append(errs, errors.New("rpc.max_retries must not be negative"))
	}
	if c.Program.ID != "" {
		if _, err := solana.ParsePublicKey(c.Program.ID); err != nil {
			errs = append(errs, fmt.Errorf("program.id: %w", err))
		}
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not one of memory, postgres", c.Storage.Type))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ProgramID parses the configured program address.
func (c *Config) ProgramID() (solana.PublicKey, error) {
	if c.Program.ID == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: program.id is not set", ErrInvalidConfig)
	}
	return solana.ParsePublicKey(c.Program.ID)
}

// SlogLevel maps the level name to a slog level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
