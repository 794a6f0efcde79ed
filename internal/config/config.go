// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

// Package config loads sitter configuration from defaults, a YAML file and
// command-line flags, in that order of precedence.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/sitter-id/sitter/internal/credential"
	"github.com/sitter-id/sitter/internal/logging"
)

// Minimum hash costs accepted from configuration.
const (
	MinMemoryKiB  = 19 * 1024
	MinSaltLength = 24
	MinKeyLength  = 16
)

// Audit writer names.
const (
	AuditWriterNone     = "none"
	AuditWriterLog      = "log"
	AuditWriterPostgres = "postgres"
)

// Config is the full configuration tree.
type Config struct {
	Database   Database   `koanf:"database" json:"database,omitempty"`
	Log        Log        `koanf:"log" json:"log,omitempty"`
	Credential Credential `koanf:"credential" json:"credential,omitempty"`
	Audit      Audit      `koanf:"audit" json:"audit,omitempty"`
	HTTP       HTTP       `koanf:"http" json:"http,omitempty"`
	Metrics    Metrics    `koanf:"metrics" json:"metrics,omitempty"`
}

// Database configures the PostgreSQL pool.
type Database struct {
	URL            string        `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL; DATABASE_URL is used when empty"`
	MaxConns       int32         `koanf:"max_conns" json:"max_conns,omitempty" jsonschema:"minimum=0"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" json:"connect_timeout,omitempty" jsonschema:"type=string,description=Go duration such as 10s"`
	ConnectRetries uint64        `koanf:"connect_retries" json:"connect_retries,omitempty"`
}

// Log configures the default logger.
type Log struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Credential holds argon2id cost parameters.
type Credential struct {
	Memory      uint32 `koanf:"memory" json:"memory,omitempty" jsonschema:"description=Memory cost in KiB"`
	Iterations  uint32 `koanf:"iterations" json:"iterations,omitempty"`
	Parallelism uint8  `koanf:"parallelism" json:"parallelism,omitempty"`
	SaltLength  uint32 `koanf:"salt_length" json:"salt_length,omitempty"`
	KeyLength   uint32 `koanf:"key_length" json:"key_length,omitempty"`
}

// Params converts to hasher parameters.
func (c Credential) Params() credential.Params {
	return credential.Params{
		Memory:      c.Memory,
		Iterations:  c.Iterations,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

// Audit selects where audit entries go.
type Audit struct {
	Writer string `koanf:"writer" json:"writer,omitempty" jsonschema:"enum=none,enum=log,enum=postgres"`
	Buffer int    `koanf:"buffer" json:"buffer,omitempty" jsonschema:"minimum=1"`
}

// HTTP configures the API listener.
type HTTP struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// Metrics configures the observability listener. Empty Addr disables it.
type Metrics struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	p := credential.DefaultParams()
	return &Config{
		Database: Database{
			MaxConns:       10,
			ConnectTimeout: 10 * time.Second,
			ConnectRetries: 5,
		},
		Log: Log{Format: "json", Level: "info"},
		Credential: Credential{
			Memory:      p.Memory,
			Iterations:  p.Iterations,
			Parallelism: p.Parallelism,
			SaltLength:  p.SaltLength,
			KeyLength:   p.KeyLength,
		},
		Audit:   Audit{Writer: AuditWriterLog, Buffer: 256},
		HTTP:    HTTP{Addr: "127.0.0.1:8080"},
		Metrics: Metrics{Addr: "127.0.0.1:9100"},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"database-url": "database.url",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"audit-writer": "audit.writer",
}

// Load builds the configuration. path may be empty; flags may be nil.
// Only flags the user actually set override the file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.Code("CONFIG_SCHEMA_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the schema cannot express.
func (c *Config) Validate() error {
	invalid := func(key string, value any, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf(format, args...)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", c.Log.Format, "log format must be 'json' or 'text'")
	}
	if _, err := c.LogLevel(); err != nil {
		return invalid("log.level", c.Log.Level, "unknown log level")
	}

	cr := c.Credential
	switch {
	case cr.Memory < MinMemoryKiB:
		return invalid("credential.memory", cr.Memory, "memory must be at least %d KiB", MinMemoryKiB)
	case cr.Iterations < 1:
		return invalid("credential.iterations", cr.Iterations, "iterations must be at least 1")
	case cr.Parallelism < 1:
		return invalid("credential.parallelism", cr.Parallelism, "parallelism must be at least 1")
	case cr.SaltLength < MinSaltLength:
		return invalid("credential.salt_length", cr.SaltLength, "salt must be at least %d bytes", MinSaltLength)
	case cr.KeyLength < MinKeyLength:
		return invalid("credential.key_length", cr.KeyLength, "key must be at least %d bytes", MinKeyLength)
	}

	switch c.Audit.Writer {
	case AuditWriterNone, AuditWriterLog, AuditWriterPostgres:
	default:
		return invalid("audit.writer", c.Audit.Writer, "audit writer must be none, log or postgres")
	}
	if c.Audit.Buffer < 1 {
		return invalid("audit.buffer", c.Audit.Buffer, "audit buffer must be positive")
	}
	if c.Database.MaxConns < 0 {
		return invalid("database.max_conns", c.Database.MaxConns, "max_conns must not be negative")
	}
	return nil
}

// RequireDatabase fails when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database URL is required: set database.url, --database-url or DATABASE_URL")
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	return logging.ParseLevel(c.Log.Level)
}
