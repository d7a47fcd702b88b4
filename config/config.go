package config

import (
	"fmt"

	"github.com/kbukum/reportflow/encryption"
	"github.com/kbukum/reportflow/executor"
	"github.com/kbukum/reportflow/kafka"
	"github.com/kbukum/reportflow/observability"
	"github.com/kbukum/reportflow/redis"
	"github.com/kbukum/reportflow/validation"
)

// Config is the complete configuration of a reportflow process.
//
//	name: crash-uploader
//	environment: production
//	executor:
//	  timeout: 30s
//	  max_in_flight: 64
//	chains:
//	  dirs: [./chains]
//	  root: upload
//	redis:
//	  enabled: true
//	  addr: localhost:6379
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Executor   executor.Config  `yaml:"executor" mapstructure:"executor"`
	Chains     ChainsConfig     `yaml:"chains" mapstructure:"chains"`
	Redact     RedactConfig     `yaml:"redact" mapstructure:"redact"`
	Gzip       GzipConfig       `yaml:"gzip" mapstructure:"gzip"`
	Encryption EncryptionConfig `yaml:"encryption" mapstructure:"encryption"`
	Redis      redis.Config     `yaml:"redis" mapstructure:"redis"`
	Kafka      kafka.Config     `yaml:"kafka" mapstructure:"kafka"`
	Tracing    TracingConfig    `yaml:"tracing" mapstructure:"tracing"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
}

// ChainsConfig locates chain definitions.
type ChainsConfig struct {
	// Dirs are searched for <name>.yaml definitions.
	Dirs []string `yaml:"dirs" mapstructure:"dirs" validate:"required,min=1"`
	// Root names the chain runs start from.
	Root string `yaml:"root" mapstructure:"root" validate:"required,chainname"`
}

// RedactConfig lists glob patterns of fields to redact.
type RedactConfig struct {
	Patterns []string `yaml:"patterns" mapstructure:"patterns" validate:"dive,glob"`
}

// GzipConfig sets the compression level of the gzip filter.
type GzipConfig struct {
	Level int `yaml:"level" mapstructure:"level" validate:"gte=-2,lte=9"`
}

// EncryptionConfig configures the payload cipher.
type EncryptionConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Algorithm  string `yaml:"algorithm" mapstructure:"algorithm" validate:"omitempty,oneof=aes-256-gcm chacha20-poly1305"`
	Passphrase string `yaml:"passphrase" mapstructure:"passphrase" validate:"required_if=Enabled true"`
}

// TracingConfig enables OTLP trace export.
type TracingConfig struct {
	observability.TracerConfig `yaml:",inline" mapstructure:",squash"`

	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// MetricsConfig enables OTLP metric export.
type MetricsConfig struct {
	observability.MeterConfig `yaml:",inline" mapstructure:",squash"`

	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// ApplyDefaults fills unset fields of every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Executor.ApplyDefaults()
	if c.Executor.Name == "reportflow" {
		c.Executor.Name = c.Name
	}
	if len(c.Chains.Dirs) == 0 {
		c.Chains.Dirs = []string{"./chains"}
	}
	if c.Chains.Root == "" {
		c.Chains.Root = "default"
	}
	if c.Gzip.Level == 0 {
		c.Gzip.Level = 6
	}
	if c.Encryption.Algorithm == "" {
		c.Encryption.Algorithm = string(encryption.AlgorithmAESGCM)
	}
	c.Redis.ApplyDefaults()
	c.Kafka.ApplyDefaults()

	defaults := observability.DefaultTracerConfig(c.Name)
	fillTelemetry(&c.Tracing.ServiceName, &c.Tracing.ServiceVersion, &c.Tracing.Environment, &c.Tracing.Endpoint, c, defaults.Endpoint)
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = defaults.SampleRate
	}
	fillTelemetry(&c.Metrics.ServiceName, &c.Metrics.ServiceVersion, &c.Metrics.Environment, &c.Metrics.Endpoint, c, defaults.Endpoint)
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = observability.DefaultMeterConfig(c.Name).Interval
	}
}

func fillTelemetry(name, version, env, endpoint *string, c *Config, defaultEndpoint string) {
	if *name == "" {
		*name = c.Name
	}
	if *version == "" {
		*version = c.Version
	}
	if *env == "" {
		*env = c.Environment
	}
	if *endpoint == "" {
		*endpoint = defaultEndpoint
	}
}

// Validate validates every section, naming the first one that fails.
func (c *Config) Validate() error {
	sections := []struct {
		name     string
		validate func() error
	}{
		{"service", c.ServiceConfig.Validate},
		{"executor", c.Executor.Validate},
		{"chains", func() error { return validation.Validate(&c.Chains) }},
		{"redact", func() error { return validation.Validate(&c.Redact) }},
		{"gzip", func() error { return validation.Validate(&c.Gzip) }},
		{"encryption", func() error { return validation.Validate(&c.Encryption) }},
		{"redis", c.Redis.Validate},
		{"kafka", c.Kafka.Validate},
		{"tracing", func() error { return validation.Validate(&c.Tracing.TracerConfig) }},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
