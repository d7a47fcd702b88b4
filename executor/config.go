package executor

import (
	"time"

	"github.com/kbukum/reportflow/validation"
)

// Config configures an Executor.
type Config struct {
	// Name identifies the executor in logs, health and metrics.
	Name string `yaml:"name" mapstructure:"name"`
	// Timeout bounds every run from submission to terminal result.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	// MaxInFlight caps concurrent runs. 0 means unlimited.
	MaxInFlight int `yaml:"max_in_flight" mapstructure:"max_in_flight" validate:"gte=0"`
}

// DefaultConfig returns an executor config with a 30s run timeout.
func DefaultConfig() Config {
	c := Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "reportflow"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
