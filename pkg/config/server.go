package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the HTTP fronting.
type ServerConfig struct {
	// Host to bind. Empty binds all interfaces.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port to listen on.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// RequestTimeout is the per-request deadline. The pipeline inherits it;
	// component timeouts are not enforced below this layer.
	RequestTimeout Duration `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(60 * time.Second)
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format: simple, verbose.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// File path for log output. Empty = stderr.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}
