package server

import (
	"fmt"
	"time"
)

// Config defines configuration options for the operational HTTP server.
type Config struct {
	// Disable turns the server off; health and metrics are then not exposed.
	Disable bool `yaml:"disable"`

	// HideErrorDetails hides error trace and details in responses.
	HideErrorDetails bool `yaml:"hide_error_details"`

	Host string `yaml:"host" default:"0.0.0.0"`
	Port int    `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`

	ReadTimeout  time.Duration `yaml:"read_timeout"  default:"5s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"  default:"120s"`

	// HandleTimeout bounds a single request, readiness checks included.
	HandleTimeout time.Duration `yaml:"request_timeout" default:"5s"`
}

// Address returns the server's listen address in the form "host:port".
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
