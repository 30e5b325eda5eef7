// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/momentics/hioload-stream/protocol"
	"github.com/sirupsen/logrus"
)

// Config holds the knobs shared by all servers.
type Config struct {
	// Logger receives accept-loop diagnostics.
	Logger logrus.FieldLogger
	// HandshakeTimeout bounds the websocket upgrade of each connection.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() *Config {
	return &Config{
		Logger:           logrus.StandardLogger(),
		HandshakeTimeout: protocol.DefaultHandshakeTimeout,
	}
}

// Option customizes a server.
type Option func(*Config)

// WithLogger sets the diagnostics logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithHandshakeTimeout overrides the websocket upgrade deadline.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.HandshakeTimeout = d
		}
	}
}

func buildConfig(opts []Option) *Config {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}
