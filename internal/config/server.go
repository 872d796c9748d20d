package config

import (
	"fmt"
	"net"
	"time"
)

// ServerConfig represents the [server] section.
// It defines the HTTP listener that serves the JSON-RPC endpoint, the
// health probe and the websocket event feed.
type ServerConfig struct {
	Addr      string `toml:"addr" mapstructure:"addr"`           // Listen address (host:port)
	Websocket bool   `toml:"websocket" mapstructure:"websocket"` // Serve the /ws event feed
	Admin     bool   `toml:"admin" mapstructure:"admin"`         // Expose administrative methods

	// HTTP timeouts
	ReadTimeout     time.Duration `toml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// Validate performs validation on the server configuration.
func (s *ServerConfig) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("addr is required")
	}

	// An empty host binds all interfaces, so only the port is mandatory.
	_, port, err := net.SplitHostPort(s.Addr)
	if err != nil {
		return fmt.Errorf("invalid addr %q: %w", s.Addr, err)
	}
	if port == "" {
		return fmt.Errorf("addr %q is missing a port", s.Addr)
	}

	if s.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout cannot be negative")
	}
	if s.WriteTimeout < 0 {
		return fmt.Errorf("write_timeout cannot be negative")
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout cannot be negative")
	}

	return nil
}
