package config

import (
	"fmt"
	"net"
)

// GRPCConfig represents the [grpc] section.
// The gRPC listener only exposes the standard health service; it stays
// off unless orchestration needs it.
type GRPCConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Address string `toml:"address" mapstructure:"address"`

	// Message size caps in bytes. Zero falls back to the 4MB gRPC default.
	MaxRecvMsgSize int `toml:"max_recv_msg_size" mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize int `toml:"max_send_msg_size" mapstructure:"max_send_msg_size"`
}

// Validate performs validation on the gRPC configuration.
// A disabled section is not inspected.
func (g *GRPCConfig) Validate() error {
	if !g.Enabled {
		return nil
	}

	if g.Address == "" {
		return fmt.Errorf("address is required")
	}
	if _, _, err := net.SplitHostPort(g.Address); err != nil {
		return fmt.Errorf("invalid address %q: %w", g.Address, err)
	}

	if g.MaxRecvMsgSize < 0 {
		return fmt.Errorf("max_recv_msg_size cannot be negative")
	}
	if g.MaxSendMsgSize < 0 {
		return fmt.Errorf("max_send_msg_size cannot be negative")
	}

	return nil
}
