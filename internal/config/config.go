// Package config loads and validates the custodyd configuration from
// defaults, a TOML file, and CUSTODYD_-prefixed environment variables.
package config

import "path/filepath"

// DefaultConfigFile is the file name probed when no --conf flag is given.
const DefaultConfigFile = "custodyd.toml"

// Config represents the complete custodyd configuration.
type Config struct {
	// Server configures the HTTP JSON-RPC endpoint and the websocket feed.
	Server ServerConfig `toml:"server" mapstructure:"server"`

	// GRPC configures the optional gRPC health endpoint.
	GRPC GRPCConfig `toml:"grpc" mapstructure:"grpc"`

	// Settlement assigns this node its slice of the settlement key space.
	Settlement SettlementConfig `toml:"settlement" mapstructure:"settlement"`

	// Database selects and tunes the account store backend.
	Database DatabaseConfig `toml:"database" mapstructure:"database"`

	// Internal fields for configuration management
	configPath string `toml:"-" mapstructure:"-"`
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return DefaultConfigFile
}

// ConfigPathFromDir returns the configuration path for a specific directory.
func ConfigPathFromDir(configDir string) string {
	return filepath.Join(configDir, DefaultConfigFile)
}

// GetConfigPath returns the path of the file the configuration was loaded
// from, or "" when it came from defaults and environment only.
func (c *Config) GetConfigPath() string {
	return c.configPath
}
