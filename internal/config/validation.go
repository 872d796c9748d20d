package config

import "fmt"

// ValidateConfig performs validation on the complete configuration.
func ValidateConfig(config *Config) error {
	if err := config.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}

	if err := config.GRPC.Validate(); err != nil {
		return fmt.Errorf("grpc config validation failed: %w", err)
	}

	if err := config.Settlement.Validate(); err != nil {
		return fmt.Errorf("settlement config validation failed: %w", err)
	}

	if err := config.Database.Validate(); err != nil {
		return fmt.Errorf("database config validation failed: %w", err)
	}

	return nil
}
