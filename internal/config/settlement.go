package config

import (
	"fmt"
	"time"
)

// SettlementConfig represents the [settlement] section.
// Each node owns one shard (shard_index of shard_count) of the
// settlement key space; a negative shard_index leaves the settlement
// runner off and the node serves reads and ingestion only.
type SettlementConfig struct {
	ShardIndex         int           `toml:"shard_index" mapstructure:"shard_index"`
	ShardCount         int           `toml:"shard_count" mapstructure:"shard_count"`
	TickInterval       time.Duration `toml:"tick_interval" mapstructure:"tick_interval"`
	AccountConcurrency int           `toml:"account_concurrency" mapstructure:"account_concurrency"`
}

// Enabled reports whether this node settles a shard.
func (s *SettlementConfig) Enabled() bool {
	return s.ShardIndex >= 0
}

// Validate performs validation on the settlement configuration.
func (s *SettlementConfig) Validate() error {
	if s.ShardCount < 1 {
		return fmt.Errorf("shard_count must be at least 1, got %d", s.ShardCount)
	}
	if s.ShardIndex >= s.ShardCount {
		return fmt.Errorf("shard_index %d out of range for shard_count %d", s.ShardIndex, s.ShardCount)
	}
	if s.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", s.TickInterval)
	}
	if s.AccountConcurrency < 1 {
		return fmt.Errorf("account_concurrency must be at least 1, got %d", s.AccountConcurrency)
	}
	return nil
}
