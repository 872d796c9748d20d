package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads the configuration in priority order: defaults first,
// then the TOML file at configPath, then CUSTODYD_-prefixed environment
// variables. An empty configPath skips the file step.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 1. Defaults (lowest priority)
	setDefaults(v)

	// 2. Main config file
	if configPath != "" {
		if err := loadConfigFile(v, configPath); err != nil {
			return nil, err
		}
	}

	// 3. Environment variables (highest priority)
	v.SetEnvPrefix("CUSTODYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Unmarshal into the Config struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.configPath = configPath

	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// loadConfigFile reads the main configuration file into viper.
func loadConfigFile(v *viper.Viper, configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", configPath)
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return nil
}

// LoadDefaultConfig loads the configuration from the default location,
// falling back to built-in defaults when no file is present.
func LoadDefaultConfig() (*Config, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return LoadConfig("")
	}
	return LoadConfig(path)
}

// ReloadConfig reloads the configuration from the same path.
func ReloadConfig(existing *Config) (*Config, error) {
	return LoadConfig(existing.GetConfigPath())
}

// SaveExampleConfig writes a commented starter configuration file.
// It refuses to overwrite an existing file.
func SaveExampleConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write example config: %w", err)
	}

	return nil
}

// exampleConfig mirrors the built-in defaults so a freshly written file
// changes nothing until edited.
const exampleConfig = `# custodyd configuration.
#
# Values shown are the built-in defaults. Every key can also be set
# through the environment as CUSTODYD_<SECTION>_<KEY>, for example
# CUSTODYD_SERVER_ADDR or CUSTODYD_SETTLEMENT_SHARD_INDEX.

[server]
# Listen address of the JSON-RPC endpoint.
addr = "127.0.0.1:5005"
# Serve the /ws event feed.
websocket = true
# Expose administrative methods such as settle_transaction.
admin = false
# HTTP timeouts.
read_timeout = "30s"
write_timeout = "30s"
shutdown_timeout = "10s"

[grpc]
# Standard gRPC health service, for orchestration probes.
enabled = false
address = "127.0.0.1:50051"

[settlement]
# Shard owned by this node. A negative shard_index disables settlement;
# shard_index must be less than shard_count.
shard_index = -1
shard_count = 1
# Delay between settlement passes.
tick_interval = "10s"
# Accounts folded concurrently within one pass.
account_concurrency = 8

[database]
# Store backend: "sql", "kv" or "memory".
backend = "memory"

[database.sql]
# driver is "postgres" or "sqlite". For sqlite, database is the file path.
driver = "postgres"
host = "localhost"
port = 5432
database = "custody"
username = "custody"
#password = ""
ssl_mode = "prefer"
max_open_conns = 25
max_idle_conns = 5
conn_max_lifetime = "1h"
conn_max_idle_time = "15m"
default_timeout = "30s"

[database.kv]
# engine is "pebble" or "goleveldb".
engine = "pebble"
path = "/var/lib/custodyd/db"
# Row value compression: "none" or "lz4".
compression = "lz4"
# Block cache budget in bytes (pebble only).
cache_size = 67108864
`
