package config

import "github.com/spf13/viper"

// setDefaults sets the built-in default for every configuration key.
// Registering each key here also makes it reachable through
// CUSTODYD_-prefixed environment variables.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", "127.0.0.1:5005")
	v.SetDefault("server.websocket", true)
	v.SetDefault("server.admin", false)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// gRPC defaults
	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.address", "127.0.0.1:50051")
	v.SetDefault("grpc.max_recv_msg_size", 4<<20)
	v.SetDefault("grpc.max_send_msg_size", 4<<20)

	// Settlement defaults; shard_index -1 means this node does not settle
	v.SetDefault("settlement.shard_index", -1)
	v.SetDefault("settlement.shard_count", 1)
	v.SetDefault("settlement.tick_interval", "10s")
	v.SetDefault("settlement.account_concurrency", 8)

	// Database defaults
	v.SetDefault("database.backend", "memory")

	// SQL backend defaults
	v.SetDefault("database.sql.driver", "postgres")
	v.SetDefault("database.sql.host", "localhost")
	v.SetDefault("database.sql.port", 5432)
	v.SetDefault("database.sql.database", "custody")
	v.SetDefault("database.sql.username", "custody")
	v.SetDefault("database.sql.password", "")
	v.SetDefault("database.sql.ssl_mode", "prefer")
	v.SetDefault("database.sql.max_open_conns", 25)
	v.SetDefault("database.sql.max_idle_conns", 5)
	v.SetDefault("database.sql.conn_max_lifetime", "1h")
	v.SetDefault("database.sql.conn_max_idle_time", "15m")
	v.SetDefault("database.sql.default_timeout", "30s")
	v.SetDefault("database.sql.enable_wal_mode", true)
	v.SetDefault("database.sql.enable_foreign_keys", true)

	// Key-value backend defaults
	v.SetDefault("database.kv.engine", "pebble")
	v.SetDefault("database.kv.path", "/var/lib/custodyd/db")
	v.SetDefault("database.kv.compression", "lz4")
	v.SetDefault("database.kv.cache_size", 64<<20)
}
