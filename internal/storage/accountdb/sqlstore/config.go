// Package sqlstore implements the account store on PostgreSQL and SQLite.
package sqlstore

import (
	"fmt"
	"net/url"
	"time"

	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// Config contains SQL database configuration settings.
type Config struct {
	// Database connection settings
	Driver           string `json:"driver" mapstructure:"driver"`
	ConnectionString string `json:"connection_string" mapstructure:"connection_string"`
	Host             string `json:"host" mapstructure:"host"`
	Port             int    `json:"port" mapstructure:"port"`
	Database         string `json:"database" mapstructure:"database"`
	Username         string `json:"username" mapstructure:"username"`
	Password         string `json:"password" mapstructure:"password"`
	SSLMode          string `json:"ssl_mode" mapstructure:"ssl_mode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`

	// Transaction settings
	DefaultTimeout time.Duration `json:"default_timeout" mapstructure:"default_timeout"`

	// SQLite feature flags
	EnableWALMode     bool `json:"enable_wal_mode" mapstructure:"enable_wal_mode"`
	EnableForeignKeys bool `json:"enable_foreign_keys" mapstructure:"enable_foreign_keys"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Driver:            "postgres",
		Host:              "localhost",
		Port:              5432,
		Database:          "custody",
		Username:          "custody",
		SSLMode:           "prefer",
		MaxOpenConns:      25,
		MaxIdleConns:      5,
		ConnMaxLifetime:   time.Hour,
		ConnMaxIdleTime:   time.Minute * 15,
		DefaultTimeout:    time.Second * 30,
		EnableWALMode:     true,
		EnableForeignKeys: true,
	}
}

// PostgresConfig creates a PostgreSQL-specific configuration.
func PostgresConfig() *Config {
	config := NewConfig()
	config.Driver = "postgres"
	config.Port = 5432
	config.SSLMode = "prefer"
	return config
}

// SQLiteConfig creates a SQLite-specific configuration.
func SQLiteConfig(dbPath string) *Config {
	config := NewConfig()
	config.Driver = "sqlite"
	config.Database = dbPath
	config.MaxOpenConns = 1 // SQLite limitation
	config.MaxIdleConns = 1
	return config
}

// Validate checks the configuration for common errors and normalizes the
// driver name.
func (c *Config) Validate() error {
	switch c.Driver {
	case "postgres", "postgresql":
		c.Driver = "postgres"
	case "sqlite", "sqlite3":
		// modernc.org/sqlite registers under "sqlite"
		c.Driver = "sqlite"
	default:
		return fmt.Errorf("%w: %s", accountdb.ErrInvalidBackend, c.Driver)
	}

	if c.Driver == "postgres" {
		if c.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Port)
		}
		if c.Database == "" {
			return accountdb.ErrMissingDatabase
		}
		if c.Username == "" {
			return fmt.Errorf("database username is required")
		}
		switch c.SSLMode {
		case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("invalid SSL mode: %s", c.SSLMode)
		}
	} else if c.Database == "" {
		return accountdb.ErrMissingDatabase
	}

	if c.MaxOpenConns < 0 {
		return fmt.Errorf("max_open_conns cannot be negative")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle_conns cannot be negative")
	}
	if c.MaxIdleConns > c.MaxOpenConns && c.MaxOpenConns > 0 {
		return fmt.Errorf("max_idle_conns cannot exceed max_open_conns")
	}
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("default_timeout must be positive")
	}
	if c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0 {
		return fmt.Errorf("connection lifetimes cannot be negative")
	}

	return nil
}

// BuildConnectionString builds a connection string from the config.
func (c *Config) BuildConnectionString() (string, error) {
	if c.ConnectionString != "" {
		return c.ConnectionString, nil
	}

	switch c.Driver {
	case "postgres":
		return c.buildPostgresConnectionString(), nil
	case "sqlite":
		return c.buildSQLiteConnectionString(), nil
	default:
		return "", fmt.Errorf("%w: %s", accountdb.ErrInvalidBackend, c.Driver)
	}
}

func (c *Config) buildPostgresConnectionString() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	params.Set("connect_timeout", "30")
	params.Set("application_name", "custodyd")

	dsn := fmt.Sprintf("postgres://%s", c.Host)

	if c.Port != 0 && c.Port != 5432 {
		dsn += fmt.Sprintf(":%d", c.Port)
	}

	dsn += "/" + c.Database

	if c.Username != "" {
		userInfo := c.Username
		if c.Password != "" {
			userInfo += ":" + c.Password
		}
		dsn = fmt.Sprintf("postgres://%s@%s", userInfo, dsn[11:])
	}

	return dsn + "?" + params.Encode()
}

func (c *Config) buildSQLiteConnectionString() string {
	// modernc.org/sqlite takes pragmas as repeated _pragma=name(value)
	// query parameters.
	params := url.Values{}
	if c.EnableWALMode {
		params.Add("_pragma", "journal_mode(WAL)")
	}
	if c.EnableForeignKeys {
		params.Add("_pragma", "foreign_keys(1)")
	}
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "busy_timeout(10000)")

	return c.Database + "?" + params.Encode()
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// WithConnectionString returns a new config with the specified connection string.
func (c *Config) WithConnectionString(connStr string) *Config {
	clone := c.Clone()
	clone.ConnectionString = connStr
	return clone
}

// WithDatabase returns a new config with the specified database name.
func (c *Config) WithDatabase(database string) *Config {
	clone := c.Clone()
	clone.Database = database
	return clone
}

// WithCredentials returns a new config with the specified credentials.
func (c *Config) WithCredentials(username, password string) *Config {
	clone := c.Clone()
	clone.Username = username
	clone.Password = password
	return clone
}

// WithHost returns a new config with the specified host.
func (c *Config) WithHost(host string) *Config {
	clone := c.Clone()
	clone.Host = host
	return clone
}

// WithPort returns a new config with the specified port.
func (c *Config) WithPort(port int) *Config {
	clone := c.Clone()
	clone.Port = port
	return clone
}

// WithPoolSettings returns a new config with the specified pool settings.
func (c *Config) WithPoolSettings(maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) *Config {
	clone := c.Clone()
	clone.MaxOpenConns = maxOpen
	clone.MaxIdleConns = maxIdle
	clone.ConnMaxLifetime = maxLifetime
	clone.ConnMaxIdleTime = maxIdleTime
	return clone
}

// String returns a string representation of the config with the password
// redacted.
func (c *Config) String() string {
	clone := c.Clone()
	if clone.Password != "" {
		clone.Password = "***"
	}

	connStr, _ := clone.BuildConnectionString()
	return fmt.Sprintf("Config{Driver: %s, Host: %s, Port: %d, Database: %s, Connection: %s}",
		clone.Driver, clone.Host, clone.Port, clone.Database, connStr)
}
