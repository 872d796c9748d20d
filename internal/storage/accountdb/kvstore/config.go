package kvstore

import (
	"fmt"

	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// Config contains key-value store configuration settings.
type Config struct {
	// Engine selects the embedded backend: "pebble" or "goleveldb".
	Engine string `json:"engine" mapstructure:"engine"`

	// Path is the on-disk directory for the database.
	Path string `json:"path" mapstructure:"path"`

	// Compression selects the row value compressor: "none" or "lz4".
	Compression string `json:"compression" mapstructure:"compression"`

	// CacheSize is the block cache budget in bytes (pebble only).
	CacheSize int64 `json:"cache_size" mapstructure:"cache_size"`
}

// NewConfig creates a Config with sensible defaults.
func NewConfig(path string) *Config {
	return &Config{
		Engine:      "pebble",
		Path:        path,
		Compression: "lz4",
		CacheSize:   64 << 20, // 64MB
	}
}

// Validate checks the configuration and normalizes names.
func (c *Config) Validate() error {
	switch c.Engine {
	case "pebble", "goleveldb":
	case "leveldb":
		c.Engine = "goleveldb"
	default:
		return fmt.Errorf("%w: %s", accountdb.ErrInvalidBackend, c.Engine)
	}

	if c.Path == "" {
		return accountdb.ErrMissingPath
	}

	if c.Compression == "" {
		c.Compression = "none"
	}
	if _, err := GetCompressor(c.Compression); err != nil {
		return err
	}

	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size cannot be negative")
	}

	return nil
}
