// Package config provides centralized configuration management for feedwizard.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Feed     FeedConfig
	Store    StoreConfig
	Enrich   EnrichConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0, runs can be long)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds feed upload settings for the HTTP surface.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed feed size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of runs in flight (default: 1)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long a request waits for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration of a single run (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
}

// FeedConfig describes the feed read by the run command.
type FeedConfig struct {
	// Path is a local feed file used when no argument is given
	Path string `env:"FEED_PATH"`

	// URL is an http(s) feed location used when Path is empty
	URL string `env:"FEED_URL"`

	// Delimiter fixes the CSV delimiter: ",", ";", "tab" or "|" (default: auto-detect)
	Delimiter Delimiter `env:"FEED_DELIMITER"`

	// Encoding is the CSV character encoding: utf-8, windows-1252, iso-8859-1 (default: utf-8)
	Encoding string `env:"FEED_ENCODING" default:"utf-8"`

	// Currency is stamped on every accepted product (default: SEK)
	Currency string `env:"FEED_CURRENCY" default:"SEK"`

	// FetchTimeout bounds downloading a feed from URL (default: 2m)
	FetchTimeout time.Duration `env:"FEED_FETCH_TIMEOUT" default:"2m"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// SaveRejected writes rejected rows to rejected_products (default: true)
	SaveRejected bool `env:"STORE_SAVE_REJECTED" default:"true"`

	// WriteAttempts is how many times a failed write is tried (default: 2)
	WriteAttempts int `env:"STORE_WRITE_ATTEMPTS" default:"2"`

	// AutoMigrate applies pending migrations on startup (default: true)
	AutoMigrate bool `env:"STORE_AUTO_MIGRATE" default:"true"`

	// CacheSize is the number of products kept by the read cache (default: 1024)
	CacheSize int `env:"STORE_CACHE_SIZE" default:"1024"`
}

// EnrichConfig holds enrichment settings.
type EnrichConfig struct {
	// Enabled turns on the mock enricher (default: false)
	Enabled bool `env:"ENRICH_ENABLED" default:"false"`

	// MinTitleLength is the length below which titles are rewritten (default: 12)
	MinTitleLength int `env:"ENRICH_MIN_TITLE_LENGTH" default:"12"`

	// MaxTitleLength caps rewritten titles (default: 70)
	MaxTitleLength int `env:"ENRICH_MAX_TITLE_LENGTH" default:"70"`

	// MaxCopyLength caps generated description copy (default: 240)
	MaxCopyLength int `env:"ENRICH_MAX_COPY_LENGTH" default:"240"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Delimiter is a fixed CSV delimiter. The zero value means auto-detect.
// It parses "tab" and `\t` as a tab character and implements flag.Value.
type Delimiter rune

// UnmarshalText parses a delimiter setting.
func (d *Delimiter) UnmarshalText(text []byte) error {
	s := string(text)
	switch s {
	case "":
		*d = 0
		return nil
	case "tab", `\t`:
		*d = '\t'
		return nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return fmt.Errorf("%q must be a single character or \"tab\"", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	nd := Delimiter(r)
	if err := nd.check(); err != nil {
		return err
	}
	*d = nd
	return nil
}

// Set implements flag.Value.
func (d *Delimiter) Set(s string) error { return d.UnmarshalText([]byte(s)) }

// String renders the setting as it would be written in FEED_DELIMITER.
func (d Delimiter) String() string {
	switch d {
	case 0:
		return ""
	case '\t':
		return "tab"
	default:
		return string(rune(d))
	}
}

// Rune returns the delimiter, or 0 for auto-detect.
func (d Delimiter) Rune() rune { return rune(d) }

// check rejects runes encoding/csv cannot split on.
func (d Delimiter) check() error {
	switch r := rune(d); {
	case r == 0:
		return nil
	case r == '"' || r == '\n' || r == '\r' || r == utf8.RuneError:
		return fmt.Errorf("%q cannot be used as a delimiter", r)
	}
	return nil
}
