package config

import (
	"encoding"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/feedwizard/internal/core"
	"github.com/hashicorp/go-multierror"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LookupFunc resolves one variable. It has the signature of os.LookupEnv.
type LookupFunc func(name string) (string, bool)

// LoadFrom is Load with an explicit variable source. Every unset required
// variable and every unparseable value is reported, not just the first.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	l := loader{lookup: lookup}
	l.loadStruct(reflect.ValueOf(cfg).Elem())
	if err := l.errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// envTag is the parsed env, envAlt, default and required tags of a field.
type envTag struct {
	name, alt, def string
	required       bool
}

func parseTag(f reflect.StructField) (envTag, bool) {
	t := envTag{
		name:     f.Tag.Get("env"),
		alt:      f.Tag.Get("envAlt"),
		def:      f.Tag.Get("default"),
		required: f.Tag.Get("required") == "true",
	}
	return t, t.name != ""
}

type loader struct {
	lookup LookupFunc
	errs   *multierror.Error
}

func (l *loader) get(name string) string {
	if name == "" {
		return ""
	}
	v, _ := l.lookup(name)
	return strings.TrimSpace(v)
}

var textUnmarshaler = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// loadStruct populates the tagged fields of v, recursing into section
// structs. Types implementing encoding.TextUnmarshaler parse themselves.
func (l *loader) loadStruct(v reflect.Value) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && !reflect.PointerTo(field.Type).Implements(textUnmarshaler) {
			l.loadStruct(fieldVal)
			continue
		}

		tag, ok := parseTag(field)
		if !ok {
			continue
		}

		value := l.get(tag.name)
		if value == "" {
			value = l.get(tag.alt)
		}
		if value == "" {
			if tag.required {
				l.errs = multierror.Append(l.errs, fmt.Errorf("required environment variable %s is not set", tag.name))
				continue
			}
			value = tag.def
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			l.errs = multierror.Append(l.errs, fmt.Errorf("invalid value for %s=%q: %w", tag.name, value, err))
		}
	}
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return u.UnmarshalText([]byte(value))
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	// Database validation
	if c.Database.URL == "" {
		add("DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		add("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
	}
	if c.Database.MaxConns <= 0 {
		add("DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		add("DB_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		add("SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload validation
	if c.Upload.MaxFileSize <= 0 {
		add("UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.MaxConcurrent <= 0 {
		add("UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		add("UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if c.Upload.Timeout <= 0 {
		add("UPLOAD_TIMEOUT must be positive")
	}

	// Feed validation
	if err := c.Feed.Delimiter.check(); err != nil {
		add("FEED_DELIMITER: %v", err)
	}
	if _, err := core.ParseEncoding(c.Feed.Encoding); err != nil {
		add("FEED_ENCODING: %v", err)
	}
	if len(strings.TrimSpace(c.Feed.Currency)) != 3 {
		add("FEED_CURRENCY (%q) must be a three-letter code", c.Feed.Currency)
	}
	if c.Feed.URL != "" {
		if u, err := url.Parse(c.Feed.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("FEED_URL (%q) must be an http(s) URL", c.Feed.URL)
		}
	}
	if c.Feed.FetchTimeout <= 0 {
		add("FEED_FETCH_TIMEOUT must be positive")
	}

	// Store validation
	if c.Store.WriteAttempts <= 0 {
		add("STORE_WRITE_ATTEMPTS must be positive")
	}
	if c.Store.CacheSize <= 0 {
		add("STORE_CACHE_SIZE must be positive")
	}

	// Enrich validation
	if c.Enrich.MinTitleLength < 0 {
		add("ENRICH_MIN_TITLE_LENGTH must be non-negative")
	}
	if c.Enrich.MaxTitleLength < 4 {
		add("ENRICH_MAX_TITLE_LENGTH must be at least 4")
	}
	if c.Enrich.MaxCopyLength <= 0 {
		add("ENRICH_MAX_COPY_LENGTH must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		add("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	return result.ErrorOrNil()
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Upload: {MaxFileSize: %d, MaxConcurrent: %d}, ",
		c.Upload.MaxFileSize, c.Upload.MaxConcurrent))
	b.WriteString(fmt.Sprintf("Feed: {Delimiter: %q, Encoding: %q, Currency: %q}, ",
		c.Feed.Delimiter.String(), c.Feed.Encoding, c.Feed.Currency))
	b.WriteString(fmt.Sprintf("Store: {SaveRejected: %v, WriteAttempts: %d}, ",
		c.Store.SaveRejected, c.Store.WriteAttempts))
	b.WriteString(fmt.Sprintf("Enrich: {Enabled: %v}, ", c.Enrich.Enabled))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
