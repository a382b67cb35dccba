// Package config provides configuration management for the todo API server.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultServerPort         = 8080
	DefaultLogLevel           = "info"
	DefaultShutdownTimeout    = 30 * time.Second
	DefaultMetricsEnabled     = true
	DefaultStoreBackend       = BackendMemory
	DefaultMongoDatabase      = "todo"
	DefaultMongoCollection    = "todos"
	DefaultMongoTimeout       = 5 * time.Second
	DefaultCacheSize          = 0
	DefaultRateLimitPerMin    = 0
	DefaultCORSAllowedOrigins = "*"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// EnvPrefix is prepended to every configuration key when read from the
// environment, e.g. server_port is APP_SERVER_PORT.
const EnvPrefix = "APP"

// Configuration keys.
const (
	KeyConfigFile         = "config_file"
	KeyServerPort         = "server_port"
	KeyLogLevel           = "log_level"
	KeyShutdownTimeout    = "shutdown_timeout"
	KeyMetricsEnabled     = "metrics_enabled"
	KeyStoreBackend       = "store_backend"
	KeyMongoURI           = "mongo_uri"
	KeyMongoDatabase      = "mongo_database"
	KeyMongoCollection    = "mongo_collection"
	KeyMongoTimeout       = "mongo_timeout"
	KeyCacheSize          = "cache_size"
	KeyRateLimitPerMin    = "rate_limit_per_min"
	KeyCORSAllowedOrigins = "cors_allowed_origins"
	KeyTrustedProxies     = "trusted_proxies"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int
	LogLevel        string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool

	// Storage settings. MongoURI is required when StoreBackend is mongo.
	StoreBackend    string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	MongoTimeout    time.Duration
	CacheSize       int // 0 disables the read-through cache.

	// HTTP edge settings.
	RateLimitPerMin    int // 0 disables rate limiting.
	CORSAllowedOrigins []string
	// TrustedProxies lists peer IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers identify the client. Empty trusts no one.
	TrustedProxies []string
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidStoreBackend    = errors.New("store backend must be one of: memory, mongo")
	ErrMongoURIRequired       = errors.New("mongo URI must be set when store backend is mongo")
	ErrInvalidMongoTimeout    = errors.New("mongo timeout must be positive")
	ErrInvalidMongoNames      = errors.New("mongo database and collection must not be empty")
	ErrInvalidCacheSize       = errors.New("cache size must not be negative")
	ErrInvalidRateLimit       = errors.New("rate limit must not be negative")
	ErrInvalidTrustedProxy    = errors.New("trusted proxy must be an IP address or CIDR")
)

// Load reads configuration from defaults, an optional YAML file and
// APP_-prefixed environment variables, in increasing priority.
//
// The file is config.yaml in ./config or the working directory, or the path
// given by APP_CONFIG_FILE. A missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerPort, DefaultServerPort)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout)
	v.SetDefault(KeyMetricsEnabled, DefaultMetricsEnabled)
	v.SetDefault(KeyStoreBackend, DefaultStoreBackend)
	v.SetDefault(KeyMongoURI, "")
	v.SetDefault(KeyMongoDatabase, DefaultMongoDatabase)
	v.SetDefault(KeyMongoCollection, DefaultMongoCollection)
	v.SetDefault(KeyMongoTimeout, DefaultMongoTimeout)
	v.SetDefault(KeyCacheSize, DefaultCacheSize)
	v.SetDefault(KeyRateLimitPerMin, DefaultRateLimitPerMin)
	v.SetDefault(KeyCORSAllowedOrigins, DefaultCORSAllowedOrigins)
	v.SetDefault(KeyTrustedProxies, "")
}

func readConfigFile(v *viper.Viper) error {
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		return v.ReadInConfig()
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// fromViper converts raw values, reporting the key that failed to parse.
func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel:        strings.ToLower(v.GetString(KeyLogLevel)),
		StoreBackend:    strings.ToLower(v.GetString(KeyStoreBackend)),
		MongoURI:        v.GetString(KeyMongoURI),
		MongoDatabase:   v.GetString(KeyMongoDatabase),
		MongoCollection: v.GetString(KeyMongoCollection),
	}

	var err error
	if cfg.ServerPort, err = cast.ToIntE(v.Get(KeyServerPort)); err != nil {
		return nil, keyError(KeyServerPort, err)
	}
	if cfg.ShutdownTimeout, err = cast.ToDurationE(v.Get(KeyShutdownTimeout)); err != nil {
		return nil, keyError(KeyShutdownTimeout, err)
	}
	if cfg.MetricsEnabled, err = cast.ToBoolE(v.Get(KeyMetricsEnabled)); err != nil {
		return nil, keyError(KeyMetricsEnabled, err)
	}
	if cfg.MongoTimeout, err = cast.ToDurationE(v.Get(KeyMongoTimeout)); err != nil {
		return nil, keyError(KeyMongoTimeout, err)
	}
	if cfg.CacheSize, err = cast.ToIntE(v.Get(KeyCacheSize)); err != nil {
		return nil, keyError(KeyCacheSize, err)
	}
	if cfg.RateLimitPerMin, err = cast.ToIntE(v.Get(KeyRateLimitPerMin)); err != nil {
		return nil, keyError(KeyRateLimitPerMin, err)
	}

	cfg.CORSAllowedOrigins = splitList(v.Get(KeyCORSAllowedOrigins))
	cfg.TrustedProxies = splitList(v.Get(KeyTrustedProxies))

	return cfg, nil
}

func keyError(key string, err error) error {
	return fmt.Errorf("parsing %s_%s: %w", EnvPrefix, strings.ToUpper(key), err)
}

// splitList accepts a comma separated string or a YAML sequence.
func splitList(raw any) []string {
	var parts []string
	if s, ok := raw.(string); ok {
		parts = strings.Split(s, ",")
	} else {
		parts = cast.ToStringSlice(raw)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateStore()
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if c.RateLimitPerMin < 0 {
		return ErrInvalidRateLimit
	}

	if _, err := ParseTrustedProxies(c.TrustedProxies); err != nil {
		return err
	}

	return nil
}

// validateStore validates storage configuration.
func (c *Config) validateStore() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return ErrMongoURIRequired
		}
		if c.MongoDatabase == "" || c.MongoCollection == "" {
			return ErrInvalidMongoNames
		}
		if c.MongoTimeout <= 0 {
			return ErrInvalidMongoTimeout
		}
	default:
		return ErrInvalidStoreBackend
	}

	if c.CacheSize < 0 {
		return ErrInvalidCacheSize
	}

	return nil
}

// ParseTrustedProxies converts IP addresses and CIDR ranges into prefixes.
// A bare address becomes a single-host prefix.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidTrustedProxy, entry)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTrustedProxy, entry)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
