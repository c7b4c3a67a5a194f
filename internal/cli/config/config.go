package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Kirdow/Coral/pkg/interop"
)

// EnvPrefix prefixes environment overrides, e.g. CORAL_HOST_ADDRESS
const EnvPrefix = "CORAL"

// Transport names
const (
	TransportTCP   = "tcp"
	TransportStdio = "stdio"
)

// Config represents the Coral configuration
type Config struct {
	Host    HostConfig    `mapstructure:"host"`
	Interop InteropConfig `mapstructure:"interop"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Log     LogConfig     `mapstructure:"log"`
	Catalog CatalogConfig `mapstructure:"catalog"`
}

// HostConfig describes how to reach the host
type HostConfig struct {
	Transport    string        `mapstructure:"transport"`
	Address      string        `mapstructure:"address"`
	Command      []string      `mapstructure:"command"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
	TextEncoding string        `mapstructure:"text_encoding"`
}

// InteropConfig bounds text crossing the boundary
type InteropConfig struct {
	MaxTextLength int `mapstructure:"max_text_length"`
}

// CacheConfig represents the shared metadata cache configuration
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Prefix  string        `mapstructure:"prefix"`
	Session string        `mapstructure:"session"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig represents the Redis connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// CatalogConfig points the development host at its type catalog
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// Encoding returns the configured host text encoding
func (h HostConfig) Encoding() interop.Encoding {
	enc, err := interop.ParseEncoding(h.TextEncoding)
	if err != nil {
		return interop.UTF8
	}
	return enc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host.transport", TransportTCP)
	v.SetDefault("host.address", "127.0.0.1:7410")
	v.SetDefault("host.command", []string{})
	v.SetDefault("host.call_timeout", 10*time.Second)
	v.SetDefault("host.text_encoding", "utf-8")
	v.SetDefault("interop.max_text_length", interop.DefaultMaxLength)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.prefix", "coral:")
	v.SetDefault("cache.session", "")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("catalog.path", "")
}

// Load loads the configuration from coral.yml or coral.yaml found in the
// current directory or one of its parents
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads the configuration from path. An empty path searches for
// coral.yml upward from the current directory.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Set config name and paths
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("coral")
		if root, err := GetProjectRoot(); err == nil {
			v.AddConfigPath(root)
		}
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetProjectRoot tries to find the project root by looking for coral.yml
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		// Check for coral.yml or coral.yaml
		if _, err := os.Stat(filepath.Join(dir, "coral.yml")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "coral.yaml")); err == nil {
			return dir, nil
		}

		// Move up one directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return "", fmt.Errorf("no coral.yml found")
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.Host.Transport {
	case TransportTCP:
		if cfg.Host.Address == "" {
			return fmt.Errorf("host.address is required for the tcp transport")
		}
	case TransportStdio:
	default:
		return fmt.Errorf("host.transport must be %q or %q, got: %s", TransportTCP, TransportStdio, cfg.Host.Transport)
	}

	if _, err := interop.ParseEncoding(cfg.Host.TextEncoding); err != nil {
		return fmt.Errorf("host.text_encoding: %w", err)
	}
	if cfg.Host.CallTimeout < 0 {
		return fmt.Errorf("host.call_timeout must not be negative, got: %s", cfg.Host.CallTimeout)
	}
	if cfg.Interop.MaxTextLength <= 0 {
		return fmt.Errorf("interop.max_text_length must be positive, got: %d", cfg.Interop.MaxTextLength)
	}
	if cfg.Cache.Enabled && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required when the cache is enabled")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got: %s", cfg.Log.Level)
	}
	return nil
}
