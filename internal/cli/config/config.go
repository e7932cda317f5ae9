package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conduit-lang/apiextractor/internal/logging"
	"github.com/conduit-lang/apiextractor/internal/resolver"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// FileName is the configuration file looked up in the working directory and
// its parents, without extension.
const FileName = "apiextractor"

// EnvPrefix prefixes environment overrides, e.g. APIEXTRACTOR_API_VERSION.
const EnvPrefix = "APIEXTRACTOR"

// Config represents the apiextractor configuration
type Config struct {
	Typesystem      string         `mapstructure:"typesystem"`
	Declarations    string         `mapstructure:"declarations"`
	APIVersion      string         `mapstructure:"api_version"`
	DropTypeEntries []string       `mapstructure:"drop_type_entries"`
	TypesystemPaths []string       `mapstructure:"typesystem_paths"`
	Output          OutputConfig   `mapstructure:"output"`
	Log             LogConfig      `mapstructure:"log"`
	Resolver        ResolverConfig `mapstructure:"resolver"`
	Server          ServerConfig   `mapstructure:"server"`
	Publish         PublishConfig  `mapstructure:"publish"`
	History         HistoryConfig  `mapstructure:"history"`

	// Dir is the directory the configuration file was found in, or the
	// working directory when there is none. Relative paths are resolved
	// against it.
	Dir string `mapstructure:"-"`
}

// OutputConfig represents the metamodel dump settings
type OutputConfig struct {
	Path     string `mapstructure:"path"`
	Compress bool   `mapstructure:"compress"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ResolverConfig represents type resolver tuning
type ResolverConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// ServerConfig represents the inspection server settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// PublishConfig represents the Redis metamodel publisher settings
type PublishConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// HistoryConfig represents the build history store
type HistoryConfig struct {
	// DSN is a SQLite path, sqlite:// URL or postgres:// URL.
	DSN string `mapstructure:"dsn"`
}

// Load loads apiextractor.yaml (or .yml/.json) from the working directory or
// the nearest parent that has one. A missing file means defaults.
func Load() (*Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	if root, err := GetProjectRoot(); err == nil {
		dir = root
	}
	return LoadFrom(dir)
}

// LoadFrom loads the configuration file found in dir.
func LoadFrom(dir string) (*Config, error) {
	v := newViper()
	v.AddConfigPath(dir)
	return read(v, dir)
}

// LoadFile loads an explicit configuration file.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	v := newViper()
	v.SetConfigFile(path)
	return read(v, filepath.Dir(path))
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("api_version", "")
	v.SetDefault("drop_type_entries", []string{})
	v.SetDefault("typesystem_paths", []string{})
	v.SetDefault("output.path", "")
	v.SetDefault("output.compress", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("resolver.cache_size", resolver.DefaultCacheSize)
	v.SetDefault("server.addr", "localhost:7070")
	v.SetDefault("publish.redis_url", "")
	v.SetDefault("publish.prefix", "apiextractor:")
	v.SetDefault("publish.ttl", 7*24*time.Hour)
	v.SetDefault("history.dsn", "")

	v.SetConfigName(FileName)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	_ = v.BindEnv("typesystem")
	_ = v.BindEnv("declarations")
	return v
}

func read(v *viper.Viper, dir string) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// A comma separated env value arrives as a single element.
	config.DropTypeEntries = splitList(config.DropTypeEntries)
	config.TypesystemPaths = splitList(config.TypesystemPaths)
	config.Dir = dir

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetProjectRoot walks up from the working directory looking for a
// configuration file.
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, ext := range []string{".yaml", ".yml", ".json"} {
			if _, err := os.Stat(filepath.Join(dir, FileName+ext)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s.yaml found in %s or its parents", FileName, dir)
		}
		dir = parent
	}
}

// Resolve returns path relative to the configuration directory. Absolute
// and empty paths are returned unchanged.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// SearchPaths returns the include search paths, resolved.
func (c *Config) SearchPaths() []string {
	out := make([]string, 0, len(c.TypesystemPaths))
	for _, p := range c.TypesystemPaths {
		out = append(out, c.Resolve(p))
	}
	return out
}

// Version parses the configured API version. The zero version means none.
func (c *Config) Version() (typesystem.Version, error) {
	if c.APIVersion == "" {
		return typesystem.Version{}, nil
	}
	return typesystem.ParseVersion(c.APIVersion)
}

// LoggingOptions converts the log section.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Development: c.Log.Development}
}

// Configure applies the API version and drop list to a registry before
// any ruleset is loaded.
func (c *Config) Configure(registry *typesystem.Registry) error {
	version, err := c.Version()
	if err != nil {
		return err
	}
	if !version.IsZero() {
		if err := registry.SetAPIVersion(version); err != nil {
			return err
		}
	}
	if len(c.DropTypeEntries) > 0 {
		if err := registry.SetDropTypeEntries(c.DropTypeEntries); err != nil {
			return err
		}
	}
	return nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.APIVersion != "" {
		if _, err := typesystem.ParseVersion(cfg.APIVersion); err != nil {
			return fmt.Errorf("api_version is not a valid version, got: %s", cfg.APIVersion)
		}
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.Resolver.CacheSize <= 0 {
		return fmt.Errorf("resolver.cache_size must be positive, got: %d", cfg.Resolver.CacheSize)
	}
	if cfg.Publish.TTL < 0 {
		return fmt.Errorf("publish.ttl must not be negative, got: %s", cfg.Publish.TTL)
	}
	return nil
}
