// Package config loads gearlayout settings from defaults, a config file and
// GEARLAYOUT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/matzehuels/gearlayout/pkg/core/solver"
)

// AppName names the config, cache and data directories.
const AppName = "gearlayout"

// EnvPrefix prefixes environment overrides, e.g. GEARLAYOUT_API_LISTEN_ADDR.
const EnvPrefix = "GEARLAYOUT"

// Backend names.
var (
	CacheBackends   = []string{"none", "file", "memory", "redis"}
	StorageBackends = []string{"none", "memory", "sqlite", "mongo"}
	LogLevels       = []string{"debug", "info", "warn", "error"}
)

// Config holds all configuration for gearlayout.
type Config struct {
	Solver  SolverConfig  `mapstructure:"solver"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Storage StorageConfig `mapstructure:"storage"`
	API     APIConfig     `mapstructure:"api"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SolverConfig holds default relaxation parameters and store limits.
type SolverConfig struct {
	MaxIterations  int     `mapstructure:"max_iterations"`
	Tolerance      float64 `mapstructure:"tolerance"`
	StepSize       float64 `mapstructure:"step_size"`
	MinDistance    float64 `mapstructure:"min_distance"`
	Strict         bool    `mapstructure:"strict"`
	MaxEntities    int     `mapstructure:"max_entities"`
	MaxConstraints int     `mapstructure:"max_constraints"`
}

// CacheConfig selects the solution and artifact cache.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	Dir           string        `mapstructure:"dir"`
	MemorySize    int           `mapstructure:"memory_size"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// StorageConfig selects where saved layouts live.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	AuthToken      string        `mapstructure:"auth_token"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst      int           `mapstructure:"rate_burst"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// String returns a safe representation of APIConfig with the token masked.
func (c APIConfig) String() string {
	return fmt.Sprintf("APIConfig{ListenAddr:%s, AuthToken:%s, RateLimit:%g, RateBurst:%d}",
		c.ListenAddr, maskToken(c.AuthToken), c.RateLimit, c.RateBurst)
}

// maskToken shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskToken(token string) string {
	const visible = 4
	if token == "" {
		return ""
	}
	if len(token) <= visible*2 {
		return "***"
	}
	return token[:visible] + "****" + token[len(token)-visible:]
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration. An explicit file must exist; otherwise
// config.{yaml,toml,json} is looked up in the user config dir and the
// working directory, and its absence is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK - use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration Load produces with no file and no
// environment overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solver.max_iterations", solver.DefaultMaxIterations)
	v.SetDefault("solver.tolerance", solver.DefaultTolerance)
	v.SetDefault("solver.step_size", solver.DefaultStepSize)
	v.SetDefault("solver.min_distance", solver.DefaultMinDistance)
	v.SetDefault("solver.strict", false)
	v.SetDefault("solver.max_entities", 0)
	v.SetDefault("solver.max_constraints", 0)

	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.dir", CacheDir())
	v.SetDefault("cache.memory_size", 1024)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "")
	v.SetDefault("cache.ttl", 7*24*time.Hour)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.sqlite_path", filepath.Join(DataDir(), "layouts.db"))
	v.SetDefault("storage.mongo_uri", "")
	v.SetDefault("storage.mongo_database", AppName)

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")
	v.SetDefault("api.rate_limit", 10.0)
	v.SetDefault("api.rate_burst", 20)
	v.SetDefault("api.request_timeout", 30*time.Second)
	v.SetDefault("api.max_body_bytes", 1<<20)

	v.SetDefault("logging.level", "info")
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	s := c.Solver
	switch {
	case s.MaxIterations <= 0:
		return fmt.Errorf("solver.max_iterations must be greater than 0")
	case s.Tolerance <= 0:
		return fmt.Errorf("solver.tolerance must be greater than 0")
	case s.StepSize <= 0 || s.StepSize > 1:
		return fmt.Errorf("solver.step_size must be in (0, 1]")
	case s.MinDistance < 0:
		return fmt.Errorf("solver.min_distance must be >= 0")
	case s.MaxEntities < 0 || s.MaxConstraints < 0:
		return fmt.Errorf("solver.max_entities and solver.max_constraints must be >= 0")
	}

	if !slices.Contains(CacheBackends, c.Cache.Backend) {
		return fmt.Errorf("cache.backend must be one of %s", strings.Join(CacheBackends, ", "))
	}
	if c.Cache.Backend == "file" && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must not be empty for the file backend")
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr must not be empty for the redis backend")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be >= 0")
	}

	if !slices.Contains(StorageBackends, c.Storage.Backend) {
		return fmt.Errorf("storage.backend must be one of %s", strings.Join(StorageBackends, ", "))
	}
	if c.Storage.Backend == "sqlite" && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path must not be empty for the sqlite backend")
	}
	if c.Storage.Backend == "mongo" && c.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri must not be empty for the mongo backend")
	}

	if c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr must not be empty")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must be >= 0")
	}
	if c.API.RateLimit > 0 && c.API.RateBurst <= 0 {
		return fmt.Errorf("api.rate_burst must be greater than 0 when api.rate_limit is set")
	}
	if c.API.MaxBodyBytes <= 0 {
		return fmt.Errorf("api.max_body_bytes must be greater than 0")
	}

	if !slices.Contains(LogLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of %s", strings.Join(LogLevels, ", "))
	}
	return nil
}

// ConfigDir returns $XDG_CONFIG_HOME/gearlayout or ~/.config/gearlayout.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// CacheDir returns $XDG_CACHE_HOME/gearlayout or ~/.cache/gearlayout.
func CacheDir() string {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

// DataDir returns $XDG_DATA_HOME/gearlayout or ~/.local/share/gearlayout.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+AppName)
	}
	return filepath.Join(home, fallback, AppName)
}
