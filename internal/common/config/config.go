package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Prefetch PrefetchConfig `mapstructure:"prefetch"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BackendConfig points at the property-management REST API.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// CacheConfig selects the detail-store backend. The memory store is the
// default; redis is for deployments where several replicas share one session.
type CacheConfig struct {
	Backend string      `mapstructure:"backend"` // "memory" or "redis"
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type PrefetchConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
	Timeout       int `mapstructure:"timeout"` // per-fetch, milliseconds
}

// AlertsConfig controls the calendar used for due-date comparisons.
type AlertsConfig struct {
	TimeZone           string `mapstructure:"time_zone"`
	ExpiringWindowDays int    `mapstructure:"expiring_window_days"`
}

type GeocoderConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	CountrySuffix  string  `mapstructure:"country_suffix"`
	Timeout        int     `mapstructure:"timeout"` // milliseconds
	DefaultLat     float64 `mapstructure:"default_lat"`
	DefaultLon     float64 `mapstructure:"default_lon"`
	DefaultComuna  string  `mapstructure:"default_comuna"`
	DefaultRegion  string  `mapstructure:"default_region"`
}

type ServerConfig struct {
	Address        string `mapstructure:"address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func validateConfig(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Cache.Redis.Address == "" {
			return fmt.Errorf("cache.redis.address is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be \"memory\" or \"redis\", got %q", cfg.Cache.Backend)
	}
	if cfg.Prefetch.MaxConcurrent < 1 {
		return fmt.Errorf("prefetch.max_concurrent must be positive")
	}
	return nil
}
