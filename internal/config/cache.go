package config

import "time"

// CacheConfig defines settings for the seat listing cache.  When Enabled is
// false or no Redis client is configured, listings are always read from the
// store.  TTL bounds how long a listing may be served if an invalidation is
// lost; Prefix namespaces the keys.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads CACHE_* environment variables.  Defaults are used
// when variables are not set or cannot be parsed.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("CACHE_TTL", 30*time.Second),
		Prefix:  envStr("CACHE_PREFIX", "cache"),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return cfg
}
