package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware.  When
// Enabled is false or no Redis client is available, caching is disabled.
// Methods lists the HTTP methods whose responses are cached (GET by default);
// any successful request with another method bumps the cache generation so
// listings never outlive a mutation.  ReadOnlyRoutes lists "METHOD /path"
// pairs that change nothing and therefore leave the cache alone.
type CacheConfig struct {
	Enabled        bool
	Methods        map[string]bool
	ReadOnlyRoutes map[string]bool
	TTL            time.Duration
	Prefix         string
	MaxBodyBytes   int
}

// LoadCacheConfig reads CACHE_* environment variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:        envBool("CACHE_ENABLED", true),
		Methods:        parseMethods(envStr("CACHE_METHODS", "GET")),
		ReadOnlyRoutes: parseRoutes(envStr("CACHE_READONLY_ROUTES", "POST /users/authenticate")),
		TTL:            envDur("CACHE_TTL", 30*time.Second),
		Prefix:         envStr("CACHE_PREFIX", "catalog:cache"),
		MaxBodyBytes:   envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

// parseRoutes reads a comma separated list of "METHOD /path" pairs.
func parseRoutes(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		method, path, ok := strings.Cut(strings.TrimSpace(p), " ")
		if !ok {
			continue
		}
		m[strings.ToUpper(method)+" "+strings.TrimSpace(path)] = true
	}
	return m
}
