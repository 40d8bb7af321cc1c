// Package config loads the handful of environment-driven settings this
// module needs: the remote endpoint and key (§6), and the tunables that
// appear as magic numbers throughout the spec (dwell window, improvement
// threshold, timeouts, quota size, cache capacity).
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the resolved runtime configuration. Every field carries a
// usable default; RemoteConfigured reports whether the remote client may
// be used at all.
type Config struct {
	APIBaseURL string
	APIKey     string

	RequestTimeout  time.Duration
	ResourceTimeout time.Duration
	AuthBackoff     time.Duration

	DwellWindow            time.Duration
	ImprovementThresh      float64
	MaxPerDay              int
	CacheCapacity          int
	ConversationCap        int
	WordBoundaryDebounceMS int
	ShortTextDebounceMS    int
	LongTextDebounceMS     int
}

// Default returns the spec's hard-coded defaults (§4.5, §4.6, §4.7, §3).
func Default() Config {
	return Config{
		RequestTimeout:         5 * time.Second,
		ResourceTimeout:        15 * time.Second,
		AuthBackoff:            60 * time.Second,
		DwellWindow:            3 * time.Second,
		ImprovementThresh:      0.3,
		MaxPerDay:              10,
		CacheCapacity:          64,
		ConversationCap:        20,
		WordBoundaryDebounceMS: 0,
		ShortTextDebounceMS:    100,
		LongTextDebounceMS:     50,
	}
}

// Load reads Config from the process environment, optionally overlaid by a
// bundled .env file. Missing UNSAID_API_BASE_URL/UNSAID_API_KEY is not an
// error — it simply yields a Config whose RemoteConfigured() is false, per
// the ConfigMissing error kind in §7.
func Load() Config {
	// Overload lets a bundled .env win over an ambient OS env var, matching
	// how keyboard extensions ship their own bundled configuration rather
	// than relying on a shell environment.
	_ = godotenv.Overload()

	cfg := Default()
	cfg.APIBaseURL = strings.TrimSpace(envOr("UNSAID_API_BASE_URL", ""))
	cfg.APIKey = strings.TrimSpace(envOr("UNSAID_API_KEY", ""))

	if v := envFloat("UNSAID_IMPROVEMENT_THRESHOLD", -1); v >= 0 {
		cfg.ImprovementThresh = v
	}
	if v := envInt("UNSAID_SECURE_FIX_MAX_PER_DAY", -1); v >= 0 {
		cfg.MaxPerDay = v
	}
	if v := envInt("UNSAID_CACHE_CAPACITY", -1); v >= 0 {
		cfg.CacheCapacity = v
	}
	return cfg
}

// RemoteConfigured reports whether both the base URL and key are set, i.e.
// whether the remote client may be used (§7 ConfigMissing).
func (c Config) RemoteConfigured() bool {
	return c.APIBaseURL != "" && c.APIKey != ""
}

func envOr(key, def string) string {
	if v, ok := lookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := lookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v, ok := lookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}
