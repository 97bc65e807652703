package config

import (
	"os"
	"strconv"
	"time"
)

// Runtime holds process-level settings that are not engine thresholds.
type Runtime struct {
	// RedisAddr enables the shared risk-profile cache when non-empty.
	RedisAddr string
	// CacheTTL bounds how long a cached risk profile is served.
	CacheTTL time.Duration
	// HTTPAddr is the listen address for `serve http`.
	HTTPAddr string
	// LogMode is "dev" or "prod".
	LogMode string
	// RecordReports appends every computed risk profile to the report log.
	RecordReports bool
}

// RuntimeFromEnv builds Runtime settings from the environment, falling back
// to defaults for unset values.
func RuntimeFromEnv() Runtime {
	rt := Runtime{
		RedisAddr: os.Getenv("NUMBERSENSE_REDIS_ADDR"),
		CacheTTL:  10 * time.Minute,
		HTTPAddr:  getEnv("NUMBERSENSE_HTTP_ADDR", ":8080"),
		LogMode:   getEnv("NUMBERSENSE_LOG_MODE", "prod"),

		RecordReports: true,
	}
	if v := os.Getenv("NUMBERSENSE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			rt.CacheTTL = d
		}
	}
	if v, err := strconv.ParseBool(os.Getenv("NUMBERSENSE_RECORD_REPORTS")); err == nil {
		rt.RecordReports = v
	}
	return rt
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
