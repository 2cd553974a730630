package logger

import (
	"io"
	"os"
	"strconv"
)

// EnvConfig is the logger configuration read from LOG_* variables.
// Outside APP_ENV=local, entries are also written to a rotated LOG_FILE.
type EnvConfig struct {
	Level       string
	Format      string
	ServiceName string
	Environment string
	Output      io.Writer // overrides every other destination

	LogFile     string
	LogFileOnly bool

	// rotation, sizes in MB and ages in days
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// LoadFromEnv reads EnvConfig, falling back to defaults for unset or
// unparsable values.
func LoadFromEnv() *EnvConfig {
	return &EnvConfig{
		Level:       envOr("LOG_LEVEL", "info", parseString),
		Format:      envOr("LOG_FORMAT", "json", parseString),
		ServiceName: envOr("SERVICE_NAME", "wanderlust", parseString),
		Environment: envOr("APP_ENV", "local", parseString),
		LogFile:     envOr("LOG_FILE", "/var/log/wanderlust/app.log", parseString),
		LogFileOnly: envOr("LOG_FILE_ONLY", false, strconv.ParseBool),
		MaxSize:     envOr("LOG_MAX_SIZE", 100, strconv.Atoi),
		MaxBackups:  envOr("LOG_MAX_BACKUPS", 7, strconv.Atoi),
		MaxAge:      envOr("LOG_MAX_AGE", 30, strconv.Atoi),
		Compress:    envOr("LOG_COMPRESS", true, strconv.ParseBool),
	}
}

func parseString(v string) (string, error) { return v, nil }

func envOr[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}
