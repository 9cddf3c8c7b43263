package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"neon2retro/internal/logger"
)

type Config struct {
	// Source database
	NeonConnectionString string
	NeonTable            string

	// Destination API
	RetroAPIURL    string
	AuthAPIURL     string
	RetroUsername  string
	RetroPassword  string
	RequestTimeout time.Duration

	// Run behaviour
	SendDelay       time.Duration
	DefaultLimit    int
	ReferencePrefix string
	TotalAmountMode string

	// Destination lookup tables
	ReferencesFile string
	References     References

	// Google Sheets run report
	GoogleSheetURL  string
	ReportSheetName string

	// REST wrapper
	ServerAddr         string
	CORSAllowedOrigins []string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Part names a group of settings a command depends on.
type Part int

const (
	PartSource Part = iota
	PartDestination
	PartReferences
	PartReport
)

func Load() (*Config, error) {
	config := &Config{
		NeonConnectionString: getEnv("NEON_CONNECTION_STRING", ""),
		NeonTable:            getEnv("NEON_TABLE", "invoices"),
		RetroAPIURL:          strings.TrimRight(getEnv("RETRO_API_URL", ""), "/"),
		AuthAPIURL:           strings.TrimRight(getEnv("AUTH_API_URL", ""), "/"),
		RetroUsername:        getEnv("RETRO_USERNAME", ""),
		RetroPassword:        getEnv("RETRO_PASSWORD", ""),
		ReferencePrefix:      lookupEnv("REFERENCE_PREFIX", "NEON"),
		TotalAmountMode:      getEnv("TOTAL_AMOUNT_MODE", "recompute"),
		ReferencesFile:       getEnv("RETRO_REFERENCES_FILE", ""),
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		ReportSheetName:      getEnv("REPORT_SHEET_NAME", "Migrations"),
		ServerAddr:           getEnv("SERVER_ADDR", ":8000"),
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stderr"),
	}
	if config.AuthAPIURL == "" {
		config.AuthAPIURL = config.RetroAPIURL
	}

	var err error
	if config.SendDelay, err = getDuration("SEND_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if config.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if config.DefaultLimit, err = getInt("DEFAULT_LIMIT", 10); err != nil {
		return nil, err
	}

	if config.References, err = LoadReferences(config.ReferencesFile); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validate checks values that are wrong whatever the command.
func (c *Config) validate() error {
	if c.SendDelay < 0 {
		return fmt.Errorf("SEND_DELAY must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("DEFAULT_LIMIT must be positive")
	}
	switch strings.ToLower(c.TotalAmountMode) {
	case "recompute", "source":
	default:
		return fmt.Errorf("TOTAL_AMOUNT_MODE must be recompute or source, got %q", c.TotalAmountMode)
	}
	return nil
}

// Require checks the settings the given parts depend on. Secrets and
// endpoints have no built-in fallback.
func (c *Config) Require(parts ...Part) error {
	for _, p := range parts {
		switch p {
		case PartSource:
			if c.NeonConnectionString == "" {
				return fmt.Errorf("NEON_CONNECTION_STRING is required")
			}
		case PartDestination:
			if c.RetroAPIURL == "" {
				return fmt.Errorf("RETRO_API_URL is required")
			}
			if c.RetroUsername == "" {
				return fmt.Errorf("RETRO_USERNAME is required")
			}
			if c.RetroPassword == "" {
				return fmt.Errorf("RETRO_PASSWORD is required")
			}
		case PartReferences:
			if err := c.References.validate(); err != nil {
				return err
			}
		case PartReport:
			if c.GoogleSheetURL == "" {
				return fmt.Errorf("GOOGLE_SHEET_URL is required for run reports")
			}
		}
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv is getEnv but honours an explicitly empty value.
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	// Bare numbers are milliseconds.
	ms, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
