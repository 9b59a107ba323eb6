package defunc

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"
)

// Depth modes.
const (
	// DepthModeShared keeps a single depth counter for every intercepted call in the engine.
	DepthModeShared = "shared"

	// DepthModeContext derives depth from the context.Context passed to each call.
	DepthModeContext = "context"
)

const (
	// DefaultStaleThreshold is the age after which a released instance is reported.
	DefaultStaleThreshold = 120 * time.Second

	// DefaultIndentStep is the number of spaces added per nesting level.
	DefaultIndentStep = 2

	// DefaultReservedPattern matches operation names owned by the instrumentation itself.
	DefaultReservedPattern = `(?i)bind`
)

// Config holds the engine configuration.
type Config struct {
	// TraceAll traces every defined operation of a type whose watch set for the
	// scope is empty (default: false).
	TraceAll bool

	// StaleThreshold is the strict lower bound on instance age for a staleness
	// line on release. Zero means DefaultStaleThreshold.
	StaleThreshold time.Duration

	// IndentStep is the depth increment per nested traced call. Zero means
	// DefaultIndentStep.
	IndentStep int

	// QualifiedNames renders operations as Type.op (static) or Type#op (instance).
	QualifiedNames bool

	// DepthMode is DepthModeShared (default) or DepthModeContext.
	DepthMode string

	// ReservedPattern is a regular expression; matching operation names are never
	// intercepted. Empty means DefaultReservedPattern.
	ReservedPattern string
}

// DefaultConfig returns a Config with defaults overridden by environment variables.
func DefaultConfig() Config {
	return Config{
		TraceAll:        getEnvBoolOrDefault("DEFUNC_TRACE_ALL", false),
		StaleThreshold:  getEnvDurationOrDefault("DEFUNC_STALE_THRESHOLD", DefaultStaleThreshold),
		IndentStep:      getEnvIntOrDefault("DEFUNC_INDENT_STEP", DefaultIndentStep),
		QualifiedNames:  getEnvBoolOrDefault("DEFUNC_QUALIFIED_NAMES", false),
		DepthMode:       getEnvOrDefault("DEFUNC_DEPTH_MODE", DepthModeShared),
		ReservedPattern: DefaultReservedPattern,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.StaleThreshold < 0 {
		return fmt.Errorf("stale threshold must not be negative, got %s", c.StaleThreshold)
	}
	if c.IndentStep < 0 {
		return fmt.Errorf("indent step must not be negative, got %d", c.IndentStep)
	}

	switch c.DepthMode {
	case "", DepthModeShared, DepthModeContext:
	default:
		return fmt.Errorf("invalid depth mode %q, must be one of: shared, context", c.DepthMode)
	}

	if c.ReservedPattern != "" {
		if _, err := regexp.Compile(c.ReservedPattern); err != nil {
			return fmt.Errorf("invalid reserved pattern: %w", err)
		}
	}

	return nil
}

// withDefaults fills zero values with their defaults.
func (c Config) withDefaults() Config {
	if c.StaleThreshold == 0 {
		c.StaleThreshold = DefaultStaleThreshold
	}
	if c.IndentStep == 0 {
		c.IndentStep = DefaultIndentStep
	}
	if c.DepthMode == "" {
		c.DepthMode = DepthModeShared
	}
	if c.ReservedPattern == "" {
		c.ReservedPattern = DefaultReservedPattern
	}
	return c
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the boolean value of an environment variable or a default value.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// getEnvIntOrDefault returns the int value of an environment variable or a default value.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// getEnvDurationOrDefault returns the duration value of an environment variable or a default value.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}
