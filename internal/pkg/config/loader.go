// Package config loads worker settings from the environment with fail-open
// semantics: an invalid value is replaced by its default and reported, never
// returned as an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult is the outcome of loading one environment variable.
type ConfigLoadResult struct {
	// Value holds a string, int, bool or time.Duration depending on the loader.
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// loadEnv reads envKey, parses and validates it, and falls back to def on
// either failure. An unset or empty variable yields def without a warning.
func loadEnv[T any](envKey string, def T, parse func(string) (T, error), validate func(T) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: def}
	}

	v, err := parse(raw)
	if err == nil && validate != nil {
		err = validate(v)
	}
	if err != nil {
		return ConfigLoadResult{
			Value:           def,
			Warnings:        []string{fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", envKey, raw, err, def)},
			FallbackApplied: true,
		}
	}
	return ConfigLoadResult{Value: v}
}

func parseString(s string) (string, error) { return s, nil }

func parseInt(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer format")
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid boolean format, expected 'true' or 'false'")
	}
	return v, nil
}

// LoadEnvWithFallback loads a string. validator may be nil.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, parseString, validator)
}

// LoadEnvInt loads a base-10 integer. validator may be nil.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, parseInt, validator)
}

// LoadEnvDuration loads a time.ParseDuration string such as "10s". validator may be nil.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, time.ParseDuration, validator)
}

// LoadEnvBool loads a strconv.ParseBool value.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, parseBool, nil)
}
