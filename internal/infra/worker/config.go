package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/EngSayh/Fixzit-sub003/internal/pkg/config"
)

// NotifierConfig holds the operational settings of the notification worker.
//
// Values come from environment variables via LoadConfigFromEnv. An invalid
// value never stops the worker: the default is used instead, a warning is
// logged and the fallback is counted in NotifierMetrics.
type NotifierConfig struct {
	// MaxRetries is the number of send attempts per channel before the
	// channel is dead-lettered. Range 1-10.
	MaxRetries int

	// ProviderTimeout bounds a single provider call. Range 1s-2m.
	ProviderTimeout time.Duration

	// RetryInitialDelay is the first backoff delay between attempts. Range 10ms-30s.
	RetryInitialDelay time.Duration

	// ReprocessSchedule is the cron expression for dead-letter reprocessing.
	ReprocessSchedule string

	// Timezone is the IANA zone the reprocess schedule is evaluated in.
	Timezone string

	// ReprocessBatch caps the entries handled per reprocess run. Range 1-1000.
	ReprocessBatch int

	// HealthPort serves /health, /health/ready and /health/channels. Range 1024-65535.
	HealthPort int

	// ShutdownTimeout bounds how long in-flight dispatches may drain. Range 1s-5m.
	ShutdownTimeout time.Duration

	// DryRun replaces every provider with a sender that only logs.
	DryRun bool
}

// DefaultConfig returns the worker defaults.
func DefaultConfig() NotifierConfig {
	return NotifierConfig{
		MaxRetries:        3,
		ProviderTimeout:   10 * time.Second,
		RetryInitialDelay: 500 * time.Millisecond,
		ReprocessSchedule: "*/15 * * * *",
		Timezone:          "UTC",
		ReprocessBatch:    100,
		HealthPort:        9091,
		ShutdownTimeout:   30 * time.Second,
	}
}

func validateMaxRetries(v int) error { return config.ValidateIntRange(v, 1, 10) }
func validateReprocessBatch(v int) error { return config.ValidateIntRange(v, 1, 1000) }
func validateHealthPort(v int) error { return config.ValidateIntRange(v, 1024, 65535) }
func validateProviderTimeout(d time.Duration) error {
	return config.ValidateDuration(d, time.Second, 2*time.Minute)
}
func validateRetryInitialDelay(d time.Duration) error {
	return config.ValidateDuration(d, 10*time.Millisecond, 30*time.Second)
}
func validateShutdownTimeout(d time.Duration) error {
	return config.ValidateDuration(d, time.Second, 5*time.Minute)
}

// Validate reports every invalid field at once.
func (c *NotifierConfig) Validate() error {
	var errs []error

	if err := validateMaxRetries(c.MaxRetries); err != nil {
		errs = append(errs, fmt.Errorf("max retries: %w", err))
	}
	if err := validateProviderTimeout(c.ProviderTimeout); err != nil {
		errs = append(errs, fmt.Errorf("provider timeout: %w", err))
	}
	if err := validateRetryInitialDelay(c.RetryInitialDelay); err != nil {
		errs = append(errs, fmt.Errorf("retry initial delay: %w", err))
	}
	if err := config.ValidateCronSchedule(c.ReprocessSchedule); err != nil {
		errs = append(errs, fmt.Errorf("reprocess schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := validateReprocessBatch(c.ReprocessBatch); err != nil {
		errs = append(errs, fmt.Errorf("reprocess batch: %w", err))
	}
	if err := validateHealthPort(c.HealthPort); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if err := validateShutdownTimeout(c.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("shutdown timeout: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// LoadConfigFromEnv reads the worker configuration from the environment.
//
// Environment variables:
//   - NOTIFY_MAX_RETRIES (default 3)
//   - NOTIFY_PROVIDER_TIMEOUT (default 10s)
//   - NOTIFY_RETRY_INITIAL_DELAY (default 500ms)
//   - DLQ_REPROCESS_SCHEDULE (default "*/15 * * * *")
//   - WORKER_TIMEZONE (default "UTC")
//   - DLQ_REPROCESS_BATCH (default 100)
//   - WORKER_HEALTH_PORT (default 9091)
//   - NOTIFY_SHUTDOWN_TIMEOUT (default 30s)
//   - NOTIFY_DRY_RUN (default false)
//
// The returned error is always nil; invalid values fall back to defaults.
func LoadConfigFromEnv(logger *slog.Logger, metrics *NotifierMetrics) (*NotifierConfig, error) {
	cfg := DefaultConfig()
	l := &envLoader{logger: logger, metrics: metrics}

	cfg.MaxRetries = l.loadInt("MaxRetries", "max_retries",
		config.LoadEnvInt("NOTIFY_MAX_RETRIES", cfg.MaxRetries, validateMaxRetries))
	cfg.ProviderTimeout = l.loadDuration("ProviderTimeout", "provider_timeout",
		config.LoadEnvDuration("NOTIFY_PROVIDER_TIMEOUT", cfg.ProviderTimeout, validateProviderTimeout))
	cfg.RetryInitialDelay = l.loadDuration("RetryInitialDelay", "retry_initial_delay",
		config.LoadEnvDuration("NOTIFY_RETRY_INITIAL_DELAY", cfg.RetryInitialDelay, validateRetryInitialDelay))
	cfg.ReprocessSchedule = l.loadString("ReprocessSchedule", "reprocess_schedule",
		config.LoadEnvWithFallback("DLQ_REPROCESS_SCHEDULE", cfg.ReprocessSchedule, config.ValidateCronSchedule))
	cfg.Timezone = l.loadString("Timezone", "timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone))
	cfg.ReprocessBatch = l.loadInt("ReprocessBatch", "reprocess_batch",
		config.LoadEnvInt("DLQ_REPROCESS_BATCH", cfg.ReprocessBatch, validateReprocessBatch))
	cfg.HealthPort = l.loadInt("HealthPort", "health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, validateHealthPort))
	cfg.ShutdownTimeout = l.loadDuration("ShutdownTimeout", "shutdown_timeout",
		config.LoadEnvDuration("NOTIFY_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout, validateShutdownTimeout))
	cfg.DryRun = l.loadBool("DryRun", "dry_run",
		config.LoadEnvBool("NOTIFY_DRY_RUN", cfg.DryRun))

	metrics.SetFallbackActive(l.fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}

// envLoader records fallbacks for each loaded field.
type envLoader struct {
	logger          *slog.Logger
	metrics         *NotifierMetrics
	fallbackApplied bool
}

func (l *envLoader) observe(field, metricField string, result config.ConfigLoadResult) {
	if !result.FallbackApplied {
		return
	}
	l.fallbackApplied = true
	l.metrics.RecordValidationError(metricField)
	l.metrics.RecordFallback(metricField)
	for _, warning := range result.Warnings {
		l.logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}
}

func (l *envLoader) loadString(field, metricField string, result config.ConfigLoadResult) string {
	l.observe(field, metricField, result)
	return result.Value.(string)
}

func (l *envLoader) loadInt(field, metricField string, result config.ConfigLoadResult) int {
	l.observe(field, metricField, result)
	return result.Value.(int)
}

func (l *envLoader) loadDuration(field, metricField string, result config.ConfigLoadResult) time.Duration {
	l.observe(field, metricField, result)
	return result.Value.(time.Duration)
}

func (l *envLoader) loadBool(field, metricField string, result config.ConfigLoadResult) bool {
	l.observe(field, metricField, result)
	return result.Value.(bool)
}
