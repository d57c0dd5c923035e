package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "VeilAuth"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour

	defaultPINMaxAttempts = 5
	defaultPINWindow      = 15 * time.Minute
	defaultPINLockout     = 30 * time.Minute

	defaultBiometricMaxAttempts = 3
	defaultBiometricWindow      = 5 * time.Minute
	defaultBiometricLockout     = 15 * time.Minute

	defaultSessionTimeout  = 30 * time.Minute
	defaultWarningWindow   = 5 * time.Minute
	defaultSweepInterval   = time.Minute
	defaultAnomalyInterval = 5 * time.Minute
	defaultAnomalyLookback = time.Hour
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	OperatorSecret string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	PINMaxAttempts int
	PINWindow      time.Duration
	PINLockout     time.Duration

	BiometricMaxAttempts int
	BiometricWindow      time.Duration
	BiometricLockout     time.Duration

	SessionTimeout  time.Duration
	WarningWindow   time.Duration
	SweepInterval   time.Duration
	AnomalyInterval time.Duration
	AnomalyLookback time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		OperatorSecret: os.Getenv("OPERATOR_SECRET"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,

		PINMaxAttempts:       defaultPINMaxAttempts,
		PINWindow:            defaultPINWindow,
		PINLockout:           defaultPINLockout,
		BiometricMaxAttempts: defaultBiometricMaxAttempts,
		BiometricWindow:      defaultBiometricWindow,
		BiometricLockout:     defaultBiometricLockout,

		SessionTimeout:  defaultSessionTimeout,
		WarningWindow:   defaultWarningWindow,
		SweepInterval:   defaultSweepInterval,
		AnomalyInterval: defaultAnomalyInterval,
		AnomalyLookback: defaultAnomalyLookback,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.PINMaxAttempts, err = intEnv("PIN_MAX_ATTEMPTS", cfg.PINMaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.PINWindow, err = durationEnv("PIN_WINDOW", cfg.PINWindow); err != nil {
		return Config{}, err
	}
	if cfg.PINLockout, err = durationEnv("PIN_LOCKOUT", cfg.PINLockout); err != nil {
		return Config{}, err
	}
	if cfg.BiometricMaxAttempts, err = intEnv("BIOMETRIC_MAX_ATTEMPTS", cfg.BiometricMaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.BiometricWindow, err = durationEnv("BIOMETRIC_WINDOW", cfg.BiometricWindow); err != nil {
		return Config{}, err
	}
	if cfg.BiometricLockout, err = durationEnv("BIOMETRIC_LOCKOUT", cfg.BiometricLockout); err != nil {
		return Config{}, err
	}
	if cfg.SessionTimeout, err = durationEnv("SESSION_TIMEOUT", cfg.SessionTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WarningWindow, err = durationEnv("SESSION_WARNING_WINDOW", cfg.WarningWindow); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationEnv("SESSION_SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.AnomalyInterval, err = durationEnv("ANOMALY_SCAN_INTERVAL", cfg.AnomalyInterval); err != nil {
		return Config{}, err
	}
	if cfg.AnomalyLookback, err = durationEnv("ANOMALY_LOOKBACK", cfg.AnomalyLookback); err != nil {
		return Config{}, err
	}

	if cfg.WarningWindow >= cfg.SessionTimeout {
		return Config{}, fmt.Errorf("SESSION_WARNING_WINDOW must be shorter than SESSION_TIMEOUT")
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	if cfg.OperatorSecret == "" {
		return Config{}, fmt.Errorf("OPERATOR_SECRET must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads KEY_SECONDS as an integer number of seconds, falling back to
// KEY as a time.ParseDuration string.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
