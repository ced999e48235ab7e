// Package config loads the engine's environment-variable
// configuration, adapting the teacher's requireEnv/getEnvOrDefault
// idiom from cmd/engine/main.go: secrets always come from the
// environment, with no fallback default for anything security
// sensitive.
package config

import (
	"log"
	"os"
)

// Config holds everything main needs to wire the engine's
// dependencies, per spec.md §6's external interfaces.
type Config struct {
	DatabaseURL           string
	FirebaseCredentialsJSON string
	Port                  string
	RetentionPollInterval string
}

// Load reads required and optional environment variables, exiting the
// process if a required secret is missing — the teacher's
// fail-fast-at-startup posture for credentials.
func Load() Config {
	return Config{
		DatabaseURL:             requireEnv("DATABASE_URL"),
		FirebaseCredentialsJSON: requireEnv("FIREBASE_SERVICE_ACCOUNT_JSON"),
		Port:                    getEnvOrDefault("PORT", "8080"),
		RetentionPollInterval:   getEnvOrDefault("RETENTION_POLL_INTERVAL", "1h"),
	}
}

// requireEnv reads a required environment variable and exits if it is
// not set. This prevents the binary from starting with missing
// critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
