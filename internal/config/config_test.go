package config

import "testing"

func TestGetEnvOrDefaultUsesFallback(t *testing.T) {
	t.Setenv("EXPOSURE_RELAY_TEST_UNSET", "")
	if got := getEnvOrDefault("EXPOSURE_RELAY_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("expected fallback value, got %q", got)
	}
}

func TestGetEnvOrDefaultUsesEnv(t *testing.T) {
	t.Setenv("EXPOSURE_RELAY_TEST_SET", "configured")
	if got := getEnvOrDefault("EXPOSURE_RELAY_TEST_SET", "fallback"); got != "configured" {
		t.Errorf("expected env override, got %q", got)
	}
}
