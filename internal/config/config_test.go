package config_test

import (
	"testing"
	"time"

	"github.com/ostium-io/ostium/internal/config"
)

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Controller.Env != "dev" {
		t.Errorf("env = %q, want dev", cfg.Controller.Env)
	}
	if cfg.Policy.DebounceWindow != 3*time.Second {
		t.Errorf("debounce_window = %v, want 3s", cfg.Policy.DebounceWindow)
	}
	if cfg.Policy.FaultSuppression != 30*time.Second {
		t.Errorf("fault_suppression = %v, want 30s", cfg.Policy.FaultSuppression)
	}
	if cfg.Policy.EntryGrace != 10*time.Minute || cfg.Policy.ExitGrace != 15*time.Minute {
		t.Errorf("graces = %v/%v, want 10m/15m", cfg.Policy.EntryGrace, cfg.Policy.ExitGrace)
	}
	if cfg.Policy.EscalationThreshold != 3 {
		t.Errorf("escalation_threshold = %d, want 3", cfg.Policy.EscalationThreshold)
	}
	if cfg.Policy.LinkFailureThreshold != 5 || cfg.Policy.BackendFailureThreshold != 5 {
		t.Errorf("failure thresholds = %d/%d, want 5/5",
			cfg.Policy.LinkFailureThreshold, cfg.Policy.BackendFailureThreshold)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Diag.RetentionDays != 30 {
		t.Errorf("retention_days = %d, want 30", cfg.Diag.RetentionDays)
	}
	if cfg.HTTP.Addr != ":9091" {
		t.Errorf("http addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Controller.WatchdogTimeout != 30*time.Second {
		t.Errorf("watchdog_timeout = %v, want 30s", cfg.Controller.WatchdogTimeout)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("OSTIUM_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("OSTIUM_POLICY_ESCALATION_THRESHOLD", "5")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("redis addr = %q, want override", cfg.Redis.Addr)
	}
	if cfg.Policy.EscalationThreshold != 5 {
		t.Errorf("escalation_threshold = %d, want 5", cfg.Policy.EscalationThreshold)
	}
}

func TestLoad_UnknownEnvFallsBackToDev(t *testing.T) {
	t.Setenv("OSTIUM_CONTROLLER_ENV", "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Controller.Env != "dev" {
		t.Errorf("env = %q, want dev fallback", cfg.Controller.Env)
	}
}
