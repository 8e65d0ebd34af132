package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Quality != 70 {
		t.Errorf("Quality = %d, want 70", cfg.Quality)
	}
	if cfg.BudgetKB() != 51200 {
		t.Errorf("BudgetKB = %v, want 51200", cfg.BudgetKB())
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.Stagger() != 100*time.Millisecond {
		t.Errorf("Stagger = %v, want 100ms", cfg.Stagger())
	}
	if cfg.DiscardStale {
		t.Error("DiscardStale should default to false")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("SQUEEZE_QUALITY", "30")
	t.Setenv("SQUEEZE_BUDGET_MB", "10")
	t.Setenv("SQUEEZE_DISCARD_STALE", "true")
	t.Setenv("SQUEEZE_LOG_LEVEL", "debug")
	t.Setenv("SQUEEZE_LOG_FILE", "/tmp/squeeze.log")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Quality != 30 {
		t.Errorf("Quality = %d, want 30", cfg.Quality)
	}
	if cfg.BudgetKB() != 10240 {
		t.Errorf("BudgetKB = %v, want 10240", cfg.BudgetKB())
	}
	if !cfg.DiscardStale {
		t.Error("DiscardStale = false, want true")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.LogFile != "/tmp/squeeze.log" {
		t.Errorf("LogFile = %s", cfg.LogFile)
	}
}

func TestLoad_InvalidQuality(t *testing.T) {
	t.Setenv("SQUEEZE_QUALITY", "101")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for quality above 100")
	}
}

func TestLoad_Unparsable(t *testing.T) {
	t.Setenv("SQUEEZE_WORKERS", "many")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric workers")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "valid", cfg: Config{Quality: 1, BudgetMB: 1, Workers: 1}, ok: true},
		{name: "zero quality", cfg: Config{Quality: 0, BudgetMB: 1, Workers: 1}},
		{name: "zero budget", cfg: Config{Quality: 50, BudgetMB: 0, Workers: 1}},
		{name: "zero workers", cfg: Config{Quality: 50, BudgetMB: 1, Workers: 0}},
		{name: "negative stagger", cfg: Config{Quality: 50, BudgetMB: 1, Workers: 1, StaggerMS: -1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
