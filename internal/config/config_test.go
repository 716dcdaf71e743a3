// internal/config/config_test.go
package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Backend.URL != "http://localhost:8000/api" {
		t.Errorf("default backend URL wrong, got %s", cfg.Backend.URL)
	}
	if cfg.Defaults.MaxRounds != DefaultRounds {
		t.Errorf("MaxRounds should be %d, got %d", DefaultRounds, cfg.Defaults.MaxRounds)
	}
	if !cfg.Defaults.ShowReasoning {
		t.Error("reasoning should be visible by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level should be 'info', got %s", cfg.Log.Level)
	}
}

func TestClampRounds(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, 1},
		{0, 1},
		{1, 1},
		{3, 3},
		{5, 5},
		{6, 5},
		{100, 5},
	}
	for _, tt := range tests {
		if got := ClampRounds(tt.in); got != tt.want {
			t.Errorf("ClampRounds(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults.MaxRounds = 9

	applyDefaults(cfg)

	if cfg.Backend.URL == "" {
		t.Error("backend URL should get a default")
	}
	if cfg.Defaults.MaxRounds != MaxRounds {
		t.Errorf("out-of-range rounds should clamp to %d, got %d", MaxRounds, cfg.Defaults.MaxRounds)
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
}
