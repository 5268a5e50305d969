package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *LessonConfig {
	return &LessonConfig{
		LessonSize:       10,
		RetryBudget:      2,
		LearnedThreshold: 3,
		Directions:       DirectionsBoth,
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadLessonSize(t *testing.T) {
	cfg := validConfig()
	cfg.LessonSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for lesson_size 0")
	}
	cfg.LessonSize = 51
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for lesson_size 51")
	}
}

func TestValidateRejectsNegativeRetryBudget(t *testing.T) {
	cfg := validConfig()
	cfg.RetryBudget = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for negative retry_budget")
	}
}

func TestValidateDefaultsDirections(t *testing.T) {
	cfg := validConfig()
	cfg.Directions = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Directions != DirectionsBoth {
		t.Fatalf("expected directions default %q, got %q", DirectionsBoth, cfg.Directions)
	}
}

func TestValidateRejectsUnknownDirections(t *testing.T) {
	cfg := validConfig()
	cfg.Directions = "sideways"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown directions mode")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lesson_config.yaml")
	content := []byte("lesson_size: 5\nretry_budget: 1\nlearned_threshold: 3.0\ndirections: forward\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	if err := LoadConfig(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := GetConfig()
	if cfg == nil {
		t.Fatalf("expected loaded config")
	}
	if cfg.LessonSize != 5 || cfg.RetryBudget != 1 || cfg.Directions != DirectionsForward {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
