package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateNilConfig(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestValidateRejectsNegativeTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Observer.TimeoutSeconds = -5
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "timeout_seconds") {
		t.Fatalf("expected timeout error, got: %v", err)
	}
}

func TestValidateRejectsOutOfRangeThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.Gate2ConfidenceThreshold = 1.5
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "gate2_confidence_threshold") {
		t.Fatalf("expected threshold error, got: %v", err)
	}
}

func TestValidateRejectsBadRetryPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Retry.MaxAttempts = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for zero max_attempts")
	}

	cfg = validConfig()
	cfg.Retry.ExponentialBase = 0.5
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for exponential_base below 1")
	}

	cfg = validConfig()
	cfg.Retry.InitialDelayMS = 10000
	cfg.Retry.MaxDelayMS = 100
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for max_delay below initial_delay")
	}
}

func TestValidateRejectsBenignFactorOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Detectors.Pattern.BenignReduction = 1.7
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for benign_reduction above 1")
	}
}

func TestValidateGuardRequiresBundleDir(t *testing.T) {
	cfg := validConfig()
	cfg.Guard.Enabled = true
	cfg.Guard.BundleDir = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for guard without bundle_dir")
	}
}

func TestValidateObserverOptionalWhenGate3Disabled(t *testing.T) {
	cfg := validConfig()
	disabled := false
	cfg.Pipeline.Gate3Enabled = &disabled
	cfg.Observer.Model = ""
	if err := Validate(cfg); err != nil {
		t.Fatalf("observer fields should be optional with gate3 disabled, got: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("definitely-not-a-real-file.yaml")
	if err != nil {
		t.Fatalf("missing file should not error, got: %v", err)
	}
	if cfg.Pipeline.Gate2ConfidenceThreshold != 0.7 {
		t.Fatalf("expected default gate2 threshold 0.7, got %v", cfg.Pipeline.Gate2ConfidenceThreshold)
	}
	if !*cfg.Pipeline.Gate1Enabled || !*cfg.Pipeline.Gate2Enabled || !*cfg.Pipeline.Gate3Enabled {
		t.Fatalf("expected all gates enabled by default")
	}
	if cfg.Detectors.Pattern.BaseConfidence != 0.7 || cfg.Detectors.Pattern.MaxConfidence != 0.95 {
		t.Fatalf("unexpected pattern confidence defaults: %+v", cfg.Detectors.Pattern)
	}
}
