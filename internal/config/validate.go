package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
// Invalid configuration is a programmer error and fails at construction,
// never at first use.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}

	if err := validateUnit("pipeline.gate2_confidence_threshold", cfg.Pipeline.Gate2ConfidenceThreshold); err != nil {
		return err
	}
	if err := validateUnit("pipeline.gate1_embedding_threshold", cfg.Pipeline.Gate1EmbeddingThreshold); err != nil {
		return err
	}
	if cfg.Pipeline.MaxTextSize <= 0 {
		return errors.New("pipeline.max_text_size must be positive")
	}

	if *cfg.Pipeline.Gate3Enabled {
		if strings.TrimSpace(cfg.Observer.Provider) == "" {
			return errors.New("observer.provider must be set when gate3 is enabled")
		}
		if strings.TrimSpace(cfg.Observer.Model) == "" {
			return errors.New("observer.model must be set when gate3 is enabled")
		}
		if cfg.Observer.TimeoutSeconds <= 0 {
			return errors.New("observer.timeout_seconds must be positive")
		}
	}

	if cfg.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if cfg.Retry.InitialDelayMS < 0 {
		return errors.New("retry.initial_delay_ms must not be negative")
	}
	if cfg.Retry.MaxDelayMS < cfg.Retry.InitialDelayMS {
		return errors.New("retry.max_delay_ms must not be below retry.initial_delay_ms")
	}
	if cfg.Retry.ExponentialBase < 1 {
		return errors.New("retry.exponential_base must be at least 1")
	}

	if err := validateDetectors(cfg.Detectors); err != nil {
		return err
	}

	if cfg.Guard.Enabled && strings.TrimSpace(cfg.Guard.BundleDir) == "" {
		return errors.New("guard.bundle_dir must be set when guard is enabled")
	}
	if cfg.Guard.SeqLen <= 0 {
		return errors.New("guard.seq_len must be positive")
	}

	switch cfg.Audit.Level {
	case "none", "metadata", "full":
	default:
		return fmt.Errorf("audit.level must be none, metadata or full, got %q", cfg.Audit.Level)
	}

	if cfg.Telemetry.Enabled {
		if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
			return errors.New("telemetry.endpoint must be set when telemetry is enabled")
		}
		switch strings.ToLower(cfg.Telemetry.Protocol) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", cfg.Telemetry.Protocol)
		}
	}

	return nil
}

func validateDetectors(d DetectorsConfig) error {
	thresholds := map[string]float64{
		"detectors.pattern.threshold":       d.Pattern.Threshold,
		"detectors.framing.threshold":       d.Framing.Threshold,
		"detectors.escalation.threshold":    d.Escalation.Threshold,
		"detectors.harmful.threshold":       d.Harmful.Threshold,
		"detectors.pattern.base_confidence": d.Pattern.BaseConfidence,
		"detectors.pattern.max_confidence":  d.Pattern.MaxConfidence,
	}
	for name, v := range thresholds {
		if err := validateUnit(name, v); err != nil {
			return err
		}
	}

	if d.Pattern.MaxConfidence < d.Pattern.BaseConfidence {
		return errors.New("detectors.pattern.max_confidence must not be below base_confidence")
	}
	if d.Pattern.CorroborationStep < 0 {
		return errors.New("detectors.pattern.corroboration_step must not be negative")
	}

	factors := map[string]float64{
		"detectors.pattern.benign_reduction": d.Pattern.BenignReduction,
		"detectors.pattern.question_factor":  d.Pattern.QuestionFactor,
		"detectors.pattern.stacked_factor":   d.Pattern.StackedFactor,
	}
	for name, v := range factors {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0,1], got %v", name, v)
		}
	}

	if d.Framing.MaxLegitimateCredit < 0 || d.Framing.MaxLegitimateCredit > 1 {
		return errors.New("detectors.framing.max_legitimate_credit must be in [0,1]")
	}

	return nil
}

func validateUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0,1], got %v", name, v)
	}
	return nil
}
