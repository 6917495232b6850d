package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds Vigil configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Observer  ObserverConfig  `yaml:"observer"`
	Retry     RetryConfig     `yaml:"retry"`
	Detectors DetectorsConfig `yaml:"detectors"`
	Guard     GuardConfig     `yaml:"guard"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`           // HTTP listen address, e.g. ":8080"
	MaxBodyBytes int64  `yaml:"max_body_bytes"` // request body ceiling
}

// PipelineConfig controls the gate cascade.
type PipelineConfig struct {
	Gate1Enabled *bool `yaml:"gate1_enabled"`
	Gate2Enabled *bool `yaml:"gate2_enabled"`
	Gate3Enabled *bool `yaml:"gate3_enabled"`

	// Gate2 decides alone when its confidence reaches this value; below it,
	// the observer is consulted.
	Gate2ConfidenceThreshold float64 `yaml:"gate2_confidence_threshold"`

	// Similarity cutoff for the ML guard detector when a bundle is loaded.
	Gate1EmbeddingThreshold float64 `yaml:"gate1_embedding_threshold"`

	// FailClosed turns internal errors into BLOCK instead of ALLOW.
	FailClosed bool `yaml:"fail_closed"`

	// MaxTextSize rejects oversized input before any gate runs (bytes).
	MaxTextSize int `yaml:"max_text_size"`
}

// ObserverConfig connects Gate3 to the external LLM capability.
type ObserverConfig struct {
	Provider       string `yaml:"provider"` // e.g. "openai"
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per-call ceiling
}

// RetryConfig is the resilient-call policy around every outbound model call.
type RetryConfig struct {
	Enabled         *bool   `yaml:"enabled"`
	MaxAttempts     int     `yaml:"max_attempts"`
	InitialDelayMS  int     `yaml:"initial_delay_ms"`
	MaxDelayMS      int     `yaml:"max_delay_ms"`
	ExponentialBase float64 `yaml:"exponential_base"`
	Jitter          *bool   `yaml:"jitter"`
}

// DetectorsConfig tunes the heuristic detector set. The reduction and bonus
// constants are empirically tuned; they are config rather than code so
// deployments can adjust them without a rebuild.
type DetectorsConfig struct {
	Pattern    PatternConfig    `yaml:"pattern"`
	Framing    FramingConfig    `yaml:"framing"`
	Escalation EscalationConfig `yaml:"escalation"`
	Harmful    HarmfulConfig    `yaml:"harmful"`
}

type PatternConfig struct {
	Enabled   *bool   `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`

	// Confidence starts at BaseConfidence on the first signature hit and
	// grows by CorroborationStep per additional hit, capped at MaxConfidence.
	BaseConfidence    float64 `yaml:"base_confidence"`
	CorroborationStep float64 `yaml:"corroboration_step"`
	MaxConfidence     float64 `yaml:"max_confidence"`

	// Benign-context arithmetic. A benign match multiplies risk by
	// BenignReduction; question/discussion framing halves it again via
	// QuestionFactor; two or more distinct benign categories multiply by
	// StackedFactor on top.
	BenignReduction float64 `yaml:"benign_reduction"`
	QuestionFactor  float64 `yaml:"question_factor"`
	StackedFactor   float64 `yaml:"stacked_factor"`
}

type FramingConfig struct {
	Enabled   *bool   `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`

	// MultiCategoryBonus is added once per extra co-firing category,
	// capped at MaxBonus.
	MultiCategoryBonus float64 `yaml:"multi_category_bonus"`
	MaxBonus           float64 `yaml:"max_bonus"`

	// MaxLegitimateCredit caps how much known-legitimate phrasing
	// (tabletop gaming, drama class, ...) can subtract from the score.
	MaxLegitimateCredit float64  `yaml:"max_legitimate_credit"`
	LegitimatePhrases   []string `yaml:"legitimate_phrases"`
}

type EscalationConfig struct {
	Enabled   *bool   `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
	// OrderedBonus rewards phases appearing in attack order
	// (trust-building before boundary-testing before payload).
	OrderedBonus float64 `yaml:"ordered_bonus"`
}

type HarmfulConfig struct {
	Enabled   *bool   `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
}

// GuardConfig points at an optional local ONNX classifier bundle.
type GuardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BundleDir string `yaml:"bundle_dir"`
	SeqLen    int    `yaml:"seq_len"`
}

type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Level      string `yaml:"level"` // none | metadata | full
	WebhookURL string `yaml:"webhook_url"`
	QueueSize  int    `yaml:"queue_size"`
	Workers    int    `yaml:"workers"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
}

// ObserverTimeout returns the per-call ceiling as a duration.
func (o ObserverConfig) ObserverTimeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// InitialDelay returns the first backoff delay.
func (r RetryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMS) * time.Millisecond
}

// MaxDelay returns the backoff ceiling.
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func boolPtr(v bool) *bool { return &v }

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}

	if cfg.Pipeline.Gate1Enabled == nil {
		cfg.Pipeline.Gate1Enabled = boolPtr(true)
	}
	if cfg.Pipeline.Gate2Enabled == nil {
		cfg.Pipeline.Gate2Enabled = boolPtr(true)
	}
	if cfg.Pipeline.Gate3Enabled == nil {
		cfg.Pipeline.Gate3Enabled = boolPtr(true)
	}
	if cfg.Pipeline.Gate2ConfidenceThreshold == 0 {
		cfg.Pipeline.Gate2ConfidenceThreshold = 0.7
	}
	if cfg.Pipeline.Gate1EmbeddingThreshold == 0 {
		cfg.Pipeline.Gate1EmbeddingThreshold = 0.75
	}
	if cfg.Pipeline.MaxTextSize == 0 {
		cfg.Pipeline.MaxTextSize = 64 * 1024
	}

	if cfg.Observer.Provider == "" {
		cfg.Observer.Provider = "openai"
	}
	if cfg.Observer.Model == "" {
		cfg.Observer.Model = "gpt-4.1-mini"
	}
	if cfg.Observer.APIKeyEnv == "" {
		cfg.Observer.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Observer.TimeoutSeconds == 0 {
		cfg.Observer.TimeoutSeconds = 30
	}

	if cfg.Retry.Enabled == nil {
		cfg.Retry.Enabled = boolPtr(true)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialDelayMS == 0 {
		cfg.Retry.InitialDelayMS = 200
	}
	if cfg.Retry.MaxDelayMS == 0 {
		cfg.Retry.MaxDelayMS = 5000
	}
	if cfg.Retry.ExponentialBase == 0 {
		cfg.Retry.ExponentialBase = 2.0
	}
	if cfg.Retry.Jitter == nil {
		cfg.Retry.Jitter = boolPtr(true)
	}

	applyDetectorDefaults(&cfg.Detectors)

	if cfg.Guard.SeqLen == 0 {
		cfg.Guard.SeqLen = 256
	}

	if cfg.Audit.Level == "" {
		cfg.Audit.Level = "metadata"
	}
	if cfg.Audit.QueueSize == 0 {
		cfg.Audit.QueueSize = 1000
	}
	if cfg.Audit.Workers == 0 {
		cfg.Audit.Workers = 1
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
}

func applyDetectorDefaults(d *DetectorsConfig) {
	if d.Pattern.Enabled == nil {
		d.Pattern.Enabled = boolPtr(true)
	}
	if d.Pattern.Threshold == 0 {
		d.Pattern.Threshold = 0.5
	}
	if d.Pattern.BaseConfidence == 0 {
		d.Pattern.BaseConfidence = 0.7
	}
	if d.Pattern.CorroborationStep == 0 {
		d.Pattern.CorroborationStep = 0.05
	}
	if d.Pattern.MaxConfidence == 0 {
		d.Pattern.MaxConfidence = 0.95
	}
	if d.Pattern.BenignReduction == 0 {
		d.Pattern.BenignReduction = 0.3
	}
	if d.Pattern.QuestionFactor == 0 {
		d.Pattern.QuestionFactor = 0.5
	}
	if d.Pattern.StackedFactor == 0 {
		d.Pattern.StackedFactor = 0.7
	}

	if d.Framing.Enabled == nil {
		d.Framing.Enabled = boolPtr(true)
	}
	if d.Framing.Threshold == 0 {
		d.Framing.Threshold = 0.4
	}
	if d.Framing.MultiCategoryBonus == 0 {
		d.Framing.MultiCategoryBonus = 0.1
	}
	if d.Framing.MaxBonus == 0 {
		d.Framing.MaxBonus = 0.2
	}
	if d.Framing.MaxLegitimateCredit == 0 {
		d.Framing.MaxLegitimateCredit = 0.4
	}
	if len(d.Framing.LegitimatePhrases) == 0 {
		d.Framing.LegitimatePhrases = []string{
			"tabletop game",
			"dungeons and dragons",
			"d&d campaign",
			"drama class",
			"improv exercise",
			"writing exercise",
			"creative writing class",
			"school play",
			"film script",
		}
	}

	if d.Escalation.Enabled == nil {
		d.Escalation.Enabled = boolPtr(true)
	}
	if d.Escalation.Threshold == 0 {
		d.Escalation.Threshold = 0.5
	}
	if d.Escalation.OrderedBonus == 0 {
		d.Escalation.OrderedBonus = 0.15
	}

	if d.Harmful.Enabled == nil {
		d.Harmful.Enabled = boolPtr(true)
	}
	if d.Harmful.Threshold == 0 {
		d.Harmful.Threshold = 0.6
	}
}
