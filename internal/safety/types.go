package safety

import "time"

// RiskLevel buckets the severity of a finding.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Layer identifies which part of the cascade produced a verdict.
type Layer string

const (
	LayerHeuristic Layer = "heuristic"
	LayerSemantic  Layer = "semantic"
	LayerNone      Layer = "none"
	LayerError     Layer = "error"
)

// Mode tags which side of the exchange a result covers.
type Mode string

const (
	ModeInput   Mode = "input"
	ModeOutput  Mode = "output"
	ModeGeneric Mode = "generic"
)

// DetectionResult is a single detection emitted by one detector.
// Results are created fresh per call and never mutated afterwards.
type DetectionResult struct {
	Detected        bool              `json:"detected"`
	Detector        string            `json:"detector"`
	DetectorVersion string            `json:"detector_version"`
	Confidence      float64           `json:"confidence"`
	Category        string            `json:"category,omitempty"`
	Description     string            `json:"description,omitempty"`
	Evidence        string            `json:"evidence,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Benign          []BenignMatch     `json:"benign_matches,omitempty"`
}

// BenignMatch records a known-legitimate-use hit that reduces effective risk.
// It is discarded entirely when a malicious-override indicator co-occurs.
type BenignMatch struct {
	Pattern   string  `json:"pattern"`
	Matched   string  `json:"matched"`
	Category  string  `json:"category"`
	Reduction float64 `json:"reduction"` // risk multiplier in (0,1]
}

// ValidationResult is the verdict returned to every caller of the pipeline.
// Construction is append-only; once returned it is treated as immutable.
type ValidationResult struct {
	IsSafe      bool      `json:"is_safe"`
	Layer       Layer     `json:"layer"`
	DecidedBy   string    `json:"decided_by,omitempty"` // gate1 | gate2 | gate3
	Violations  []string  `json:"violations,omitempty"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Reasoning   string    `json:"reasoning,omitempty"`
	Mode        Mode      `json:"mode,omitempty"`
	GateFailed  bool      `json:"gate_failed,omitempty"`
	FailedGates []string  `json:"failed_gates,omitempty"`
}

// ObservationResult is the Gate3 outcome: the observer's judgment of a
// completed request/response exchange.
type ObservationResult struct {
	IsSafe         bool          `json:"is_safe"`
	InputMalicious bool          `json:"input_malicious"`
	AIComplied     bool          `json:"ai_complied"`
	Reasoning      string        `json:"reasoning"`
	RawResponse    string        `json:"raw_response,omitempty"`
	Latency        time.Duration `json:"latency_ns"`
}

// RiskFromConfidence maps a heuristic confidence to a risk bucket.
func RiskFromConfidence(conf float64) RiskLevel {
	switch {
	case conf >= 0.9:
		return RiskCritical
	case conf >= 0.7:
		return RiskHigh
	case conf >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}
