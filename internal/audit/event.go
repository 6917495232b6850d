package audit

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/vigil-ai/vigil/internal/redact"
	"github.com/vigil-ai/vigil/internal/safety"
)

// Logging levels control how much of the validated text leaves the process.
const (
	LevelNone     = "none"
	LevelMetadata = "metadata"
	LevelFull     = "full"
)

const previewLimit = 256

// Preview carries redacted excerpts of the validated exchange. Only
// populated at LevelFull.
type Preview struct {
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

// Event is the canonical validation-decision payload delivered to sinks.
type Event struct {
	Version    string            `json:"version"`
	Timestamp  time.Time         `json:"timestamp"`
	RequestID  string            `json:"request_id"`
	Mode       safety.Mode       `json:"mode"`
	Decision   string            `json:"decision"` // pass | block
	DecidedBy  string            `json:"decided_by,omitempty"`
	Layer      safety.Layer      `json:"layer"`
	RiskLevel  safety.RiskLevel  `json:"risk_level"`
	Violations []string          `json:"violations,omitempty"`
	Reasoning  string            `json:"reasoning,omitempty"`
	Preview    Preview           `json:"preview,omitempty"`
	LatencyMs  float64           `json:"latency_ms"`
	Detectors  map[string]string `json:"detectors,omitempty"`
}

// BuildParams collects inputs needed to assemble an event.
type BuildParams struct {
	Result     safety.ValidationResult
	Detections []safety.DetectionResult
	Input      string
	Output     string
	RequestID  string
	Level      string
	Latency    time.Duration
}

// BuildEvent creates a decision event from a validation result. Returns nil
// at LevelNone.
func BuildEvent(params BuildParams) *Event {
	level := strings.TrimSpace(strings.ToLower(params.Level))
	if level == LevelNone {
		return nil
	}

	decision := "pass"
	if !params.Result.IsSafe {
		decision = "block"
	}

	ev := &Event{
		Version:    "1",
		Timestamp:  time.Now().UTC(),
		RequestID:  ensureRequestID(params.RequestID),
		Mode:       params.Result.Mode,
		Decision:   decision,
		DecidedBy:  params.Result.DecidedBy,
		Layer:      params.Result.Layer,
		RiskLevel:  params.Result.RiskLevel,
		Violations: cloneStrings(params.Result.Violations),
		Reasoning:  redact.String(params.Result.Reasoning),
		LatencyMs:  float64(params.Latency) / float64(time.Millisecond),
	}

	if len(params.Detections) > 0 {
		ev.Detectors = make(map[string]string, len(params.Detections))
		for _, d := range params.Detections {
			ev.Detectors[d.Detector] = d.Category
		}
	}

	if level == LevelFull {
		ev.Preview = Preview{
			Input:  redact.String(truncatePreview(params.Input)),
			Output: redact.String(truncatePreview(params.Output)),
		}
	}

	return ev
}

// LogEvent prints a redacted JSON representation of the event.
func LogEvent(ev *Event) {
	if ev == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		redact.Logf("audit: failed to marshal event: %v", err)
		return
	}
	redact.Logf("audit: %s", string(data))
}

func ensureRequestID(id string) string {
	if id != "" {
		return id
	}
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

func truncatePreview(s string) string {
	if len(s) <= previewLimit {
		return s
	}
	return s[:previewLimit] + "..."
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
