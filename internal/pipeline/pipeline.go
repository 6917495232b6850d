package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vigil-ai/vigil/internal/audit"
	"github.com/vigil-ai/vigil/internal/config"
	"github.com/vigil-ai/vigil/internal/detector"
	"github.com/vigil-ai/vigil/internal/observer"
	"github.com/vigil-ai/vigil/internal/redact"
	"github.com/vigil-ai/vigil/internal/safety"
	"github.com/vigil-ai/vigil/internal/telemetry"
)

// Gate identifiers used in verdicts and metrics.
const (
	GateInput    = "gate1"
	GateOutput   = "gate2"
	GateObserver = "gate3"
)

// Orchestrator composes the detector set, the observer and the error policy
// into the three-gate cascade. Safe for concurrent use; the only mutable
// state is the counters.
type Orchestrator struct {
	cfg      *config.Config
	registry *detector.Registry
	observer *observer.Observer // nil when gate3 is off
	tel      *telemetry.Provider
	auditor  *audit.Emitter // nil when auditing is off

	stats Stats
}

func New(cfg *config.Config, registry *detector.Registry, obs *observer.Observer, tel *telemetry.Provider, auditor *audit.Emitter) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: nil config")
	}
	if registry == nil {
		return nil, errors.New("pipeline: nil detector registry")
	}
	if cfg.Pipeline.Gate3Enabled != nil && *cfg.Pipeline.Gate3Enabled && obs == nil {
		return nil, errors.New("pipeline: gate3 enabled but no observer configured")
	}
	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		observer: obs,
		tel:      tel,
		auditor:  auditor,
	}, nil
}

// ValidateInput screens a raw user request before it reaches any model.
func (o *Orchestrator) ValidateInput(ctx context.Context, text string) safety.ValidationResult {
	return o.ValidateInputWithHistory(ctx, text, nil)
}

// ValidateInputWithHistory screens a raw user request with the caller's
// recent prior user turns as context, so the multi-turn detectors can see
// staged escalation building up to this request.
func (o *Orchestrator) ValidateInputWithHistory(ctx context.Context, text string, turns []string) safety.ValidationResult {
	ctx, span := o.tel.Tracer().Start(ctx, "vigil.validate_input")
	defer span.End()

	start := time.Now()
	o.stats.TotalValidations.Add(1)

	res, detections := o.runGate1(ctx, text, turns)

	o.finish(ctx, res, detections, text, "", start)
	return res
}

// ValidateDialogue screens a completed request/response exchange through
// Gate2 and, when Gate2 is not confident, Gate3.
func (o *Orchestrator) ValidateDialogue(ctx context.Context, input, output string) safety.ValidationResult {
	return o.ValidateDialogueWithHistory(ctx, input, output, nil)
}

// ValidateDialogueWithHistory is ValidateDialogue with the caller's recent
// prior user turns as multi-turn context.
func (o *Orchestrator) ValidateDialogueWithHistory(ctx context.Context, input, output string, turns []string) safety.ValidationResult {
	ctx, span := o.tel.Tracer().Start(ctx, "vigil.validate_dialogue")
	defer span.End()

	start := time.Now()
	o.stats.TotalValidations.Add(1)

	res, detections := o.runGates23(ctx, input, output, turns)

	o.finish(ctx, res, detections, input, output, start)
	return res
}

// Validate is an alias of ValidateDialogue for callers that do not need the
// input-only fast path.
func (o *Orchestrator) Validate(ctx context.Context, input, output string) safety.ValidationResult {
	return o.ValidateDialogue(ctx, input, output)
}

// ValidateDialogueAsync runs ValidateDialogue off the caller's goroutine
// and delivers the result on the returned channel. The channel is buffered;
// the result is never lost if the caller is slow to receive.
func (o *Orchestrator) ValidateDialogueAsync(ctx context.Context, input, output string) <-chan safety.ValidationResult {
	ch := make(chan safety.ValidationResult, 1)
	go func() {
		ch <- o.ValidateDialogue(ctx, input, output)
		close(ch)
	}()
	return ch
}

// runGate1 runs the heuristic detector set on the raw request.
func (o *Orchestrator) runGate1(ctx context.Context, text string, turns []string) (safety.ValidationResult, []safety.DetectionResult) {
	gateStart := time.Now()
	defer func() {
		o.tel.RecordGateDuration(GateInput, millis(time.Since(gateStart)))
	}()

	if reject := o.checkSize(text, safety.ModeInput); reject != nil {
		return *reject, nil
	}
	if !enabled(o.cfg.Pipeline.Gate1Enabled) {
		return safety.ValidationResult{
			IsSafe:    true,
			Layer:     safety.LayerNone,
			DecidedBy: GateInput,
			RiskLevel: safety.RiskLow,
			Mode:      safety.ModeInput,
		}, nil
	}

	dctx := &detector.Context{Turns: turns, Mode: safety.ModeInput}
	detections, maxConf := o.runDetectors(ctx, text, dctx)

	if len(detections) > 0 {
		o.stats.Gate1Blocks.Add(1)
		return safety.ValidationResult{
			IsSafe:     false,
			Layer:      safety.LayerHeuristic,
			DecidedBy:  GateInput,
			Violations: violationMessages(detections),
			RiskLevel:  safety.RiskFromConfidence(maxConf),
			Reasoning:  detections[0].Description,
			Mode:       safety.ModeInput,
		}, detections
	}

	return safety.ValidationResult{
		IsSafe:    true,
		Layer:     safety.LayerNone,
		DecidedBy: GateInput,
		RiskLevel: safety.RiskLow,
		Mode:      safety.ModeInput,
	}, nil
}

// runGates23 implements the output side of the cascade: Gate2 decides alone
// when confident, otherwise Gate3's verdict is authoritative.
func (o *Orchestrator) runGates23(ctx context.Context, input, output string, turns []string) (safety.ValidationResult, []safety.DetectionResult) {
	// The size ceiling applies to the whole exchange: an oversized input
	// must never reach the detectors or be embedded into a transcript.
	if reject := o.checkSize(input, safety.ModeOutput); reject != nil {
		return *reject, nil
	}
	if reject := o.checkSize(output, safety.ModeOutput); reject != nil {
		return *reject, nil
	}

	gate2Start := time.Now()
	var (
		detections []safety.DetectionResult
		maxConf    float64
	)
	if enabled(o.cfg.Pipeline.Gate2Enabled) {
		// The turn context for output screening is the user trajectory up
		// to and including the request that produced this output.
		dctx := &detector.Context{
			Input: input,
			Turns: append(append([]string{}, turns...), input),
			Mode:  safety.ModeOutput,
		}
		detections, maxConf = o.runDetectors(ctx, output, dctx)
	}
	o.tel.RecordGateDuration(GateOutput, millis(time.Since(gate2Start)))

	// Gate2's best guess and its confidence in that guess. A clean pass is
	// confident in proportion to how little the detectors saw; a hit is
	// confident in proportion to its strongest detection.
	gate2Unsafe := len(detections) > 0
	gate2Confidence := 1 - maxConf
	if gate2Unsafe {
		gate2Confidence = maxConf
	}

	gate2Result := safety.ValidationResult{
		IsSafe:    !gate2Unsafe,
		Layer:     safety.LayerNone,
		DecidedBy: GateOutput,
		RiskLevel: safety.RiskFromConfidence(maxConf),
		Mode:      safety.ModeOutput,
	}
	if gate2Unsafe {
		gate2Result.Layer = safety.LayerHeuristic
		gate2Result.Violations = violationMessages(detections)
		gate2Result.Reasoning = detections[0].Description
		gate2Result.GateFailed = true
		gate2Result.FailedGates = []string{GateOutput}
	}

	// Short-circuit: Gate3 runs only when Gate2 is unsure in either
	// direction.
	if gate2Confidence >= o.cfg.Pipeline.Gate2ConfidenceThreshold || !enabled(o.cfg.Pipeline.Gate3Enabled) || o.observer == nil {
		if gate2Unsafe {
			o.stats.Gate2Blocks.Add(1)
		}
		return gate2Result, detections
	}

	return o.runGate3(ctx, input, output, gate2Result), detections
}

// runGate3 asks the observer for an authoritative verdict on the exchange.
func (o *Orchestrator) runGate3(ctx context.Context, input, output string, gate2Result safety.ValidationResult) safety.ValidationResult {
	o.stats.Gate3Invocations.Add(1)
	gateStart := time.Now()

	obs, err := o.observer.Observe(ctx, input, output)
	o.tel.RecordGateDuration(GateObserver, millis(time.Since(gateStart)))
	if err != nil {
		// Cancellation downgrades to Gate2's best guess; the heuristics
		// already ran and their verdict is still usable.
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			if !o.cfg.Pipeline.FailClosed {
				redact.Logf("pipeline: gate3 cancelled, using gate2 verdict: %v", err)
				if !gate2Result.IsSafe {
					o.stats.Gate2Blocks.Add(1)
				}
				return gate2Result
			}
		}
		o.stats.Errors.Add(1)
		o.tel.RecordObserverDuration(millis(time.Since(gateStart)), "error")
		return o.errorResult(GateObserver, safety.ModeOutput, err)
	}
	o.tel.RecordObserverDuration(millis(obs.Latency), outcomeLabel(obs.IsSafe))

	res := safety.ValidationResult{
		IsSafe:    obs.IsSafe,
		Layer:     safety.LayerSemantic,
		DecidedBy: GateObserver,
		RiskLevel: observerRisk(obs),
		Reasoning: obs.Reasoning,
		Mode:      safety.ModeOutput,
	}
	if !obs.IsSafe {
		o.stats.Gate3Blocks.Add(1)
		res.Violations = []string{observerViolation(obs)}
		res.GateFailed = true
		res.FailedGates = failedGates(gate2Result, GateObserver)
	}
	return res
}

// runDetectors queries every enabled detector, collecting above-threshold
// detections and the highest confidence seen. A detector error is logged
// and counted; the detector contributes nothing.
func (o *Orchestrator) runDetectors(ctx context.Context, text string, dctx *detector.Context) ([]safety.DetectionResult, float64) {
	var (
		detections []safety.DetectionResult
		maxConf    float64
	)
	for _, d := range o.registry.Enabled() {
		res, err := d.Detect(ctx, text, dctx)
		if err != nil {
			o.stats.DetectorErrors.Add(1)
			redact.Logf("pipeline: detector %s failed: %v", d.Name(), err)
			continue
		}
		if res.Confidence > maxConf {
			maxConf = res.Confidence
		}
		if res.Detected && res.Confidence >= d.Threshold() {
			o.tel.RecordDetectorHit(d.Name(), res.Category)
			detections = append(detections, res)
		}
	}
	return detections, maxConf
}

// checkSize rejects oversized input before any gate runs.
func (o *Orchestrator) checkSize(text string, mode safety.Mode) *safety.ValidationResult {
	max := o.cfg.Pipeline.MaxTextSize
	if max <= 0 || len(text) <= max {
		return nil
	}
	o.stats.Rejections.Add(1)
	return &safety.ValidationResult{
		IsSafe:     false,
		Layer:      safety.LayerError,
		Violations: []string{fmt.Sprintf("text size %d exceeds limit %d", len(text), max)},
		RiskLevel:  safety.RiskLow,
		Reasoning:  "oversized text rejected before validation",
		Mode:       mode,
	}
}

// errorResult applies the process-wide fail-open/fail-closed policy to a
// gate failure.
func (o *Orchestrator) errorResult(gate string, mode safety.Mode, err error) safety.ValidationResult {
	redact.Logf("pipeline: %s error: %v", gate, err)
	if o.cfg.Pipeline.FailClosed {
		return safety.ValidationResult{
			IsSafe:      false,
			Layer:       safety.LayerError,
			DecidedBy:   gate,
			Violations:  []string{fmt.Sprintf("%s failed: %v", gate, err)},
			RiskLevel:   safety.RiskHigh,
			Reasoning:   "gate error under fail-closed policy",
			Mode:        mode,
			GateFailed:  true,
			FailedGates: []string{gate},
		}
	}
	return safety.ValidationResult{
		IsSafe:    true,
		Layer:     safety.LayerError,
		DecidedBy: gate,
		RiskLevel: safety.RiskLow,
		Reasoning: fmt.Sprintf("gate error under fail-open policy: %v", err),
		Mode:      mode,
	}
}

func (o *Orchestrator) finish(ctx context.Context, res safety.ValidationResult, detections []safety.DetectionResult, input, output string, start time.Time) {
	elapsed := time.Since(start)
	o.tel.RecordValidation(decisionLabel(res.IsSafe), res.DecidedBy, string(res.Mode), millis(elapsed))
	if o.auditor != nil {
		level := o.cfg.Audit.Level
		ev := audit.BuildEvent(audit.BuildParams{
			Result:     res,
			Detections: detections,
			Input:      input,
			Output:     output,
			Level:      level,
			Latency:    elapsed,
		})
		o.auditor.Emit(ctx, ev)
	}
}

func enabled(b *bool) bool {
	return b == nil || *b
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func decisionLabel(safe bool) string {
	if safe {
		return "pass"
	}
	return "block"
}

func outcomeLabel(safe bool) string {
	if safe {
		return "safe"
	}
	return "unsafe"
}

func violationMessages(detections []safety.DetectionResult) []string {
	out := make([]string, 0, len(detections))
	for _, d := range detections {
		out = append(out, fmt.Sprintf("%s: %s (confidence %.2f)", d.Detector, d.Description, d.Confidence))
	}
	return out
}

func observerViolation(obs safety.ObservationResult) string {
	switch {
	case obs.InputMalicious && obs.AIComplied:
		return "observer: assistant complied with a malicious request"
	case obs.InputMalicious:
		return "observer: malicious request detected in transcript"
	default:
		return "observer: response judged inappropriate"
	}
}

func observerRisk(obs safety.ObservationResult) safety.RiskLevel {
	switch {
	case obs.IsSafe:
		return safety.RiskLow
	case obs.InputMalicious && obs.AIComplied:
		return safety.RiskCritical
	case obs.InputMalicious:
		return safety.RiskHigh
	default:
		return safety.RiskMedium
	}
}

func failedGates(gate2Result safety.ValidationResult, gate string) []string {
	if gate2Result.GateFailed {
		return append(append([]string{}, gate2Result.FailedGates...), gate)
	}
	return []string{gate}
}
