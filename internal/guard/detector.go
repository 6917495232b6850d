package guard

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vigil-ai/vigil/internal/config"
	"github.com/vigil-ai/vigil/internal/detector"
	"github.com/vigil-ai/vigil/internal/safety"
)

const (
	detectorName    = "guard"
	detectorVersion = "1.0.0"
)

// Detector exposes the ONNX classifier through the detector contract so the
// screening gates can query it alongside the heuristic detectors.
type Detector struct {
	model     *Model
	threshold float64
}

// NewDetector loads the model bundle named by cfg and wires it up as a
// detector. The threshold is the screening cutoff applied to the top score
// when no per-label block threshold fires.
func NewDetector(cfg config.GuardConfig, threshold float64) (*Detector, error) {
	model, err := LoadModel(cfg.BundleDir, cfg.SeqLen)
	if err != nil {
		return nil, fmt.Errorf("load guard bundle: %w", err)
	}
	return &Detector{model: model, threshold: threshold}, nil
}

func (d *Detector) Name() string       { return detectorName }
func (d *Detector) Version() string    { return detectorVersion }
func (d *Detector) Enabled() bool      { return d.model != nil }
func (d *Detector) Threshold() float64 { return d.threshold }

// Detect scores the text and reports the top label. A firing block
// threshold always detects; otherwise the top sigmoid score is compared
// against the screening cutoff.
func (d *Detector) Detect(_ context.Context, text string, dctx *detector.Context) (safety.DetectionResult, error) {
	var contextText string
	if dctx != nil {
		contextText = dctx.Input
	}

	res, err := d.model.Evaluate(contextText, text)
	if err != nil {
		return safety.DetectionResult{}, fmt.Errorf("guard evaluate: %w", err)
	}

	topLabel, topScore := topScore(res.Scores)
	blocked := false
	for _, f := range res.Flags {
		if strings.HasSuffix(f, "_high") {
			blocked = true
			break
		}
	}

	conf := float64(topScore)
	out := safety.DetectionResult{
		Detected:        blocked || conf >= d.threshold,
		Detector:        detectorName,
		DetectorVersion: detectorVersion,
		Confidence:      conf,
		Category:        topLabel,
		Metadata: map[string]string{
			"flags": strings.Join(res.Flags, ","),
		},
	}
	if out.Detected {
		out.Description = fmt.Sprintf("classifier flagged %s at %.2f", topLabel, conf)
	}
	return out, nil
}

// topScore returns the highest-scoring label, breaking ties by name so the
// result is stable across runs.
func topScore(scores map[string]float32) (string, float32) {
	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var bestLabel string
	var best float32
	for _, l := range labels {
		if s := scores[l]; s > best {
			best = s
			bestLabel = l
		}
	}
	return bestLabel, best
}
