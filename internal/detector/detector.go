package detector

import (
	"context"
	"fmt"

	"github.com/vigil-ai/vigil/internal/safety"
)

// Context carries what a detector may look at besides the text itself.
// Detectors are stateless per call; anything conversational comes in here.
type Context struct {
	// Input is the original user request when the text under inspection is a
	// model response.
	Input string

	// Turns holds recent prior user turns, oldest first.
	Turns []string

	Mode safety.Mode
}

// Detector is a named, versioned unit of detection logic. Implementations
// must be safe for concurrent use and must not retain state between calls.
type Detector interface {
	Name() string
	Version() string
	Enabled() bool
	Threshold() float64
	Detect(ctx context.Context, text string, dctx *Context) (safety.DetectionResult, error)
}

// Registry is an ordered collection of detectors. Order is registration
// order; every enabled detector is queried independently.
type Registry struct {
	detectors []Detector
	byName    map[string]Detector
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Detector)}
}

// Register appends a detector. Registering the same name twice is a
// programmer error.
func (r *Registry) Register(d Detector) error {
	if d == nil {
		return fmt.Errorf("register nil detector")
	}
	if _, exists := r.byName[d.Name()]; exists {
		return fmt.Errorf("detector %q already registered", d.Name())
	}
	r.byName[d.Name()] = d
	r.detectors = append(r.detectors, d)
	return nil
}

// Enabled returns the enabled detectors in registration order.
func (r *Registry) Enabled() []Detector {
	out := make([]Detector, 0, len(r.detectors))
	for _, d := range r.detectors {
		if d.Enabled() {
			out = append(out, d)
		}
	}
	return out
}

// Get looks a detector up by name.
func (r *Registry) Get(name string) (Detector, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Len reports how many detectors are registered, enabled or not.
func (r *Registry) Len() int {
	return len(r.detectors)
}

// nothingDetected is the shared empty result for a detector pass-through.
func nothingDetected(name, version string) safety.DetectionResult {
	return safety.DetectionResult{
		Detected:        false,
		Detector:        name,
		DetectorVersion: version,
		Confidence:      0,
	}
}

// evidenceExcerpt trims matched text to a short excerpt for results.
func evidenceExcerpt(s string) string {
	const maxEvidence = 120
	if len(s) <= maxEvidence {
		return s
	}
	return s[:maxEvidence]
}
