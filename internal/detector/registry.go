package detector

import (
	"fmt"

	"github.com/vigil-ai/vigil/internal/config"
)

// NewDefaultRegistry builds the standard heuristic detector set in the
// order verdicts should report them.
func NewDefaultRegistry(cfg config.DetectorsConfig) (*Registry, error) {
	r := NewRegistry()
	for _, d := range []Detector{
		NewPatternDetector(cfg.Pattern),
		NewFramingDetector(cfg.Framing),
		NewEscalationDetector(cfg.Escalation),
		NewHarmfulRequestDetector(cfg.Harmful),
	} {
		if err := r.Register(d); err != nil {
			return nil, fmt.Errorf("build detector registry: %w", err)
		}
	}
	return r, nil
}
