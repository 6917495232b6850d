package detector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vigil-ai/vigil/internal/config"
	"github.com/vigil-ai/vigil/internal/safety"
)

const (
	patternDetectorName    = "pattern"
	patternDetectorVersion = "1.2.0"
)

// PatternDetector runs the signature tables against text in two passes:
// first attack signatures, then benign-context patterns that discount the
// raw score. Malicious-override indicators cancel the discount.
type PatternDetector struct {
	cfg config.PatternConfig
}

func NewPatternDetector(cfg config.PatternConfig) *PatternDetector {
	return &PatternDetector{cfg: cfg}
}

func (d *PatternDetector) Name() string       { return patternDetectorName }
func (d *PatternDetector) Version() string    { return patternDetectorVersion }
func (d *PatternDetector) Enabled() bool      { return d.cfg.Enabled == nil || *d.cfg.Enabled }
func (d *PatternDetector) Threshold() float64 { return d.cfg.Threshold }

// signatureHit is one attack-signature match from the first pass.
type signatureHit struct {
	category  string
	signature string
	matched   string
}

func (d *PatternDetector) Detect(_ context.Context, text string, _ *Context) (safety.DetectionResult, error) {
	hits := matchSignatures(text)
	if len(hits) == 0 {
		return nothingDetected(patternDetectorName, patternDetectorVersion), nil
	}

	// Confidence starts at the base and grows per corroborating hit.
	raw := d.cfg.BaseConfidence + d.cfg.CorroborationStep*float64(len(hits)-1)
	if raw > d.cfg.MaxConfidence {
		raw = d.cfg.MaxConfidence
	}

	benign := matchBenign(text)
	overrides := matchOverrides(text)

	conf := raw
	suppressed := false
	if len(benign) > 0 && len(overrides) == 0 {
		factor := d.reduction(text, benign)
		conf = raw * factor
		for i := range benign {
			benign[i].Reduction = factor
		}
		suppressed = true
	}

	primary := hits[0]
	meta := map[string]string{
		"signature":   primary.signature,
		"match_count": strconv.Itoa(len(hits)),
	}
	if suppressed {
		meta["benign_context"] = benignCategories(benign)
	}
	if len(overrides) > 0 {
		meta["override"] = strings.Join(overrides, ",")
	}

	res := safety.DetectionResult{
		Detected:        conf >= d.cfg.Threshold,
		Detector:        patternDetectorName,
		DetectorVersion: patternDetectorVersion,
		Confidence:      conf,
		Category:        primary.category,
		Description:     fmt.Sprintf("matched %d attack signature(s), primary %s/%s", len(hits), primary.category, primary.signature),
		Evidence:        evidenceExcerpt(primary.matched),
		Metadata:        meta,
	}
	if suppressed {
		res.Benign = benign
	}
	return res, nil
}

// reduction computes the benign risk multiplier for this text.
func (d *PatternDetector) reduction(text string, benign []safety.BenignMatch) float64 {
	r := d.cfg.BenignReduction
	if questionFraming.MatchString(text) {
		r *= d.cfg.QuestionFactor
	}
	if distinctBenignCategories(benign) >= 2 {
		r *= d.cfg.StackedFactor
	}
	return r
}

// matchSignatures walks the category tables in priority order and returns
// every hit. The first hit is from the highest-priority matching category.
func matchSignatures(text string) []signatureHit {
	var hits []signatureHit
	for _, group := range attackSignatures {
		for _, sig := range group.signatures {
			if m := sig.pattern.FindString(text); m != "" {
				hits = append(hits, signatureHit{
					category:  group.category,
					signature: sig.name,
					matched:   m,
				})
			}
		}
	}
	return hits
}

func matchBenign(text string) []safety.BenignMatch {
	var out []safety.BenignMatch
	for _, bp := range benignPatterns {
		if m := bp.pattern.FindString(text); m != "" {
			out = append(out, safety.BenignMatch{
				Pattern:  bp.name,
				Matched:  m,
				Category: bp.category,
			})
		}
	}
	return out
}

func matchOverrides(text string) []string {
	var names []string
	for _, ov := range overrideIndicators {
		if ov.pattern.MatchString(text) {
			names = append(names, ov.name)
		}
	}
	return names
}

func distinctBenignCategories(matches []safety.BenignMatch) int {
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		seen[m.Category] = struct{}{}
	}
	return len(seen)
}

func benignCategories(matches []safety.BenignMatch) string {
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, dup := seen[m.Category]; dup {
			continue
		}
		seen[m.Category] = struct{}{}
		out = append(out, m.Category)
	}
	return strings.Join(out, ",")
}
