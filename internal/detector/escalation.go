package detector

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vigil-ai/vigil/internal/config"
	"github.com/vigil-ai/vigil/internal/safety"
)

const (
	escalationDetectorName    = "escalation"
	escalationDetectorVersion = "1.0.0"
)

// Multi-turn attack phases, in the order a staged attack runs them.
const (
	phaseTrustBuilding   = "trust_building"
	phaseBoundaryTesting = "boundary_testing"
	phasePayload         = "payload"
)

type escalationPhase struct {
	name     string
	weight   float64
	patterns []*regexp.Regexp
}

var escalationPhases = []escalationPhase{
	{
		name:   phaseTrustBuilding,
		weight: 0.2,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(you'?re\s+(so\s+)?(helpful|smart|amazing|the\s+best)|i\s+(really\s+)?trust\s+you|we'?re\s+(friends|a\s+team))`),
			regexp.MustCompile(`(?i)(unlike\s+other\s+(ais?|assistants|models)|you'?re\s+different\s+from)`),
			regexp.MustCompile(`(?i)(just\s+between\s+us|this\s+stays\s+between|our\s+little\s+secret)`),
		},
	},
	{
		name:   phaseBoundaryTesting,
		weight: 0.3,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(what\s+(are\s+you|aren'?t\s+you)\s+(not\s+)?allowed|what\s+are\s+your\s+(limits|restrictions|rules))`),
			regexp.MustCompile(`(?i)(would\s+you\s+ever|is\s+there\s+any\s+way\s+you\s+(could|would)|what\s+would\s+it\s+take\s+for\s+you\s+to)`),
			regexp.MustCompile(`(?i)(that\s+was\s+close|almost\s+had\s+it|you\s+said\s+(more|part\s+of\s+it)\s+last\s+time)`),
			regexp.MustCompile(`(?i)(hypothetically\s+speaking|asking\s+for\s+a\s+friend|purely\s+theoretical)`),
		},
	},
	{
		name:   phasePayload,
		weight: 0.4,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(now\s+(that\s+we|you)\s+(understand|trust|know)|as\s+we\s+(discussed|agreed|established)).{0,40}?\b(tell|show|give|explain)\b`),
			regexp.MustCompile(`(?i)(so\s+)?(anyway|finally|now)\s*,?\s*(tell|show|give)\s+me\s+(how\s+to|the\s+(real|actual|full))`),
			regexp.MustCompile(`(?i)(drop\s+the\s+act|stop\s+pretending|no\s+more\s+games)\s*,?.{0,40}(tell|show|give)`),
			regexp.MustCompile(`(?i)(like\s+you\s+promised|you\s+agreed\s+(to|that))\s*,?\s*(tell|show|give|do)`),
		},
	},
}

// EscalationDetector looks for staged escalation across recent turns plus
// the current input. Phases appearing in attack order earn a cumulative
// bonus over the same phases scattered randomly.
type EscalationDetector struct {
	cfg config.EscalationConfig
}

func NewEscalationDetector(cfg config.EscalationConfig) *EscalationDetector {
	return &EscalationDetector{cfg: cfg}
}

func (d *EscalationDetector) Name() string       { return escalationDetectorName }
func (d *EscalationDetector) Version() string    { return escalationDetectorVersion }
func (d *EscalationDetector) Enabled() bool      { return d.cfg.Enabled == nil || *d.cfg.Enabled }
func (d *EscalationDetector) Threshold() float64 { return d.cfg.Threshold }

func (d *EscalationDetector) Detect(_ context.Context, text string, dctx *Context) (safety.DetectionResult, error) {
	turns := []string{text}
	if dctx != nil && len(dctx.Turns) > 0 {
		turns = append(append([]string{}, dctx.Turns...), text)
	}

	// firstSeen[i] is the earliest turn index where phase i fired, or -1.
	firstSeen := make([]int, len(escalationPhases))
	for i := range firstSeen {
		firstSeen[i] = -1
	}
	var (
		score    float64
		matched  []string
		evidence string
	)
	for pi, phase := range escalationPhases {
		for ti, turn := range turns {
			if m := matchPhase(phase, turn); m != "" {
				firstSeen[pi] = ti
				score += phase.weight
				matched = append(matched, phase.name)
				if evidence == "" || phase.name == phasePayload {
					evidence = m
				}
				break
			}
		}
	}

	if len(matched) == 0 {
		return nothingDetected(escalationDetectorName, escalationDetectorVersion), nil
	}

	// Bonus per adjacent phase pair observed in attack order.
	ordered := 0
	for i := 0; i+1 < len(firstSeen); i++ {
		if firstSeen[i] >= 0 && firstSeen[i+1] >= 0 && firstSeen[i] < firstSeen[i+1] {
			ordered++
		}
	}
	score += d.cfg.OrderedBonus * float64(ordered)
	if score > 1 {
		score = 1
	}

	return safety.DetectionResult{
		Detected:        score >= d.cfg.Threshold,
		Detector:        escalationDetectorName,
		DetectorVersion: escalationDetectorVersion,
		Confidence:      score,
		Category:        CategoryManipulation,
		Description:     fmt.Sprintf("escalation phases present: %s", strings.Join(matched, ", ")),
		Evidence:        evidenceExcerpt(evidence),
		Metadata: map[string]string{
			"phases":        strings.Join(matched, ","),
			"ordered_pairs": fmt.Sprintf("%d", ordered),
		},
	}, nil
}

func matchPhase(phase escalationPhase, turn string) string {
	for _, p := range phase.patterns {
		if m := p.FindString(turn); m != "" {
			return m
		}
	}
	return ""
}
