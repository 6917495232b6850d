package detector

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vigil-ai/vigil/internal/config"
	"github.com/vigil-ai/vigil/internal/safety"
)

const (
	framingDetectorName    = "framing"
	framingDetectorVersion = "1.1.0"

	// Credit subtracted per known-legitimate phrase, up to the config cap.
	legitimatePhraseCredit = 0.2
)

// Framing technique weights. Multi-technique prompts score higher than any
// single technique alone.
const (
	weightCritical = 1.0
	weightHigh     = 0.7
	weightMedium   = 0.5
	weightLow      = 0.3
)

type framingCategory struct {
	name     string
	weight   float64
	patterns []*regexp.Regexp
}

var framingCategories = []framingCategory{
	{
		name:   "explicit_jailbreak",
		weight: weightCritical,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(jailbreak|jail\s*break)\b`),
			regexp.MustCompile(`(?i)(pretend|imagine|act\s+as\s+if)\s+you\s+(have|had)\s+no\s+(rules|restrictions|guidelines|filters)`),
			regexp.MustCompile(`(?i)(your|all)\s+(safety\s+)?(guidelines|restrictions|filters)\s+(are|have\s+been)\s+(disabled|removed|lifted|suspended)`),
		},
	},
	{
		name:   "mode_claim",
		weight: weightHigh,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(dan|developer|debug|god|evil|opposite)\s+mode\b`),
			regexp.MustCompile(`(?i)you\s+are\s+now\s+(in\s+)?\w+\s+mode`),
			regexp.MustCompile(`(?i)enable\s+(hidden|secret|unrestricted|advanced)\s+(mode|capabilities|features)`),
		},
	},
	{
		name:   "roleplay",
		weight: weightMedium,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(let'?s\s+(role.?play|pretend)|role.?play\s+as|you\s+(are|will\s+be|must\s+play)\s+(now\s+)?(a|an|my)\s+)`),
			regexp.MustCompile(`(?i)(stay|remain|keep)\s+in\s+character\s+(no\s+matter|at\s+all|regardless)`),
			regexp.MustCompile(`(?i)from\s+now\s+on\s+you\s+(are|act\s+as|speak\s+as)`),
		},
	},
	{
		name:   "fiction",
		weight: weightLow,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(write|tell|create)\s+a\s+(story|fiction|tale|scene)\s+(where|in\s+which|about)\s+.{0,60}(no\s+rules|anything\s+goes|forbidden|illegal)`),
			regexp.MustCompile(`(?i)in\s+(a|this)\s+(fictional|hypothetical|imaginary)\s+(world|universe|scenario)\s+(where|without)`),
		},
	},
	{
		name:   "educational_pretext",
		weight: weightMedium,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(for|purely\s+for)\s+(educational|academic|research)\s+purposes\s+(only\s+)?,?\s*(tell|show|explain|give)`),
			regexp.MustCompile(`(?i)(hypothetically|theoretically)\s*,?\s+(how\s+would|what\s+if|could)\s+.{0,60}(illegal|weapon|hack|steal|harm)`),
			regexp.MustCompile(`(?i)i'?m\s+a\s+(security\s+)?researcher\s*,?\s*so\s+(you\s+can|it'?s\s+(ok|fine|safe))`),
		},
	},
	{
		name:   "authority_urgency",
		weight: weightMedium,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(as\s+your\s+(creator|developer|administrator)|i\s+(own|built|programmed)\s+you)`),
			regexp.MustCompile(`(?i)(answer\s+(now|immediately)|no\s+time\s+to\s+(explain|refuse)|emergency\s+override)`),
			regexp.MustCompile(`(?i)(people\s+will\s+(die|be\s+hurt)|someone'?s\s+life\s+depends)\s+.{0,40}(unless|if\s+you\s+(don'?t|refuse))`),
		},
	},
}

// FramingDetector scores roleplay/persona jailbreak framing. Repeated hits
// in one category add diminishing increments; distinct categories stack.
type FramingDetector struct {
	cfg config.FramingConfig
}

func NewFramingDetector(cfg config.FramingConfig) *FramingDetector {
	return &FramingDetector{cfg: cfg}
}

func (d *FramingDetector) Name() string       { return framingDetectorName }
func (d *FramingDetector) Version() string    { return framingDetectorVersion }
func (d *FramingDetector) Enabled() bool      { return d.cfg.Enabled == nil || *d.cfg.Enabled }
func (d *FramingDetector) Threshold() float64 { return d.cfg.Threshold }

func (d *FramingDetector) Detect(_ context.Context, text string, _ *Context) (safety.DetectionResult, error) {
	var (
		score      float64
		matchedCat []string
		evidence   string
		topWeight  float64
		primary    string
	)

	for _, cat := range framingCategories {
		increment := cat.weight
		hits := 0
		for _, p := range cat.patterns {
			m := p.FindString(text)
			if m == "" {
				continue
			}
			score += increment
			increment /= 2
			hits++
			if cat.weight > topWeight {
				topWeight = cat.weight
				primary = cat.name
				evidence = m
			}
		}
		if hits > 0 {
			matchedCat = append(matchedCat, cat.name)
		}
	}

	if len(matchedCat) == 0 {
		return nothingDetected(framingDetectorName, framingDetectorVersion), nil
	}

	if extra := len(matchedCat) - 1; extra > 0 {
		bonus := d.cfg.MultiCategoryBonus * float64(extra)
		if bonus > d.cfg.MaxBonus {
			bonus = d.cfg.MaxBonus
		}
		score += bonus
	}

	lower := strings.ToLower(text)
	var credit float64
	for _, phrase := range d.cfg.LegitimatePhrases {
		if strings.Contains(lower, phrase) {
			credit += legitimatePhraseCredit
		}
	}
	if credit > d.cfg.MaxLegitimateCredit {
		credit = d.cfg.MaxLegitimateCredit
	}
	score -= credit

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return safety.DetectionResult{
		Detected:        score >= d.cfg.Threshold,
		Detector:        framingDetectorName,
		DetectorVersion: framingDetectorVersion,
		Confidence:      score,
		Category:        CategoryJailbreak,
		Description:     fmt.Sprintf("framing techniques: %s", strings.Join(matchedCat, ", ")),
		Evidence:        evidenceExcerpt(evidence),
		Metadata: map[string]string{
			"primary_technique": primary,
			"categories":        strings.Join(matchedCat, ","),
			"legit_credit":      strconv.FormatFloat(credit, 'f', 2, 64),
		},
	}, nil
}
