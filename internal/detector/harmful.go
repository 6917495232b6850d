package detector

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/vigil-ai/vigil/internal/config"
	"github.com/vigil-ai/vigil/internal/safety"
)

const (
	harmfulDetectorName    = "harmful_request"
	harmfulDetectorVersion = "1.0.0"

	// Each corroborating match past the most severe one adds this much.
	harmfulCorroboration = 0.05
)

type harmfulClass struct {
	name     string
	severity float64
	patterns []*regexp.Regexp
}

var harmfulClasses = []harmfulClass{
	{
		name:     "mass_casualty",
		severity: 1.0,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(bomb|explosive|chemical\s+weapon|nerve\s+agent|bioweapon|anthrax)\s+.{0,40}(school|crowd|stadium|airport|public|subway)`),
			regexp.MustCompile(`(?i)(maximi[sz]e|most)\s+(casualties|deaths|victims)`),
		},
	},
	{
		name:     "violence",
		severity: 0.9,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(how\s+to|best\s+way\s+to|help\s+me)\s+.{0,30}\b(kill|murder|poison|strangle|torture)\b`),
			regexp.MustCompile(`(?i)(get\s+away\s+with|cover\s+up)\s+(a\s+)?(murder|killing|assault)`),
		},
	},
	{
		name:     "weapons",
		severity: 0.85,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(build|make|assemble|3d.?print)\s+(a\s+)?(gun|firearm|pipe\s+bomb|explosive|silencer|untraceable\s+weapon)`),
			regexp.MustCompile(`(?i)(convert|modify)\s+.{0,30}(full.?auto|automatic\s+fire)`),
		},
	},
	{
		name:     "drugs",
		severity: 0.8,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(synthesi[sz]e|cook|manufacture|home\s+lab)\s+.{0,30}(meth|fentanyl|mdma|heroin|lsd)`),
			regexp.MustCompile(`(?i)(buy|sell|source)\s+.{0,30}(dark\s*web|without\s+(a\s+)?prescription)\s*.{0,30}(drugs|opioids|pills)`),
		},
	},
	{
		name:     "cybercrime",
		severity: 0.7,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(write|build|deploy)\s+.{0,30}(ransomware|keylogger|botnet|credential\s+stealer)`),
			regexp.MustCompile(`(?i)(hack|break)\s+into\s+.{0,40}(account|network|server|phone|email)`),
			regexp.MustCompile(`(?i)(phishing\s+(page|kit|campaign)|spoof\s+.{0,20}(login|bank)\s+page)`),
		},
	},
	{
		name:     "fraud",
		severity: 0.65,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(fake|forge|counterfeit)\s+(an?\s+)?(id|passport|diploma|prescription|invoice|signature)`),
			regexp.MustCompile(`(?i)(scam|defraud|swindle)\s+.{0,30}(people|elderly|customers|investors)`),
		},
	},
}

// HarmfulRequestDetector scores direct requests for real-world harm by the
// severity of the most serious class matched.
type HarmfulRequestDetector struct {
	cfg config.HarmfulConfig
}

func NewHarmfulRequestDetector(cfg config.HarmfulConfig) *HarmfulRequestDetector {
	return &HarmfulRequestDetector{cfg: cfg}
}

func (d *HarmfulRequestDetector) Name() string       { return harmfulDetectorName }
func (d *HarmfulRequestDetector) Version() string    { return harmfulDetectorVersion }
func (d *HarmfulRequestDetector) Enabled() bool      { return d.cfg.Enabled == nil || *d.cfg.Enabled }
func (d *HarmfulRequestDetector) Threshold() float64 { return d.cfg.Threshold }

func (d *HarmfulRequestDetector) Detect(_ context.Context, text string, _ *Context) (safety.DetectionResult, error) {
	var (
		top      *harmfulClass
		evidence string
		extra    int
	)
	for i := range harmfulClasses {
		cls := &harmfulClasses[i]
		for _, p := range cls.patterns {
			m := p.FindString(text)
			if m == "" {
				continue
			}
			if top == nil {
				top = cls
				evidence = m
			} else {
				extra++
			}
		}
	}

	if top == nil {
		return nothingDetected(harmfulDetectorName, harmfulDetectorVersion), nil
	}

	score := top.severity + harmfulCorroboration*float64(extra)
	if score > 1 {
		score = 1
	}

	return safety.DetectionResult{
		Detected:        score >= d.cfg.Threshold,
		Detector:        harmfulDetectorName,
		DetectorVersion: harmfulDetectorVersion,
		Confidence:      score,
		Category:        CategoryHarmfulRequest,
		Description:     fmt.Sprintf("harmful request class %s (severity %.2f)", top.name, top.severity),
		Evidence:        evidenceExcerpt(evidence),
		Metadata: map[string]string{
			"class":      top.name,
			"extra_hits": strconv.Itoa(extra),
		},
	}, nil
}
