package observer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceRegexNonGreedy = regexp.MustCompile(`(?s)(?:~~~|` + "```" + `)\s*(?:json)?\s*(.*?)\s*(?:~~~|` + "```" + `)`)
	fenceRegexGreedy    = regexp.MustCompile(`(?s)(?:~~~|` + "```" + `)\s*(?:json)?\s*(.*)\s*(?:~~~|` + "```" + `)`)
)

// verdict is the strict JSON contract the observer must reply with.
type verdict struct {
	InputMalicious bool   `json:"input_malicious"`
	AIComplied     bool   `json:"ai_complied"`
	IsSafe         bool   `json:"is_safe"`
	Reasoning      string `json:"reasoning"`
}

// parseVerdict decodes the observer's reply, stripping any code-fence
// wrapper first. A reply that cannot be decoded is an error; callers must
// treat that as unsafe, since an unreadable safety verdict cannot be
// trusted.
func parseVerdict(content string) (verdict, error) {
	clean := stripFences(content)
	var v verdict
	if err := json.Unmarshal([]byte(clean), &v); err != nil {
		return verdict{}, fmt.Errorf("parse observer verdict: %w", err)
	}
	return v, nil
}

// stripFences unwraps markdown code fences and falls back to the outermost
// JSON object when the reply carries prose around it.
func stripFences(content string) string {
	content = strings.TrimSpace(content)

	if m := fenceRegexNonGreedy.FindStringSubmatch(content); len(m) > 1 {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return candidate
		}
	}
	if m := fenceRegexGreedy.FindStringSubmatch(content); len(m) > 1 {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return candidate
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end > start {
		return content[start : end+1]
	}
	return content
}
