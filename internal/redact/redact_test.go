package redact

import (
	"strings"
	"testing"
)

func TestStringRedaction(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		disallow []string
		require  []string
	}{
		{
			name:     "bearer header",
			input:    "Authorization: Bearer sk-secret-123",
			disallow: []string{"sk-secret-123"},
			require:  []string{"[REDACTED]"},
		},
		{
			name:     "api keys slice",
			input:    "api_keys=[proj-key-1 proj-key-2]",
			disallow: []string{"proj-key-1", "proj-key-2"},
			require:  []string{"api_keys=[REDACTED]"},
		},
		{
			name:     "api key field",
			input:    "api_key=sk-proj-abcdef012345",
			disallow: []string{"sk-proj-abcdef012345"},
			require:  []string{"api_key=[REDACTED]"},
		},
		{
			name:     "webhook url",
			input:    "webhook_url=https://example.com/hooks/audit.json?sig=abc123",
			disallow: []string{"audit.json?sig=abc123"},
			require:  []string{"https://example.com/audit.json"},
		},
		{
			name:     "mixed token",
			input:    "Bearer abc key=supersecret token=anotherone base_url=https://obs.example.test/v1/chat/",
			disallow: []string{"abc", "supersecret", "anotherone", "v1/chat/"},
			require:  []string{"[REDACTED]", "https://obs.example.test/[REDACTED_PATH]"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := String(tc.input)
			for _, bad := range tc.disallow {
				if bad != "" && contains(out, bad) {
					t.Fatalf("output still contains %q: %s", bad, out)
				}
			}
			for _, want := range tc.require {
				if want == "" {
					continue
				}
				if !contains(out, want) {
					t.Fatalf("output missing required substring %q: %s", want, out)
				}
			}
		})
	}
}

func contains(s, sub string) bool {
	return s != "" && sub != "" && strings.Contains(s, sub)
}
