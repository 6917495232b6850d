package observer

import "testing"

func TestParseVerdictPlainJSON(t *testing.T) {
	v, err := parseVerdict(`{"input_malicious": true, "ai_complied": false, "is_safe": true, "reasoning": "assistant refused"}`)
	if err != nil {
		t.Fatalf("parseVerdict: %v", err)
	}
	if !v.InputMalicious || v.AIComplied || !v.IsSafe {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if v.Reasoning != "assistant refused" {
		t.Fatalf("reasoning = %q", v.Reasoning)
	}
}

func TestParseVerdictFencedMatchesUnfenced(t *testing.T) {
	plain := `{"input_malicious": false, "ai_complied": true, "is_safe": true, "reasoning": "benign exchange"}`
	fenced := "```json\n" + plain + "\n```"

	vPlain, err := parseVerdict(plain)
	if err != nil {
		t.Fatalf("plain: %v", err)
	}
	vFenced, err := parseVerdict(fenced)
	if err != nil {
		t.Fatalf("fenced: %v", err)
	}
	if vPlain != vFenced {
		t.Fatalf("fenced verdict %+v differs from plain %+v", vFenced, vPlain)
	}
}

func TestParseVerdictTildeFence(t *testing.T) {
	v, err := parseVerdict("~~~\n{\"input_malicious\": true, \"ai_complied\": true, \"is_safe\": false, \"reasoning\": \"complied with jailbreak\"}\n~~~")
	if err != nil {
		t.Fatalf("parseVerdict: %v", err)
	}
	if v.IsSafe || !v.AIComplied {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

func TestParseVerdictProseAroundObject(t *testing.T) {
	v, err := parseVerdict(`Here is my assessment: {"input_malicious": false, "ai_complied": true, "is_safe": true, "reasoning": "ok"} Let me know if you need more.`)
	if err != nil {
		t.Fatalf("parseVerdict: %v", err)
	}
	if !v.IsSafe {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

func TestParseVerdictGarbageFails(t *testing.T) {
	if _, err := parseVerdict("I cannot evaluate this transcript."); err == nil {
		t.Fatal("expected parse error for non-JSON reply")
	}
	if _, err := parseVerdict(""); err == nil {
		t.Fatal("expected parse error for empty reply")
	}
}
