package guard

import (
	"os"
	"path/filepath"
	"testing"
)

func writeVocab(t *testing.T, tokens []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.txt")
	var data []byte
	for _, tok := range tokens {
		data = append(data, tok...)
		data = append(data, '\n')
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}
	return path
}

func testTokenizer(t *testing.T) *wordPieceTokenizer {
	t.Helper()
	path := writeVocab(t, []string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]",
		"hello", "world", "un", "##break", "##able",
	})
	tok, err := loadWordPieceTokenizer(path)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}
	return tok
}

func TestEncodeKnownWords(t *testing.T) {
	tok := testTokenizer(t)

	ids, attn := tok.Encode("Hello world", 8)
	want := []int64{2, 4, 5, 3, 0, 0, 0, 0} // CLS hello world SEP PAD...
	if len(ids) != 8 {
		t.Fatalf("ids length = %d, want 8", len(ids))
	}
	for i, id := range ids {
		if id != want[i] {
			t.Fatalf("ids[%d] = %d, want %d (full: %v)", i, id, want[i], ids)
		}
	}

	wantAttn := []int64{1, 1, 1, 1, 0, 0, 0, 0}
	for i, a := range attn {
		if a != wantAttn[i] {
			t.Fatalf("attn[%d] = %d, want %d", i, a, wantAttn[i])
		}
	}
}

func TestEncodeSubwordSplit(t *testing.T) {
	tok := testTokenizer(t)

	ids, _ := tok.Encode("unbreakable", 8)
	// un ##break ##able
	want := []int64{2, 6, 7, 8, 3, 0, 0, 0}
	for i, id := range ids {
		if id != want[i] {
			t.Fatalf("ids[%d] = %d, want %d (full: %v)", i, id, want[i], ids)
		}
	}
}

func TestEncodeUnknownWord(t *testing.T) {
	tok := testTokenizer(t)

	ids, _ := tok.Encode("zzz", 5)
	if ids[1] != tok.unkID {
		t.Fatalf("expected [UNK] id %d at position 1, got %v", tok.unkID, ids)
	}
}

func TestEncodeTruncatesToSeqLen(t *testing.T) {
	tok := testTokenizer(t)

	ids, attn := tok.Encode("hello world hello world hello world hello world", 4)
	if len(ids) != 4 || len(attn) != 4 {
		t.Fatalf("lengths = %d/%d, want 4/4", len(ids), len(attn))
	}
	for i, a := range attn {
		if a != 1 {
			t.Fatalf("attn[%d] = %d, want 1 for full sequence", i, a)
		}
	}
}

func TestEncodeZeroSeqLen(t *testing.T) {
	tok := testTokenizer(t)

	ids, attn := tok.Encode("hello", 0)
	if ids != nil || attn != nil {
		t.Fatalf("expected nil slices for seqLen 0, got %v / %v", ids, attn)
	}
}

func TestBuildInputText(t *testing.T) {
	if got := buildInputText("", "hi"); got != "[USER]\nhi" {
		t.Fatalf("no context: %q", got)
	}
	got := buildInputText("prior turn", "hi")
	want := "[CONTEXT]\nprior turn\n[USER]\nhi"
	if got != want {
		t.Fatalf("with context: %q, want %q", got, want)
	}
}
