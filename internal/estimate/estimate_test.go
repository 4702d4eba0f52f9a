package estimate

import (
	"strings"
	"testing"
)

func TestChars_CountsRunes(t *testing.T) {
	c := NewChars("deepl")
	if got := c.Count("بسم الله"); got != 8 {
		t.Errorf("Count = %d, want 8", got)
	}
	if c.Unit() != "characters" || !c.Exact() {
		t.Error("unexpected unit metadata")
	}
}

func TestOutputFor(t *testing.T) {
	tests := []struct {
		in    int
		ratio float64
		want  int
	}{
		{100, 1.3, 130},
		{10, 1.5, 15},
		{7, 0, 9}, // default ratio, truncated
		{0, 1.3, 0},
	}
	for _, tt := range tests {
		if got := OutputFor(tt.in, tt.ratio); got != tt.want {
			t.Errorf("OutputFor(%d, %v) = %d, want %d", tt.in, tt.ratio, got, tt.want)
		}
	}
}

type wordCounter struct{}

func (wordCounter) Name() string          { return "words" }
func (wordCounter) Unit() string          { return "tokens" }
func (wordCounter) Exact() bool           { return false }
func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestRun(t *testing.T) {
	got := Run("one two three four", 1.5, wordCounter{}, NewChars("deepl"))
	if len(got) != 2 {
		t.Fatalf("expected 2 estimates, got %d", len(got))
	}
	if got[0].Provider != "words" || got[0].Input != 4 || got[0].Output != 6 {
		t.Errorf("unexpected estimate %+v", got[0])
	}
	if got[1].Unit != "characters" || got[1].Input != 18 {
		t.Errorf("unexpected estimate %+v", got[1])
	}
}

func TestTokenizer(t *testing.T) {
	tok, err := NewApproximate("anthropic", "claude")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	n := tok.Count("Hello, world")
	if n <= 0 || n > 5 {
		t.Errorf("unexpected token count %d", n)
	}
	if tok.Exact() {
		t.Error("approximate tokenizer reported exact")
	}

	arabic := tok.Count(strings.Repeat("الحمد لله رب العالمين ", 20))
	if arabic <= 20 {
		t.Errorf("Arabic text should need more tokens than words, got %d", arabic)
	}
}
