package segment_test

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/dozken/translate-ai-pdf/internal"
	"github.com/dozken/translate-ai-pdf/internal/segment"
)

func newSegmenter(t *testing.T) *segment.Segmenter {
	t.Helper()
	s, err := segment.New(segment.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// checkUnits asserts the invariants every Split result must hold.
func checkUnits(t *testing.T, text string, units []internal.Unit, cfg segment.Config) {
	t.Helper()
	var got []string
	for i, u := range units {
		if u.Index != i {
			t.Errorf("unit %d has index %d", i, u.Index)
		}
		if u.SourceText != strings.TrimSpace(u.SourceText) || u.SourceText == "" {
			t.Errorf("unit %d is empty or untrimmed: %q", i, u.SourceText)
		}
		if n := len([]rune(u.SourceText)); n != u.CharCount {
			t.Errorf("unit %d CharCount=%d, want %d", i, u.CharCount, n)
		}
		if u.CharCount > cfg.MaxParagraphSize && !u.Oversize {
			t.Errorf("unit %d is %d runes, over max without oversize flag", i, u.CharCount)
		}
		got = append(got, strings.Fields(u.SourceText)...)
	}
	if want := strings.Fields(text); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("units do not cover the input text")
	}
}

func verseText(minChars int, format string) string {
	var b strings.Builder
	for i := 1; b.Len() < minChars; i++ {
		fmt.Fprintf(&b, format+"\n", i)
	}
	return b.String()
}

func TestSplit_Empty(t *testing.T) {
	s := newSegmenter(t)
	for _, in := range []string{"", "   ", "\n\n\n", " \t\r\n "} {
		if units := s.Split(in, nil); len(units) != 0 {
			t.Errorf("Split(%q) = %d units, want 0", in, len(units))
		}
	}
}

func TestSplit_NumberedLinesAreNotShredded(t *testing.T) {
	// One verse per line, each starting with a number: a naive line splitter
	// turns this into hundreds of tiny units.
	text := verseText(60000, "%d. in the name of the lord of mercy and the giver of mercy we begin this line.")
	s := newSegmenter(t)
	units := s.Split(text, nil)
	checkUnits(t, text, units, s.Config())

	if len(units) >= 100 {
		t.Fatalf("got %d units, want fewer than 100", len(units))
	}
	total := 0
	for _, u := range units {
		total += u.CharCount
	}
	if mean := total / len(units); mean < 500 {
		t.Errorf("mean unit size %d, want at least 500", mean)
	}
}

func TestSplit_ArabicNumberedLines(t *testing.T) {
	text := verseText(20000, "%d. بِسْمِ اللَّهِ الرَّحْمَٰنِ الرَّحِيمِ الْحَمْدُ لِلَّهِ رَبِّ الْعَالَمِينَ.")
	text = strings.NewReplacer("0", "٠", "1", "١", "2", "٢", "3", "٣", "4", "٤", "5", "٥", "6", "٦", "7", "٧", "8", "٨", "9", "٩").Replace(text)
	s := newSegmenter(t)
	units := s.Split(text, nil)
	checkUnits(t, text, units, s.Config())

	for i, u := range units[:len(units)-1] {
		if u.CharCount < s.Config().MinLength {
			t.Errorf("unit %d is only %d runes", i, u.CharCount)
		}
	}
	if len(units) > 20 {
		t.Errorf("got %d units for ~20K runes of verse", len(units))
	}
}

func TestSplit_WellFormedParagraphs(t *testing.T) {
	para := func(n int) string {
		return fmt.Sprintf("Paragraph %d ", n) + strings.TrimSpace(strings.Repeat("with some text ", 8)) + "."
	}
	text := para(1) + "\n\n" + para(2) + "\n\n" + para(3)
	s := newSegmenter(t)
	units := s.Split(text, nil)
	checkUnits(t, text, units, s.Config())

	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	for i, u := range units {
		if u.SourceText != para(i+1) {
			t.Errorf("unit %d = %q", i, u.SourceText)
		}
		if u.Strategy != internal.StrategyExplicitBreak {
			t.Errorf("unit %d strategy %q", i, u.Strategy)
		}
	}
}

func TestSplit_NumberedParagraphsGrouped(t *testing.T) {
	var paras []string
	for i := 1; i <= 10; i++ {
		paras = append(paras, fmt.Sprintf("%d. %s", i, strings.TrimSpace(strings.Repeat("verse text ", 20))))
	}
	text := strings.Join(paras, "\n\n")
	s := newSegmenter(t)
	units := s.Split(text, nil)
	checkUnits(t, text, units, s.Config())

	// Ten ~220-rune verses fit into two units under the 2000 limit.
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if !strings.Contains(units[0].SourceText, "\n\n2. ") {
		t.Errorf("grouped verses should keep the paragraph separator: %q", units[0].SourceText[:300])
	}
}

func TestSplit_SentenceGrouping(t *testing.T) {
	sentence := "This sentence has some words in it and ends with a period like this one does."
	text := strings.TrimSpace(strings.Repeat(sentence+" ", 30))
	cfg := segment.DefaultConfig()
	s := newSegmenter(t)
	units := s.Split(text, nil)
	checkUnits(t, text, units, cfg)

	if len(units) < 2 {
		t.Fatalf("got %d units, want at least 2", len(units))
	}
	for i, u := range units {
		if u.Strategy != internal.StrategySentenceGrouped {
			t.Errorf("unit %d strategy %q", i, u.Strategy)
		}
		if !strings.HasSuffix(u.SourceText, ".") {
			t.Errorf("unit %d does not end on a sentence: %q", i, u.SourceText)
		}
		if i < len(units)-1 && u.CharCount < cfg.SubstantialThreshold {
			t.Errorf("unit %d is %d runes, below the substantial threshold", i, u.CharCount)
		}
	}
}

func TestSplit_LineStartAloneNeverCuts(t *testing.T) {
	// Capitalized lines without sentence ends: only the hard limit applies.
	line := "Alpha " + strings.TrimSpace(strings.Repeat("beta ", 10))
	text := strings.TrimSpace(strings.Repeat(line+"\n", 40))
	s := newSegmenter(t)
	units := s.Split(text, nil)
	checkUnits(t, text, units, s.Config())

	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if units[0].CharCount < 1900 {
		t.Errorf("first unit %d runes, want it filled close to the limit", units[0].CharCount)
	}
}

func TestSplit_LineStartWithSentenceEndCuts(t *testing.T) {
	line := "Alpha " + strings.TrimSpace(strings.Repeat("beta ", 10)) + "."
	text := strings.TrimSpace(strings.Repeat(line+"\n", 40))
	s := newSegmenter(t)
	units := s.Split(text, nil)
	checkUnits(t, text, units, s.Config())

	// Cuts happen as soon as 800 runes are reached: 15 + 15 + 10 lines.
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	if got := strings.Count(units[0].SourceText, "Alpha"); got != 15 {
		t.Errorf("first unit holds %d lines, want 15", got)
	}
}

func layoutDoc() (string, []internal.LayoutHint) {
	line := strings.TrimSpace(strings.Repeat("word ", 18))
	var (
		lines []string
		hints []internal.LayoutHint
		y     float64
	)
	for block := 0; block < 3; block++ {
		for i := 0; i < 10; i++ {
			lines = append(lines, line)
			hints = append(hints, internal.LayoutHint{Page: 1, X: 72, Y: y, Height: 12})
			y += 14
		}
		y += 30
	}
	return strings.Join(lines, "\n"), hints
}

func TestSplit_LayoutBlocks(t *testing.T) {
	text, hints := layoutDoc()
	s := newSegmenter(t)
	units := s.Split(text, hints)
	checkUnits(t, text, units, s.Config())

	if len(units) != 3 {
		t.Fatalf("got %d units, want one per visual block (3)", len(units))
	}
	for i, u := range units {
		if u.Strategy != internal.StrategyLayout {
			t.Errorf("unit %d strategy %q", i, u.Strategy)
		}
		if got := strings.Count(u.SourceText, "word"); got != 180 {
			t.Errorf("unit %d holds %d words, want 180", i, got)
		}
	}
}

func TestSplit_LayoutPageBreak(t *testing.T) {
	text, hints := layoutDoc()
	// Evenly spaced lines; only the page change separates the last block.
	for i := range hints {
		hints[i].Y = float64(i) * 14
		hints[i].Page = 1
		if i >= 20 {
			hints[i].Page = 2
		}
	}
	s := newSegmenter(t)
	units := s.Split(text, hints)
	checkUnits(t, text, units, s.Config())

	last := units[len(units)-1]
	if got := strings.Count(last.SourceText, "word"); got != 180 {
		t.Errorf("last unit holds %d words, want the 180 of page 2", got)
	}
}

func TestSplit_MismatchedHintsIgnored(t *testing.T) {
	text, hints := layoutDoc()
	s := newSegmenter(t)
	want := s.Split(text, nil)
	got := s.Split(text, hints[:5])
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mismatched hints changed the result")
	}
	for _, u := range got {
		if u.Strategy == internal.StrategyLayout {
			t.Errorf("layout strategy used without valid hints")
		}
	}
}

func TestSplit_WordFallback(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("abcd ", 1000))
	s := newSegmenter(t)
	units := s.Split(text, nil)
	checkUnits(t, text, units, s.Config())

	if len(units) != 4 {
		t.Fatalf("got %d units, want 4", len(units))
	}
	for i, u := range units {
		if u.Strategy != internal.StrategySizeFallback {
			t.Errorf("unit %d strategy %q", i, u.Strategy)
		}
		if u.CharCount > 1500 {
			t.Errorf("unit %d is %d runes, want at most 75%% of max", i, u.CharCount)
		}
	}
}

func TestSplit_OversizeToken(t *testing.T) {
	text := strings.Repeat("x", 2500)
	s := newSegmenter(t)
	units := s.Split(text, nil)
	checkUnits(t, text, units, s.Config())

	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if !units[0].Oversize || units[0].CharCount != 2500 {
		t.Errorf("got %+v, want a single oversize unit of 2500 runes", units[0])
	}
}

func TestSplit_SmallFragmentsMerged(t *testing.T) {
	body := strings.TrimSpace(strings.Repeat("the body of the chapter ", 20))
	s := newSegmenter(t)

	t.Run("heading forward", func(t *testing.T) {
		text := "Chapter One\n\n" + body
		units := s.Split(text, nil)
		checkUnits(t, text, units, s.Config())
		if len(units) != 1 || !strings.HasPrefix(units[0].SourceText, "Chapter One\n\n") {
			t.Fatalf("heading not merged forward: %+v", units)
		}
	})

	t.Run("tail backward", func(t *testing.T) {
		text := body + "\n\nThe end."
		units := s.Split(text, nil)
		checkUnits(t, text, units, s.Config())
		if len(units) != 1 || !strings.HasSuffix(units[0].SourceText, "\n\nThe end.") {
			t.Fatalf("tail not merged backward: %+v", units)
		}
	})

	t.Run("lone fragment", func(t *testing.T) {
		units := s.Split("Hi.", nil)
		if len(units) != 1 || !units[0].Undersize {
			t.Fatalf("want one undersize unit, got %+v", units)
		}
	})
}

func TestSplit_ShortVersesPacked(t *testing.T) {
	var b strings.Builder
	for i := 0; b.Len() < 60000; i++ {
		fmt.Fprintf(&b, "the wind over the river carries verse %d to the town\n\n", i)
	}
	text := b.String()
	s := newSegmenter(t)
	cfg := s.Config()
	units := s.Split(text, nil)
	checkUnits(t, text, units, cfg)

	if len(units) >= 100 {
		t.Fatalf("got %d units, want fewer than 100", len(units))
	}
	total := 0
	for i, u := range units {
		total += u.CharCount
		if u.CharCount > cfg.MaxParagraphSize {
			t.Errorf("unit %d is %d runes", i, u.CharCount)
		}
		if u.Undersize {
			t.Errorf("unit %d is undersize", i)
		}
	}
	if mean := total / len(units); mean < 500 {
		t.Errorf("mean unit size %d, want at least 500", mean)
	}
}

func TestSplit_NoUnitOverMax(t *testing.T) {
	var parts []string
	for i := 0; i < 12; i++ {
		switch i % 3 {
		case 0:
			parts = append(parts, strings.Repeat("Short one. ", i+1))
		case 1:
			parts = append(parts, verseText(3000, "%d) a numbered line of moderate length without a full stop"))
		default:
			parts = append(parts, strings.Repeat("longwordwithoutspaces", 40))
		}
	}
	text := strings.Join(parts, "\n\n")
	s := newSegmenter(t)
	units := s.Split(text, nil)
	checkUnits(t, text, units, s.Config())
}

func TestSplit_Deterministic(t *testing.T) {
	text := verseText(10000, "%d. some verse text, then a question? and an answer!")
	s := newSegmenter(t)
	first := s.Split(text, nil)
	for i := 0; i < 3; i++ {
		if got := s.Split(text, nil); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestSplit_SmallerConfig(t *testing.T) {
	cfg := segment.Config{
		MinLength:            10,
		TargetSize:           50,
		MaxParagraphSize:     80,
		SubstantialThreshold: 40,
		FallbackFill:         0.5,
		AlertThreshold:       0.3,
	}
	s, err := segment.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text := strings.Repeat("A sentence of eleven words that keeps going on and on. ", 10)
	units := s.Split(text, nil)
	checkUnits(t, text, units, cfg)
	if len(units) < 5 {
		t.Errorf("got %d units, want at least 5 with an 80-rune limit", len(units))
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*segment.Config)
	}{
		{"zero min", func(c *segment.Config) { c.MinLength = 0 }},
		{"min over target", func(c *segment.Config) { c.MinLength = 1500 }},
		{"target over max", func(c *segment.Config) { c.TargetSize = 2500 }},
		{"substantial over max", func(c *segment.Config) { c.SubstantialThreshold = 2500 }},
		{"zero fill", func(c *segment.Config) { c.FallbackFill = 0 }},
		{"fill over one", func(c *segment.Config) { c.FallbackFill = 1.5 }},
		{"negative alert", func(c *segment.Config) { c.AlertThreshold = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := segment.DefaultConfig()
			tt.mutate(&cfg)
			if _, err := segment.New(cfg); !errors.Is(err, segment.ErrConfig) {
				t.Errorf("New: got %v, want ErrConfig", err)
			}
		})
	}
}

func TestConfig_Hash(t *testing.T) {
	a := segment.DefaultConfig()
	b := segment.DefaultConfig()
	if a.Hash() != b.Hash() {
		t.Fatal("equal configs hash differently")
	}
	b.TargetSize = 1200
	if a.Hash() == b.Hash() {
		t.Error("different configs hash the same")
	}
}
