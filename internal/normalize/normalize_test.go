package normalize_test

import (
	"testing"

	"github.com/dozken/translate-ai-pdf/internal/normalize"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"collapse spaces", "a  \t b", "a b"},
		{"nbsp", "a\u00a0\u00a0b", "a b"},
		{"trailing per line", "line one   \nline two\t\n", "line one\nline two"},
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"three newlines", "a\n\n\nb", "a\n\nb"},
		{"many newlines", "a\n\n\n\n\n\nb", "a\n\nb"},
		{"whitespace-only lines", "a\n  \n \t \n\nb", "a\n\nb"},
		{"double newline kept", "a\n\nb", "a\n\nb"},
		{"leading blank lines", "\n\n\nfirst", "first"},
		{"arabic untouched", "بِسْمِ  اللَّهِ\n\n\n\nالرَّحْمَٰنِ", "بِسْمِ اللَّهِ\n\nالرَّحْمَٰنِ"},
		{"cyrillic untouched", "Во имя   Аллаха", "Во имя Аллаха"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize.Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	in := "  first\t line  \r\n\r\n\r\n\r\nsecond   line \n"
	once := normalize.Text(in)
	if twice := normalize.Text(once); twice != once {
		t.Errorf("not idempotent: %q then %q", once, twice)
	}
}

func TestText_KeepsCase(t *testing.T) {
	in := "ABC def Ǆ ﻻ"
	if got := normalize.Text(in); got != in {
		t.Errorf("content changed: %q", got)
	}
}
