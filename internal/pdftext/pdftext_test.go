package pdftext

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuild(t *testing.T) {
	pages := [][]Line{
		{
			{Text: "بسم   الله", X: 500, Y: 700, FontSize: 12},
			{Text: "   ", X: 500, Y: 686, FontSize: 12},
			{Text: "الرحمن الرحيم", X: 480, Y: 672},
		},
		nil,
		{
			{Text: "1. قال", X: 400, Y: 700, FontSize: 10},
		},
	}

	doc := Build(pages)

	want := "بسم الله\nالرحمن الرحيم\n\n1. قال"
	if doc.Text != want {
		t.Errorf("Text = %q, want %q", doc.Text, want)
	}
	if doc.Pages != 3 {
		t.Errorf("Pages = %d, want 3", doc.Pages)
	}

	nonEmpty := 0
	for _, line := range strings.Split(doc.Text, "\n") {
		if strings.TrimSpace(line) != "" {
			nonEmpty++
		}
	}
	if len(doc.Hints) != nonEmpty {
		t.Fatalf("got %d hints for %d non-empty lines", len(doc.Hints), nonEmpty)
	}

	if doc.Hints[1].Height != defaultFontSize*1.2 {
		t.Errorf("missing font size should use the default height, got %v", doc.Hints[1].Height)
	}
	if doc.Hints[2].Page != 3 {
		t.Errorf("expected page 3 for last line, got %d", doc.Hints[2].Page)
	}
}

func TestBuild_Empty(t *testing.T) {
	doc := Build(nil)
	if doc.Text != "" || len(doc.Hints) != 0 {
		t.Errorf("expected empty document, got %+v", doc)
	}
}

func TestExtract_Errors(t *testing.T) {
	if _, err := Extract(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}

	bogus := filepath.Join(t.TempDir(), "bogus.pdf")
	if err := os.WriteFile(bogus, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(bogus); err == nil {
		t.Error("expected error for invalid PDF")
	}
}
