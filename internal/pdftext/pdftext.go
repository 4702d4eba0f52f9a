// Package pdftext extracts line text and line positions from PDF files.
package pdftext

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/dozken/translate-ai-pdf/internal"
)

// defaultFontSize is used when a row carries no font size.
const defaultFontSize = 10.0

// Line is one text row of a page.
type Line struct {
	Text     string
	X, Y     float64
	FontSize float64
}

// Document is the extracted text. Lines of a page are joined by "\n" and
// pages by a blank line; Hints holds one entry per non-empty line.
type Document struct {
	Text  string
	Hints []internal.LayoutHint
	Pages int
}

// Extract reads the text rows of every page of the PDF at path.
func Extract(path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to access PDF: %w", err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pages := make([][]Line, 0, r.NumPage())
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			pages = append(pages, nil)
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", pageNum, err)
		}
		pages = append(pages, rowLines(rows))
	}

	doc := Build(pages)
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("PDF %s has no extractable text", path)
	}
	return doc, nil
}

func rowLines(rows pdf.Rows) []Line {
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		var (
			sb       strings.Builder
			x, y, fs float64
			n        int
		)
		for _, t := range row.Content {
			if t.S == "" {
				continue
			}
			if n == 0 || t.X < x {
				x = t.X
			}
			if n == 0 {
				y = t.Y
			}
			sb.WriteString(t.S)
			fs += t.FontSize
			n++
		}
		if n == 0 {
			continue
		}
		lines = append(lines, Line{Text: sb.String(), X: x, Y: y, FontSize: fs / float64(n)})
	}
	return lines
}

// Build assembles pages of lines into a Document. Whitespace-only lines are
// dropped so that hints stay aligned with the non-empty lines of the text.
func Build(pages [][]Line) *Document {
	doc := &Document{Pages: len(pages)}
	var paras []string
	for i, lines := range pages {
		var kept []string
		for _, l := range lines {
			text := strings.Join(strings.Fields(l.Text), " ")
			if text == "" {
				continue
			}
			size := l.FontSize
			if size <= 0 {
				size = defaultFontSize
			}
			kept = append(kept, text)
			doc.Hints = append(doc.Hints, internal.LayoutHint{Page: i + 1, X: l.X, Y: l.Y, Height: size * 1.2})
		}
		if len(kept) > 0 {
			paras = append(paras, strings.Join(kept, "\n"))
		}
	}
	doc.Text = strings.Join(paras, "\n\n")
	return doc
}
