// Package segment splits normalized document text into translation units.
//
// Boundaries are tried in order of reliability: explicit paragraph breaks,
// then layout blocks (when line positions are known), then sentence
// grouping, and finally word-boundary packing. A line that merely starts
// with a capital letter, a number or an Arabic letter never cuts a unit on
// its own, which keeps verse-per-line texts from being shredded into
// thousands of tiny fragments.
package segment

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dozken/translate-ai-pdf/internal"
	"github.com/dozken/translate-ai-pdf/internal/normalize"
)

const (
	paragraphSep = "\n\n"
	lineSep      = " "

	// blockGap is the vertical distance, in line heights, that separates two
	// layout blocks on the same page.
	blockGap = 1.5
)

// Segmenter turns text into units. It is stateless apart from its Config and
// safe for concurrent use.
type Segmenter struct {
	cfg Config
}

// New validates cfg and returns a Segmenter.
func New(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{cfg: cfg}, nil
}

// Config returns the parameters the segmenter was built with.
func (s *Segmenter) Config() Config { return s.cfg }

// Split normalizes text and returns its units in document order with dense
// indices starting at 0. hints, when given, must hold one entry per
// non-empty line of the normalized text; a mismatched slice is ignored.
// Whitespace-only input yields no units.
func (s *Segmenter) Split(text string, hints []internal.LayoutHint) []internal.Unit {
	text = normalize.Text(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	paras := splitParagraphs(text)
	if len(hints) != countLines(paras) {
		hints = nil
	}

	var segs []segment
	for _, seg := range s.explicitBreaks(paras) {
		if seg.size <= s.cfg.MaxParagraphSize {
			segs = append(segs, seg)
			continue
		}
		for _, grouped := range s.groupSentences(paras[seg.firstPara], hints) {
			if grouped.size <= s.cfg.MaxParagraphSize {
				segs = append(segs, grouped)
				continue
			}
			segs = append(segs, s.packWords(grouped)...)
		}
	}

	segs = s.mergeSmall(segs)

	units := make([]internal.Unit, len(segs))
	for i, seg := range segs {
		units[i] = internal.Unit{
			Index:      i,
			SourceText: seg.text,
			CharCount:  seg.size,
			Strategy:   seg.strategy,
			Oversize:   seg.oversize,
			Undersize:  !seg.oversize && seg.size < s.cfg.MinLength,
		}
	}
	return units
}

// segment is the value threaded through the pipeline stages. firstPara and
// lastPara are paragraph ordinals; they decide the separator used when two
// segments are merged.
type segment struct {
	text      string
	size      int
	strategy  internal.Strategy
	firstPara int
	lastPara  int
	oversize  bool
}

func (a segment) sepTo(b segment) string {
	if a.lastPara == b.firstPara {
		return lineSep
	}
	return paragraphSep
}

// joinedSize is the rune count of a and b merged.
func (a segment) joinedSize(b segment) int {
	return a.size + utf8.RuneCountInString(a.sepTo(b)) + b.size
}

func (a segment) join(b segment) segment {
	return segment{
		text:      a.text + a.sepTo(b) + b.text,
		size:      a.joinedSize(b),
		strategy:  a.strategy,
		firstPara: a.firstPara,
		lastPara:  b.lastPara,
		oversize:  a.oversize || b.oversize,
	}
}

// line is one non-empty line of a paragraph. hint is its ordinal among all
// non-empty lines of the document, the index into the layout hints.
type line struct {
	text string
	hint int
}

type paragraph struct {
	index int
	lines []line
}

func (p paragraph) text() string {
	parts := make([]string, len(p.lines))
	for i, l := range p.lines {
		parts[i] = l.text
	}
	return strings.Join(parts, lineSep)
}

// splitParagraphs cuts normalized text at blank lines.
func splitParagraphs(text string) []paragraph {
	var (
		paras []paragraph
		cur   []line
		n     int
	)
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, paragraph{index: len(paras), lines: cur})
			cur = nil
		}
	}
	for _, raw := range strings.Split(text, "\n") {
		if IsExplicitBreak(raw) {
			flush()
			continue
		}
		cur = append(cur, line{text: strings.TrimSpace(raw), hint: n})
		n++
	}
	flush()
	return paras
}

func countLines(paras []paragraph) int {
	n := 0
	for _, p := range paras {
		n += len(p.lines)
	}
	return n
}

// explicitBreaks turns each paragraph into a segment. Consecutive numbered
// paragraphs (one verse per paragraph) are grouped as long as the group
// stays within MaxParagraphSize. Paragraphs over the limit are returned as
// they are and split by the later stages.
func (s *Segmenter) explicitBreaks(paras []paragraph) []segment {
	var out []segment
	for i := 0; i < len(paras); i++ {
		text := paras[i].text()
		seg := segment{
			text:      text,
			size:      utf8.RuneCountInString(text),
			strategy:  internal.StrategyExplicitBreak,
			firstPara: i,
			lastPara:  i,
		}
		if seg.size <= s.cfg.MaxParagraphSize && IsNumberedMarker(text) {
			for i+1 < len(paras) {
				nextText := paras[i+1].text()
				if !IsNumberedMarker(nextText) {
					break
				}
				next := segment{text: nextText, size: utf8.RuneCountInString(nextText), firstPara: i + 1, lastPara: i + 1}
				if seg.joinedSize(next) > s.cfg.MaxParagraphSize {
					break
				}
				seg = seg.join(next)
				i++
			}
		}
		out = append(out, seg)
	}
	return out
}

// piece is the smallest span the sentence grouper moves around: a sentence,
// or the tail of a line that has no sentence end.
type piece struct {
	text         string
	size         int
	lineStart    bool // first piece of a line (or of a layout block)
	blockStart   bool // first piece of a layout block
	numbered     bool // lineStart and the line opens with a verse number
	marker       bool // lineStart and IsLineStartMarker holds
	endsSentence bool
}

// pieces breaks one oversized paragraph into sentence pieces. With layout
// hints the lines are first glued into visual blocks so that a wrapped
// line never starts a new piece.
func pieces(p paragraph, hints []internal.LayoutHint) []piece {
	blocks := [][]line{}
	if hints != nil {
		blocks = layoutBlocks(p.lines, hints)
	} else {
		for _, l := range p.lines {
			blocks = append(blocks, []line{l})
		}
	}

	var out []piece
	for _, block := range blocks {
		parts := make([]string, len(block))
		for i, l := range block {
			parts[i] = l.text
		}
		text := strings.Join(parts, lineSep)
		for i, sentence := range splitSentences(text) {
			pc := piece{
				text:         sentence,
				size:         utf8.RuneCountInString(sentence),
				endsSentence: IsSentenceEnd(sentence),
			}
			if i == 0 {
				pc.lineStart = true
				pc.blockStart = hints != nil
				pc.numbered = IsNumberedMarker(sentence)
				pc.marker = IsLineStartMarker(sentence)
			}
			out = append(out, pc)
		}
	}
	return out
}

// layoutBlocks groups consecutive lines into visual blocks. A block ends at a
// page change or when the vertical gap to the next line exceeds blockGap line
// heights.
func layoutBlocks(lines []line, hints []internal.LayoutHint) [][]line {
	var blocks [][]line
	var cur []line
	for i, l := range lines {
		if i > 0 && newBlock(hints[lines[i-1].hint], hints[l.hint]) {
			blocks = append(blocks, cur)
			cur = nil
		}
		cur = append(cur, l)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

func newBlock(prev, cur internal.LayoutHint) bool {
	if prev.Page != cur.Page {
		return true
	}
	h := math.Max(prev.Height, cur.Height)
	if h <= 0 {
		return false
	}
	return math.Abs(cur.Y-prev.Y) > blockGap*h
}

// splitSentences cuts text after every sentence end that is followed by
// whitespace. The whitespace itself is dropped.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); {
		r, w := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) && i > start && IsSentenceEnd(text[start:i]) {
			out = append(out, text[start:i])
			for i < len(text) {
				r, w = utf8.DecodeRuneInString(text[i:])
				if !unicode.IsSpace(r) {
					break
				}
				i += w
			}
			start = i
			continue
		}
		i += w
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// groupSentences accumulates the pieces of an oversized paragraph into
// segments. A segment is cut:
//   - always, when the next piece would push it past MaxParagraphSize;
//   - otherwise only once it holds SubstantialThreshold runes, the boundary
//     has a second indicator (the previous piece ends a sentence, or a new
//     layout block begins) and either the next piece would pass TargetSize
//     or it opens a line with a line-start marker.
//
// Inside a run of numbered lines only the hard limit applies.
func (s *Segmenter) groupSentences(p paragraph, hints []internal.LayoutHint) []segment {
	strategy := internal.StrategySentenceGrouped
	if hints != nil {
		strategy = internal.StrategyLayout
	}

	var (
		out      []segment
		parts    []string
		size     int
		prevEnds bool
		inRun    bool
	)
	flush := func() {
		if len(parts) == 0 {
			return
		}
		out = append(out, segment{
			text:      strings.Join(parts, lineSep),
			size:      size,
			strategy:  strategy,
			firstPara: p.index,
			lastPara:  p.index,
		})
		parts, size = nil, 0
	}

	for _, pc := range pieces(p, hints) {
		if len(parts) > 0 {
			next := size + 1 + pc.size
			run := inRun && (pc.numbered || !pc.lineStart)
			switch {
			case next > s.cfg.MaxParagraphSize:
				flush()
			case size >= s.cfg.SubstantialThreshold && !run &&
				(prevEnds || pc.blockStart) &&
				(next > s.cfg.TargetSize || pc.marker):
				flush()
			}
		}

		if len(parts) == 0 {
			size = pc.size
		} else {
			size += 1 + pc.size
		}
		parts = append(parts, pc.text)
		prevEnds = pc.endsSentence
		if pc.lineStart {
			inRun = pc.numbered
		}
	}
	flush()
	return out
}

// packWords is the last resort for a segment with no usable sentence or line
// boundary: words are packed up to FallbackFill of MaxParagraphSize. A single
// word longer than MaxParagraphSize is emitted alone and marked oversize.
func (s *Segmenter) packWords(seg segment) []segment {
	limit := s.cfg.fallbackLimit()
	base := segment{
		strategy:  internal.StrategySizeFallback,
		firstPara: seg.firstPara,
		lastPara:  seg.lastPara,
	}

	var (
		out   []segment
		words []string
		size  int
	)
	flush := func() {
		if len(words) == 0 {
			return
		}
		cur := base
		cur.text = strings.Join(words, lineSep)
		cur.size = size
		out = append(out, cur)
		words, size = nil, 0
	}

	for _, w := range strings.Fields(seg.text) {
		n := utf8.RuneCountInString(w)
		if n > s.cfg.MaxParagraphSize {
			flush()
			big := base
			big.text, big.size, big.oversize = w, n, true
			out = append(out, big)
			continue
		}
		if len(words) > 0 && size+1+n > limit {
			flush()
		}
		if len(words) == 0 {
			size = n
		} else {
			size += 1 + n
		}
		words = append(words, w)
	}
	flush()
	return out
}

// mergeSmall folds every segment shorter than MinLength into a neighbour,
// preferring the smaller neighbour and never exceeding MaxParagraphSize.
// Consecutive short fragments, such as blank-line separated verses, keep
// packing into one unit up to TargetSize. Segments at or above MinLength
// are never merged with each other.
func (s *Segmenter) mergeSmall(segs []segment) []segment {
	small := func(seg segment) bool {
		return !seg.oversize && seg.size < s.cfg.MinLength
	}
	fits := func(a, b segment, limit int) bool {
		return !a.oversize && !b.oversize && a.joinedSize(b) <= limit
	}

	var (
		out   []*pack
		carry *pack
	)
	for i, seg := range segs {
		cur := newPack(seg, small(seg))
		if carry != nil {
			carry.add(cur)
			cur, carry = carry, nil
		}
		if !small(cur.segment) {
			out = append(out, cur)
			continue
		}

		var prev *pack
		if len(out) > 0 {
			prev = out[len(out)-1]
		}
		if prev != nil && prev.short && fits(prev.segment, cur.segment, s.cfg.TargetSize) {
			prev.add(cur)
			continue
		}

		canPrev := prev != nil && fits(prev.segment, cur.segment, s.cfg.MaxParagraphSize)
		canNext := i+1 < len(segs) && fits(cur.segment, segs[i+1], s.cfg.MaxParagraphSize)
		if canNext && canPrev && prev.size < segs[i+1].size {
			canNext = false
		}
		switch {
		case canNext:
			carry = cur
		case canPrev:
			prev.add(cur)
		default:
			out = append(out, cur)
		}
	}
	if carry != nil {
		out = append(out, carry)
	}

	res := make([]segment, len(out))
	for i, p := range out {
		res[i] = p.segment
		res[i].text = p.buf.String()
	}
	return res
}

// pack is a segment being grown by mergeSmall. The text lives in buf until
// the pass ends; segment.text is unused meanwhile.
type pack struct {
	segment
	buf strings.Builder
	// short is set while every merged piece was under MinLength.
	short bool
}

func newPack(seg segment, short bool) *pack {
	p := &pack{segment: seg, short: short}
	p.buf.WriteString(seg.text)
	p.text = ""
	return p
}

func (p *pack) add(q *pack) {
	p.buf.WriteString(p.sepTo(q.segment))
	p.buf.WriteString(q.buf.String())
	p.size = p.joinedSize(q.segment)
	p.lastPara = q.lastPara
	p.oversize = p.oversize || q.oversize
	p.short = p.short && q.short
}
