// Package estimate approximates the size of a translation job in provider
// billing units before any call is made.
package estimate

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultOutputRatio is the expected output/input size ratio for translation.
const DefaultOutputRatio = 1.3

const fallbackEncoding = "cl100k_base"

// Estimator counts billing units for one provider family.
type Estimator interface {
	Name() string
	// Unit is "tokens" or "characters".
	Unit() string
	// Exact reports whether Count matches the provider's own tokenizer.
	Exact() bool
	Count(text string) int
}

// Tokenizer counts tokens with a tiktoken encoding.
type Tokenizer struct {
	name  string
	model string
	exact bool
	enc   *tiktoken.Tiktoken
}

var (
	encMu    sync.Mutex
	encCache = map[string]*tiktoken.Tiktoken{}
)

func encoding(model string) (*tiktoken.Tiktoken, error) {
	encMu.Lock()
	defer encMu.Unlock()

	key := model
	if key == "" {
		key = fallbackEncoding
	}
	if enc, ok := encCache[key]; ok {
		return enc, nil
	}

	var (
		enc *tiktoken.Tiktoken
		err error
	)
	if model != "" {
		enc, err = tiktoken.EncodingForModel(model)
	}
	if model == "" || err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", fallbackEncoding, err)
	}
	encCache[key] = enc
	return enc, nil
}

// NewOpenAI counts with the encoding of model, or cl100k_base when the
// model is unknown to tiktoken.
func NewOpenAI(model string) (*Tokenizer, error) {
	enc, err := encoding(model)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{name: "openai", model: model, exact: true, enc: enc}, nil
}

// NewApproximate counts with cl100k_base for providers whose tokenizer is
// not public (Anthropic, Gemini).
func NewApproximate(name, model string) (*Tokenizer, error) {
	enc, err := encoding("")
	if err != nil {
		return nil, err
	}
	return &Tokenizer{name: name, model: model, enc: enc}, nil
}

func (t *Tokenizer) Name() string  { return t.name }
func (t *Tokenizer) Model() string { return t.model }
func (t *Tokenizer) Unit() string  { return "tokens" }
func (t *Tokenizer) Exact() bool   { return t.exact }

func (t *Tokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Chars counts characters, for services billed per character (DeepL).
type Chars struct {
	name string
}

func NewChars(name string) *Chars { return &Chars{name: name} }

func (c *Chars) Name() string { return c.name }
func (c *Chars) Unit() string { return "characters" }
func (c *Chars) Exact() bool  { return true }

func (c *Chars) Count(text string) int {
	return utf8.RuneCountInString(text)
}

// Estimate is the predicted size of a job for one estimator.
type Estimate struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Unit     string `json:"unit"`
	Exact    bool   `json:"exact"`
	Input    int    `json:"input"`
	Output   int    `json:"output"`
}

// OutputFor predicts output size from input size.
func OutputFor(input int, ratio float64) int {
	if ratio <= 0 {
		ratio = DefaultOutputRatio
	}
	return int(float64(input) * ratio)
}

// Run applies every estimator to text.
func Run(text string, ratio float64, estimators ...Estimator) []Estimate {
	out := make([]Estimate, 0, len(estimators))
	for _, e := range estimators {
		in := e.Count(text)
		est := Estimate{Provider: e.Name(), Unit: e.Unit(), Exact: e.Exact(), Input: in, Output: OutputFor(in, ratio)}
		if m, ok := e.(interface{ Model() string }); ok {
			est.Model = m.Model()
		}
		out = append(out, est)
	}
	return out
}

// Defaults returns the estimators for the supported provider families. The
// tiktoken encodings are fetched on first use, so this can fail offline.
func Defaults() ([]Estimator, error) {
	gpt4o, err := NewOpenAI("gpt-4o")
	if err != nil {
		return nil, err
	}
	gpt4, err := NewOpenAI("gpt-4-turbo")
	if err != nil {
		return nil, err
	}
	claude, err := NewApproximate("anthropic", "claude-3-5-sonnet")
	if err != nil {
		return nil, err
	}
	gemini, err := NewApproximate("googleai", "gemini-1.5-pro")
	if err != nil {
		return nil, err
	}
	return []Estimator{gpt4o, gpt4, claude, gemini, NewChars("deepl")}, nil
}
