package translator

import (
	"context"
	"time"
)

type ServiceConfig struct {
	Provider    string        `mapstructure:"provider" json:"provider"`
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	Model       string        `mapstructure:"model" json:"model"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens"`
}

type TranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	// PreviousContext is the tail of the preceding source unit, given to LLMs
	// for continuity and never translated.
	PreviousContext string            `json:"previous_context,omitempty"`
	Glossary        map[string]string `json:"glossary,omitempty"`
	Instructions    string            `json:"instructions,omitempty"`
}

type ServiceResult struct {
	ServiceName    string            `json:"service_name"`
	TranslatedText string            `json:"translated_text"`
	Metadata       map[string]string `json:"metadata"`
	Latency        time.Duration     `json:"latency"`
	Error          string            `json:"error,omitempty"`
}

// TranslationService is an external translator. Errors returned by Translate
// should be *Error values so the caller can tell transient from fatal
// failures; anything else is treated as transient.
type TranslationService interface {
	Name() string
	Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error)
	IsAvailable(ctx context.Context) error
}

// StreamingService is a TranslationService that can deliver its output
// incrementally. onChunk is called in order with each new piece of text;
// the returned result holds the complete translation.
type StreamingService interface {
	TranslationService
	TranslateStream(ctx context.Context, req TranslateRequest, onChunk func(chunk string) error) (*ServiceResult, error)
}
