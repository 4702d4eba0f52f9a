package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dozken/translate-ai-pdf/internal/postprocess"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGoogleAI  = "googleai"
)

// DefaultModels are used when no model is configured for a provider.
var DefaultModels = map[string]string{
	ProviderAnthropic: "claude-3-5-sonnet-20241022",
	ProviderOpenAI:    "gpt-4o",
	ProviderOllama:    "llama3.2",
	ProviderGoogleAI:  "gemini-1.5-pro",
}

const defaultMaxTokens = 4096

// LLMService translates through a chat model reached with langchaingo.
type LLMService struct {
	provider  string
	model     string
	maxTokens int
	hasKey    bool
	llm       llms.Model
}

// NewLLMService builds the langchaingo client for cfg.Provider.
func NewLLMService(ctx context.Context, cfg ServiceConfig) (*LLMService, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModels[cfg.Provider]
	}

	var (
		llm llms.Model
		err error
	)
	switch cfg.Provider {
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		opts := []anthropic.Option{anthropic.WithToken(cfg.APIKey), anthropic.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		llm, err = anthropic.New(opts...)
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err = ollama.New(opts...)
	case ProviderGoogleAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Google AI API key required")
		}
		llm, err = googleai.New(ctx, googleai.WithAPIKey(cfg.APIKey), googleai.WithDefaultModel(model))
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.Provider, err)
	}

	return newLLMService(cfg.Provider, model, cfg.MaxTokens, llm, cfg.APIKey != "" || cfg.Provider == ProviderOllama), nil
}

func newLLMService(provider, model string, maxTokens int, llm llms.Model, hasKey bool) *LLMService {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &LLMService{provider: provider, model: model, maxTokens: maxTokens, hasKey: hasKey, llm: llm}
}

func (s *LLMService) Name() string {
	return s.provider
}

func (s *LLMService) Model() string {
	return s.model
}

func (s *LLMService) IsAvailable(ctx context.Context) error {
	if !s.hasKey {
		return fmt.Errorf("%s API key not configured", s.provider)
	}
	return nil
}

func (s *LLMService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	return s.generate(ctx, req, nil)
}

// TranslateStream relays the raw model output to onChunk as it arrives. The
// result text is cleaned after the stream ends, so it may differ from the
// concatenated chunks.
func (s *LLMService) TranslateStream(ctx context.Context, req TranslateRequest, onChunk func(chunk string) error) (*ServiceResult, error) {
	return s.generate(ctx, req, onChunk)
}

func (s *LLMService) generate(ctx context.Context, req TranslateRequest, onChunk func(string) error) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, buildSystemPrompt(req)),
		llms.TextParts(llms.ChatMessageTypeHuman, buildUserPrompt(req)),
	}
	opts := []llms.CallOption{
		llms.WithTemperature(0),
		llms.WithMaxTokens(s.maxTokens),
	}

	var chunkErr error
	if onChunk != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if err := onChunk(string(chunk)); err != nil {
				chunkErr = err
				return err
			}
			return nil
		}))
	}

	resp, err := s.llm.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		result.Error = err.Error()
		if chunkErr != nil {
			return result, chunkErr
		}
		return result, Classify(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		result.Error = "empty response from model"
		return result, &Error{Kind: Transient, Err: errors.New("empty response from model")}
	}

	result.TranslatedText = postprocess.Clean(resp.Choices[0].Content)
	result.Metadata = map[string]string{"model": s.model, "provider": s.provider}
	if stop := resp.Choices[0].StopReason; stop != "" {
		result.Metadata["stop_reason"] = stop
	}
	return result, nil
}
