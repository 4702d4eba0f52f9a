package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dozken/translate-ai-pdf/internal/postprocess"
)

const (
	ProviderOpenRouter     = "openrouter"
	defaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel = "anthropic/claude-3.5-sonnet"
)

type OpenRouterService struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

func NewOpenRouterService(cfg ServiceConfig) *OpenRouterService {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenRouterModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenRouterService{
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
	}
}

func (s *OpenRouterService) Name() string {
	return ProviderOpenRouter
}

func (s *OpenRouterService) Model() string {
	return s.model
}

func (s *OpenRouterService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if s.apiKey == "" {
		result.Error = "OpenRouter API key required"
		return result, &Error{Kind: Fatal, Err: errors.New("OpenRouter API key required")}
	}

	body := map[string]interface{}{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": buildSystemPrompt(req)},
			{"role": "user", "content": buildUserPrompt(req)},
		},
		"temperature": 0,
		"max_tokens":  s.maxTokens,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		result.Error = fmt.Sprintf("failed to marshal request: %v", err)
		return result, &Error{Kind: Fatal, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result, &Error{Kind: Fatal, Err: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("X-Title", "translate-ai-pdf")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result, Classify(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		result.Error = fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		return result, StatusError(resp.StatusCode, errors.New(result.Error))
	}

	var orResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&orResp); err != nil {
		result.Error = fmt.Sprintf("failed to decode response: %v", err)
		return result, &Error{Kind: Transient, Err: err}
	}

	if len(orResp.Choices) == 0 || strings.TrimSpace(orResp.Choices[0].Message.Content) == "" {
		result.Error = "empty response from API"
		return result, &Error{Kind: Transient, Err: errors.New("empty response from API")}
	}

	result.TranslatedText = postprocess.Clean(orResp.Choices[0].Message.Content)
	result.Metadata = map[string]string{
		"model":             s.model,
		"finish_reason":     orResp.Choices[0].FinishReason,
		"prompt_tokens":     fmt.Sprintf("%d", orResp.Usage.PromptTokens),
		"completion_tokens": fmt.Sprintf("%d", orResp.Usage.CompletionTokens),
	}

	return result, nil
}

func (s *OpenRouterService) IsAvailable(ctx context.Context) error {
	if s.apiKey == "" {
		return fmt.Errorf("OpenRouter API key not configured")
	}
	return nil
}
