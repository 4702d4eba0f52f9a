package translator

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/dozken/translate-ai-pdf/internal/placeholder"
)

const ProviderGoogle = "google"

// GoogleService uses the Cloud Translation API. It cannot take instructions,
// so glossary terms and URLs are shielded with placeholders and the previous
// context is ignored.
type GoogleService struct {
	credentials string
	apiKey      string
}

func NewGoogleService(cfg ServiceConfig) *GoogleService {
	return &GoogleService{credentials: cfg.Credentials, apiKey: cfg.APIKey}
}

func (s *GoogleService) Name() string {
	return ProviderGoogle
}

func (s *GoogleService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	targetTag, err := language.Parse(req.TargetLang)
	if err != nil {
		result.Error = fmt.Sprintf("invalid target language: %v", err)
		return result, &Error{Kind: Fatal, Err: fmt.Errorf("invalid target language: %w", err)}
	}

	var opts []option.ClientOption
	switch {
	case s.credentials != "":
		opts = append(opts, option.WithCredentialsFile(s.credentials))
	case s.apiKey != "":
		opts = append(opts, option.WithAPIKey(s.apiKey))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create client: %v", err)
		return result, &Error{Kind: Fatal, Err: fmt.Errorf("failed to create client: %w", err)}
	}
	defer client.Close()

	var topts *translate.Options
	if req.SourceLang != "" && req.SourceLang != "auto" {
		sourceTag, err := language.Parse(req.SourceLang)
		if err != nil {
			result.Error = fmt.Sprintf("invalid source language: %v", err)
			return result, &Error{Kind: Fatal, Err: fmt.Errorf("invalid source language: %w", err)}
		}
		topts = &translate.Options{Source: sourceTag, Format: translate.Text}
	}

	text, markers := placeholder.Protect(req.Text, req.Glossary)

	translations, err := client.Translate(ctx, []string{text}, targetTag, topts)
	if err != nil {
		result.Error = fmt.Sprintf("translation failed: %v", err)
		return result, Classify(fmt.Errorf("translation failed: %w", err))
	}

	if len(translations) == 0 {
		result.Error = "no translation returned"
		return result, &Error{Kind: Transient, Err: errors.New("no translation returned")}
	}

	out := html.UnescapeString(translations[0].Text)
	if missing := placeholder.Validate(out, markers); len(missing) > 0 {
		result.Error = fmt.Sprintf("%d protected spans lost", len(missing))
		return result, &Error{Kind: Transient, Err: fmt.Errorf("translation lost %d of %d protected spans", len(missing), len(markers))}
	}

	result.TranslatedText = placeholder.Restore(out, markers)
	result.Metadata = map[string]string{"model": string(translations[0].Model)}

	return result, nil
}

func (s *GoogleService) IsAvailable(ctx context.Context) error {
	return nil
}
