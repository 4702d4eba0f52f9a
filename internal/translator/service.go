package translator

import (
	"context"
	"fmt"
)

// Providers lists the names accepted by NewService.
var Providers = []string{ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderGoogleAI, ProviderOpenRouter, ProviderGoogle}

// NewService returns the translator for cfg.Provider.
func NewService(ctx context.Context, cfg ServiceConfig) (TranslationService, error) {
	switch cfg.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderGoogleAI:
		return NewLLMService(ctx, cfg)
	case ProviderOpenRouter:
		return NewOpenRouterService(cfg), nil
	case ProviderGoogle:
		return NewGoogleService(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q (supported: %v)", cfg.Provider, Providers)
	}
}

// Connect builds the translator for cfg.Provider and checks that it can be
// used, so that a missing key fails before any job is recorded.
func Connect(ctx context.Context, cfg ServiceConfig) (TranslationService, error) {
	svc, err := NewService(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := svc.IsAvailable(ctx); err != nil {
		return nil, fmt.Errorf("provider %s is not available: %w", cfg.Provider, err)
	}
	return svc, nil
}

// ModelName is the model identifier recorded in the job identity.
func ModelName(svc TranslationService) string {
	if m, ok := svc.(interface{ Model() string }); ok {
		return m.Model()
	}
	return svc.Name()
}
