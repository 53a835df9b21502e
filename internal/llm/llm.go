// Package llm handles LLM provider communication: the Provider interface,
// vendor implementations, error classification, and rate limiting.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredential is returned by NewProvider when no API key is
// configured for the selected provider. It is fatal: no stage can succeed
// without credentials.
var ErrMissingCredential = errors.New("llm: missing API credential")

// ErrUnknownProvider is returned by NewProvider for an unrecognized name.
var ErrUnknownProvider = errors.New("llm: unknown provider")

// Provider is the interface for LLM backends. Implementations must be safe
// for concurrent use.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// Config selects and authenticates a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the vendor endpoint. For the openai provider this
	// allows any OpenAI-compatible server (e.g. a local Ollama).
	BaseURL string
}

// NewProvider is the factory for creating LLM providers. It is a package-level
// variable so tests can replace it with a mock without modifying the call site.
// Tests must restore the original value; use t.Cleanup to do so safely.
var NewProvider func(cfg Config) (Provider, error) = defaultNewProvider

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// ProviderNames lists the supported provider names.
var ProviderNames = []string{ProviderAnthropic, ProviderOpenAI, ProviderGoogle}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGoogle, "gemini", "":
		return "gemini-2.5-flash"
	}
	return ""
}

// CanonicalName maps aliases to a provider name.
func CanonicalName(provider string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderAnthropic, "claude":
		return ProviderAnthropic, nil
	case ProviderOpenAI, "ollama":
		return ProviderOpenAI, nil
	case ProviderGoogle, "gemini", "":
		return ProviderGoogle, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownProvider, provider)
}

// defaultNewProvider dispatches to the appropriate provider implementation.
func defaultNewProvider(cfg Config) (Provider, error) {
	name, err := CanonicalName(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(name)
	}
	switch name {
	case ProviderAnthropic:
		return newAnthropicProvider(cfg)
	case ProviderOpenAI:
		return newOpenAIProvider(cfg)
	default:
		return newGoogleProvider(cfg)
	}
}
