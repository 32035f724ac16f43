package ai

import "context"

// Runtime is implemented by narration backends (OpenRouter, Ollama, mock).
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderMock       = "mock"
)

// NormalizeProvider maps user-facing aliases onto registered providers.
func NormalizeProvider(name string) string {
	switch name {
	case "local", "ollama":
		return ProviderOllama
	case "openai", "anthropic", "google", "gemini", "meta", "llama", "openrouter":
		return ProviderOpenRouter
	case "", "mock", "offline":
		return ProviderMock
	}
	return name
}
