package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/adpulse-cli/internal/ai"
	"github.com/KaramelBytes/adpulse-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/adpulse-cli/internal/config"
)

const (
	defaultNarrateModel = "openai/gpt-4o-mini"
	defaultOllamaModel  = "llama3.1"
)

// narrationFlags carries the per-invocation narration overrides.
type narrationFlags struct {
	Provider    string
	Model       string
	OllamaHost  string
	MaxTokens   int
	Temperature float64
	PromptLimit int
}

// buildRuntime resolves the provider (flag > config > mock) and constructs its
// runtime from the HTTP and retry settings.
func buildRuntime(cfg *cfgpkg.Global, nf narrationFlags) (ai.Runtime, string, ai.RuntimeConfig, error) {
	rc := ai.RuntimeConfig{
		HTTPTimeout: 60 * time.Second,
		RetryMax:    3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
	}
	provider := strings.ToLower(strings.TrimSpace(nf.Provider))
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			rc.RetryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			rc.BaseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			rc.MaxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
		if provider == "" {
			provider = strings.ToLower(cfg.NarrateProvider)
		}
		rc.APIKey = cfg.APIKey
	}
	provider = ai.NormalizeProvider(provider)

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		rc.APIKey = v
	}
	if provider == ai.ProviderOllama {
		rc.Host = strings.TrimSpace(nf.OllamaHost)
		if rc.Host == "" && cfg != nil {
			rc.Host = cfg.OllamaHost
		}
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	rt, ok := ai.GetRuntime(provider, rc)
	if !ok {
		return nil, provider, rc, fmt.Errorf("provider not supported: %s (available: %s)", provider, strings.Join(ai.Providers(), ", "))
	}
	return rt, provider, rc, nil
}

// selectModel picks the explicit model, then the configured one. Ollama gets a
// local default when the configured id is the hosted default.
func selectModel(cfg *cfgpkg.Global, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	model := defaultNarrateModel
	if cfg != nil && cfg.NarrateModel != "" {
		model = cfg.NarrateModel
	}
	if provider == ai.ProviderOllama && model == defaultNarrateModel {
		return defaultOllamaModel
	}
	return model
}

// narrate produces prose for res, mapping runtime failures to actionable errors.
func narrate(ctx context.Context, source string, res *analysis.Result, nf narrationFlags) (string, error) {
	rt, provider, rc, err := buildRuntime(cfg, nf)
	if err != nil {
		return "", err
	}
	opt := ai.NarrationOptions{
		Model:       selectModel(cfg, provider, nf.Model),
		MaxTokens:   nf.MaxTokens,
		Temperature: nf.Temperature,
		PromptLimit: nf.PromptLimit,
	}
	if cfg != nil {
		if opt.MaxTokens <= 0 {
			opt.MaxTokens = cfg.MaxTokens
		}
		if opt.Temperature <= 0 {
			opt.Temperature = cfg.Temperature
		}
		if opt.PromptLimit <= 0 {
			opt.PromptLimit = cfg.PromptLimit
		}
		opt.TopP = cfg.TopP
	}

	log := zerolog.Ctx(ctx)
	log.Debug().Str("provider", provider).Str("model", opt.Model).Msg("requesting narration")
	text, resp, err := ai.Narrate(ctx, rt, source, res, opt)
	if err != nil {
		return "", ai.Explain(err, provider, opt.Model, rc.Host)
	}
	log.Debug().Str("request_id", resp.RequestID).Int("total_tokens", resp.Usage.TotalTokens).Msg("narration complete")
	return text, nil
}
