package ai

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingAPIKey is returned by remote runtimes that need a key and have none.
var ErrMissingAPIKey = errors.New("OPENROUTER_API_KEY is missing")

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// ModelNotFoundError indicates the requested model is not available.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.APIError.Error())
}

// BadRequestError indicates a 4xx request problem (e.g., 400 validation).
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// QuotaExceededError indicates billing/quota problems.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.APIError.Error())
}

// ServerError indicates 5xx errors from the provider.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.APIError.Error()) }

// UnreachableError indicates the target runtime is not reachable (e.g., local Ollama down).
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Explain wraps a narration failure with a short hint telling the user what to
// try next. Unknown errors are wrapped unchanged.
func Explain(err error, provider, model, host string) error {
	if err == nil {
		return nil
	}
	var (
		unreachable *UnreachableError
		auth        *AuthError
		rate        *RateLimitError
		notFound    *ModelNotFoundError
		badReq      *BadRequestError
		quota       *QuotaExceededError
		server      *ServerError
	)
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return fmt.Errorf("narration needs an API key: set OPENROUTER_API_KEY or run 'adpulse config set api_key <key>': %w", err)
	case errors.As(err, &unreachable):
		if host == "" {
			host = DefaultOllamaHost
		}
		return fmt.Errorf("cannot reach %s runtime at %s; is it running? (try 'ollama serve'): %w", provider, host, err)
	case errors.As(err, &auth):
		return fmt.Errorf("authentication failed; check your API key: %w", err)
	case errors.As(err, &rate):
		if rate.RetryAfter > 0 {
			return fmt.Errorf("rate limited; retry after %s: %w", rate.RetryAfter, err)
		}
		return fmt.Errorf("rate limited; retry later: %w", err)
	case errors.As(err, &notFound):
		if provider == ProviderOllama {
			return fmt.Errorf("model %q not found; pull it with 'ollama pull %s': %w", model, model, err)
		}
		return fmt.Errorf("model %q not found; check the model id: %w", model, err)
	case errors.As(err, &badReq):
		return fmt.Errorf("request rejected; lower --max-tokens or --prompt-limit: %w", err)
	case errors.As(err, &quota):
		return fmt.Errorf("quota exceeded; check your provider billing: %w", err)
	case errors.As(err, &server):
		return fmt.Errorf("provider error; try again shortly: %w", err)
	}
	return fmt.Errorf("narration failed: %w", err)
}
