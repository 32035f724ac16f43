package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// Client talks to an OpenAI-compatible chat completions endpoint (OpenRouter by default).
type Client struct {
	httpClient       *http.Client
	apiKey           string
	baseURL          string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Text returns the first choice's content, or "" when the provider sent none.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// APIError represents a structured API error response.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error: status=%d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " code=%s", e.Code)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", e.RequestID)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " message=%s", e.Message)
	}
	return b.String()
}

// NewOpenRouterClient returns a client with default timeouts and retry strategy.
func NewOpenRouterClient(apiKey string) *Client {
	return NewClient(apiKey, 60*time.Second, 3, 500*time.Millisecond, 4*time.Second)
}

// NewClient allows customizing HTTP timeout and retry/backoff behavior.
func NewClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: httpTimeout},
		apiKey:           apiKey,
		baseURL:          defaultOpenRouterURL,
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
	}
}

// NewClientWithBaseURL allows injecting a custom base URL (used in tests).
func NewClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *Client {
	c := NewClient(apiKey, httpTimeout, retryMax, baseDelay, maxDelay)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// Generate posts a chat completion, retrying 429 and 5xx responses with
// capped exponential backoff. Retry-After is honoured when present.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"
	backoff := c.retryBaseDelay
	log := zerolog.Ctx(ctx)

	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("HTTP-Referer", "https://github.com/KaramelBytes/adpulse-cli")
		httpReq.Header.Set("X-Title", "AdPulse CLI")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if isRetryableNetErr(err) && attempt < c.retryMaxAttempts {
				lastErr = err
				log.Debug().Err(err).Int("attempt", attempt).Msg("narration request failed, retrying")
				if err := sleepCtx(ctx, c.capDelay(withJitter(backoff))); err != nil {
					return nil, err
				}
				backoff *= 2
				continue
			}
			return nil, fmt.Errorf("http request: %w", err)
		}

		out, wait, err := c.readResponse(resp)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if wait < 0 || attempt == c.retryMaxAttempts {
			break
		}
		if wait == 0 {
			wait = c.capDelay(withJitter(backoff))
			backoff *= 2
		}
		log.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("narration provider busy, retrying")
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// readResponse decodes a reply. A negative wait means the error is final; zero
// means retry with the default backoff.
func (c *Client) readResponse(resp *http.Response) (*GenerateResponse, time.Duration, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var out GenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, -1, fmt.Errorf("decode response: %w", err)
		}
		out.RequestID = extractRequestID(resp)
		return &out, 0, nil
	}
	apiErr := decodeAPIError(resp)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		var wait time.Duration
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := parseRetryAfterSeconds(ra); err == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		return nil, wait, classifyAPIError(apiErr, resp)
	}
	return nil, -1, classifyAPIError(apiErr, resp)
}

func (c *Client) capDelay(d time.Duration) time.Duration {
	if c.retryMaxDelay > 0 && d > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return d
}

// decodeAPIError reads a bounded error body. Both {"error":{...}} and flat
// {"message":...} shapes are understood, as is Ollama's {"error":"..."}.
func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
	src := raw
	switch v := raw["error"].(type) {
	case map[string]any:
		src = v
	case string:
		apiErr.Message = v
	}
	if msg, ok := src["message"].(string); ok && apiErr.Message == "" {
		apiErr.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		apiErr.Code = code
	}
	return apiErr
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds interprets a Retry-After value as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// classifyAPIError maps generic APIError to typed errors for better UX.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc := apiErr.StatusCode
	msg := apiErr.Message
	code := apiErr.Code
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc == http.StatusNotFound:
		if code == "model_not_found" || containsAllFold(msg, "model", "not", "found") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return apiErr
	case sc == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	case code == "quota_exceeded" || containsAnyFold(msg, "quota", "billing", "limit exceeded"):
		return &QuotaExceededError{APIError: apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
