package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// StatusError reports a non-2xx response from a remote source.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("fetch %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func isURL(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

type httpLoader struct{}

func (httpLoader) CanLoad(ref string) bool { return isURL(ref) }

func (httpLoader) Load(ctx context.Context, ref string, opt Options) (*Input, error) {
	b, err := Fetch(ctx, ref, opt.HTTP, opt.MaxBytes)
	if err != nil {
		return nil, err
	}
	name := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" && u.Path != "/" {
		name = path.Base(u.Path)
	}
	if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		text, err := XLSXToCSV(b, opt.SheetName, opt.SheetIndex)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return &Input{Name: name, Text: text}, nil
	}
	return &Input{Name: name, Text: string(b)}, nil
}

// Fetch downloads ref, retrying network errors, 429 and 5xx responses with
// capped exponential backoff. A Retry-After header overrides the backoff.
func Fetch(ctx context.Context, ref string, o HTTPOptions, maxBytes int64) ([]byte, error) {
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 4 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	log := zerolog.Ctx(ctx)
	client := &http.Client{Timeout: o.Timeout}
	backoff := o.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= o.RetryMax; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "text/csv, text/plain, application/octet-stream;q=0.8, */*;q=0.5")

		resp, err := client.Do(req)
		if err != nil {
			if !isRetryableNetErr(err) || attempt == o.RetryMax {
				return nil, fmt.Errorf("fetch %s: %w", ref, err)
			}
			lastErr = err
		} else {
			body, retryAfter, err := readResponse(resp, ref, maxBytes)
			if err == nil {
				log.Debug().Str("url", ref).Int("bytes", len(body)).Int("attempt", attempt).Msg("fetched source")
				return body, nil
			}
			var se *StatusError
			if !errors.As(err, &se) || !retryableStatus(se.StatusCode) || attempt == o.RetryMax {
				return nil, err
			}
			lastErr = err
			if retryAfter > 0 {
				log.Warn().Err(err).Dur("retry_after", retryAfter).Int("attempt", attempt).Msg("source fetch throttled")
				if err := sleepCtx(ctx, retryAfter); err != nil {
					return nil, err
				}
				continue
			}
		}
		sleep := withJitter(backoff)
		if sleep > o.MaxDelay {
			sleep = o.MaxDelay
		}
		log.Warn().Err(lastErr).Dur("backoff", sleep).Int("attempt", attempt).Msg("retrying source fetch")
		if err := sleepCtx(ctx, sleep); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, lastErr
}

func readResponse(resp *http.Response, ref string, maxBytes int64) ([]byte, time.Duration, error) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return nil, ra, &StatusError{URL: ref, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	b, err := readLimited(resp.Body, maxBytes)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", ref, err)
	}
	return b, 0, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds interprets Retry-After as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
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

// withJitter applies +/- 20% jitter.
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
