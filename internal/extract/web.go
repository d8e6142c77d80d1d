package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"research-backend/internal/contextutil"
)

// maxPageBytes caps how much of a response body is read.
const maxPageBytes = 10 << 20

// ErrFetch is returned when a page cannot be retrieved.
var ErrFetch = errors.New("fetch failed")

// WebFetcher downloads pages and returns their visible text. Requests are
// throttled with a token bucket shared by all callers.
type WebFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string

	mu      sync.Mutex
	retryAt time.Time
}

// NewWebFetcher creates a fetcher with a per-request timeout and a sustained
// request rate of rps.
func NewWebFetcher(timeout time.Duration, rps float64) *WebFetcher {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &WebFetcher{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		userAgent: "research-backend/1.0",
	}
}

// Fetch retrieves rawURL and extracts its text. Only http and https URLs are
// accepted. HTML is stripped of markup; text/plain is returned as is.
func (f *WebFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: invalid url %q", ErrFetch, rawURL)
	}

	if err := f.wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		seconds, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		f.backoff(seconds)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), contentType)
	if err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrFetch, err)
	}

	var text string
	if strings.HasPrefix(strings.ToLower(contentType), "text/plain") {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("%w: read body: %v", ErrFetch, err)
		}
		text = strings.TrimSpace(string(raw))
	} else {
		text, err = HTMLText(body)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrFetch, err)
		}
	}

	logger.DebugContext(ctx, "fetched page", "url", u.String(), "status", resp.StatusCode, "chars", len(text))
	return text, nil
}

func (f *WebFetcher) wait(ctx context.Context) error {
	f.mu.Lock()
	retryAt := f.retryAt
	f.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}
	return f.limiter.Wait(ctx)
}

// backoff delays subsequent fetches after a 429 response.
func (f *WebFetcher) backoff(seconds int) {
	if seconds <= 0 {
		seconds = 5
	}
	if seconds > 60 {
		seconds = 60
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryAt = time.Now().Add(time.Duration(seconds) * time.Second)
}
