package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"jobagent/collector-service/internal/model"
)

const (
	DefaultUserAgent = "JobAutomationAgent/0.1 (+https://localhost)"
	FeedAccept       = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	JSONAccept       = "application/json"
	HTMLAccept       = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5"

	DefaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
	defaultBaseDelay  = 200 * time.Millisecond
	maxBodyBytes      = 10 << 20
)

var errBadRequest = errors.New("invalid request")

// FetchGuard is consulted around every fetch. Before may refuse the URL;
// After is told how the fetch went.
type FetchGuard interface {
	Before(ctx context.Context, rawURL string) error
	After(rawURL string, err error)
}

// Fetcher performs bounded GET requests. Transport failures are retried a
// small number of times; HTTP error statuses are returned as-is.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	guard      FetchGuard
	logger     *slog.Logger
}

// FetcherOption customises a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client. Its Timeout should be zero:
// the per-call timeout is applied through the request context.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithRetry overrides the retry count and the first backoff delay.
func WithRetry(maxRetries int, baseDelay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.maxRetries = maxRetries
		f.baseDelay = baseDelay
	}
}

// WithGuard installs a site policy guard.
func WithGuard(g FetchGuard) FetcherOption {
	return func(f *Fetcher) { f.guard = g }
}

// NewFetcher constructs a Fetcher. Redirects are followed by the default
// client policy.
func NewFetcher(userAgent string, logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	f := &Fetcher{
		client:     &http.Client{},
		userAgent:  userAgent,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		logger:     logger,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch retrieves a feed document.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	return f.Get(ctx, rawURL, FeedAccept, timeout)
}

// Get retrieves rawURL with the given Accept header. timeout bounds the
// whole call, retries included. Every failure is a *model.FetchError.
func (f *Fetcher) Get(ctx context.Context, rawURL, accept string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if f.guard != nil {
		if err := f.guard.Before(ctx, rawURL); err != nil {
			return nil, &model.FetchError{URL: rawURL, Err: err}
		}
	}

	body, err := f.getWithRetry(ctx, rawURL, accept)
	if f.guard != nil {
		f.guard.After(rawURL, err)
	}
	return body, err
}

func (f *Fetcher) getWithRetry(ctx context.Context, rawURL, accept string) ([]byte, error) {
	body, err := f.do(ctx, rawURL, accept)
	for attempt := 1; err != nil && attempt <= f.maxRetries && f.retryable(ctx, err); attempt++ {
		delay := f.backoffDelay(attempt)
		f.logger.Warn("retrying fetch after transport error",
			"url", rawURL,
			"attempt", attempt,
			"max_retries", f.maxRetries,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, &model.FetchError{URL: rawURL, Err: fmt.Errorf("retry cancelled: %w", ctx.Err())}
		case <-time.After(delay):
		}

		body, err = f.do(ctx, rawURL, accept)
	}
	return body, err
}

func (f *Fetcher) do(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &model.FetchError{URL: rawURL, Err: fmt.Errorf("%w: %v", errBadRequest, err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &model.FetchError{URL: rawURL, Err: fmt.Errorf("http GET: %w", err)}
	}
	defer resp.Body.Close()

	// net/http does not follow a 3xx without Location, nor a 304.
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &model.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("upstream returned %d: %s", resp.StatusCode, snippet),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &model.FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// retryable is true only for transport failures while the deadline holds.
func (f *Fetcher) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var fe *model.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != 0 {
		return false
	}
	return !errors.Is(err, errBadRequest) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (f *Fetcher) backoffDelay(attempt int) time.Duration {
	d := f.baseDelay << (attempt - 1)
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int63n(int64(d/2+1)))
}
