package pricefetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"stock_watchlist_backend/services/metrics"
	"stock_watchlist_backend/services/retry"
)

// DefaultURLTemplate is the Stooq CSV quote endpoint; %s receives the query symbol.
const DefaultURLTemplate = "https://stooq.com/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv"

// maxBodyBytes bounds the quote body; a valid answer is two short lines
const maxBodyBytes = 64 << 10

// ErrFetchFailed is returned when every attempt to fetch a quote failed.
var ErrFetchFailed = errors.New("price fetch failed")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=pricefetcher -destination=mock_http_client_test.go -source=fetcher.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves the latest close price of a ticker from the quote source.
// It holds no shared mutable state and is safe for concurrent use.
type Fetcher struct {
	httpClient  HTTPClient
	urlTemplate string
	userAgent   string
	clock       clockwork.Clock
	policy      retry.Policy
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// Option is a configuration option for the Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client used for quote requests.
func WithHTTPClient(c HTTPClient) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithURLTemplate sets the quote URL template. It must contain one %s.
func WithURLTemplate(tmpl string) Option {
	return func(f *Fetcher) {
		f.urlTemplate = tmpl
	}
}

// WithClock sets the clock used for backoff sleeps.
func WithClock(c clockwork.Clock) Option {
	return func(f *Fetcher) {
		f.clock = c
	}
}

// WithPolicy overrides the retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithLogger sets the logger used for failed attempts.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// WithMetrics counts every attempt by result.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewHTTPClient returns an http.Client tuned for a single upstream host.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// New creates a Fetcher with the default policy (3 attempts, 500ms doubling backoff).
func New(options ...Option) *Fetcher {
	f := &Fetcher{
		httpClient:  NewHTTPClient(10 * time.Second),
		urlTemplate: DefaultURLTemplate,
		userAgent:   "Mozilla/5.0 (stock-watchlist)",
		clock:       clockwork.NewRealClock(),
		policy:      retry.DefaultPolicy(),
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		option(f)
	}
	return f
}

// Fetch returns the latest close price for ticker, retrying with backoff.
// The caller is blocked for the duration of all attempts and sleeps.
func (f *Fetcher) Fetch(ctx context.Context, ticker string) (float64, error) {
	symbol := QuerySymbol(ticker)

	policy := f.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		f.logger.Warn("quote fetch attempt failed",
			zap.String("ticker", ticker),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
	}

	price, err := retry.Do(ctx, f.clock, policy, func(ctx context.Context, _ int) (float64, error) {
		p, err := f.fetchOnce(ctx, symbol)
		f.metrics.FetchAttempt(err == nil)
		return p, err
	})
	if err != nil {
		return 0, fmt.Errorf("%w for %s: %w", ErrFetchFailed, ticker, err)
	}
	return price, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf(f.urlTemplate, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/csv, */*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused by the next attempt
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return 0, fmt.Errorf("quote source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	f.logger.Debug("fetched quote", zap.String("symbol", symbol), zap.Int("body_len", len(body)))
	return ParseClose(string(body))
}
