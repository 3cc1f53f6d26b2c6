package osint

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultFetchTimeout = 5 * time.Second
	maxPageBytes        = 2 << 20
	pageUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// PageFetcher downloads profile pages and reduces them to short previews.
type PageFetcher struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// FetcherOption customizes a PageFetcher.
type FetcherOption func(*PageFetcher)

// WithHTTPClient overrides the default client (insecure TLS, redirects followed).
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *PageFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithFetchTimeout sets the per-page deadline.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *PageFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithFetchLogger sets the logger used for per-page failures.
func WithFetchLogger(logger *slog.Logger) FetcherOption {
	return func(f *PageFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewPageFetcher builds a fetcher. Targets are arbitrary third-party sites,
// so certificate verification is disabled on the default transport.
func NewPageFetcher(opts ...FetcherOption) *PageFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // untrusted third-party profile pages
	f := &PageFetcher{
		client:  &http.Client{Transport: transport},
		timeout: defaultFetchTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Preview fetches one page and returns its truncated text.
func (f *PageFetcher) Preview(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("osint: build request: %w", err)
	}
	req.Header.Set("User-Agent", pageUserAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("osint: fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("osint: fetch %s: %s", target, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("osint: read %s: %w", target, err)
	}
	return Preview(ExtractText(string(body))), nil
}

// Summarize fills PageSummary for every account concurrently. A failed fetch
// leaves that one summary empty; it never affects the others.
func (f *PageFetcher) Summarize(ctx context.Context, accounts []Account) {
	var wg sync.WaitGroup
	for i := range accounts {
		wg.Add(1)
		go func(acc *Account) {
			defer wg.Done()
			summary, err := f.Preview(ctx, acc.URL)
			if err != nil {
				f.logger.Debug("osint page fetch failed", "url", acc.URL, "error", err)
				return
			}
			acc.PageSummary = summary
		}(&accounts[i])
	}
	wg.Wait()
}
