package services

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// FetchClient is the HTTP client used for secondary fetches: pagination
// pages, platform continuation URLs, and flyer image downloads. Every
// call carries its own timeout; failures are normal results for callers,
// which degrade to "no result from this branch".
type FetchClient struct {
	httpClient  *http.Client
	userAgents  []string
	retryConfig RetryConfig
	maxBodySize int64
}

// RetryConfig defines retry behavior for failed requests
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NewFetchClient creates a fetch client with browser-like defaults
func NewFetchClient() *FetchClient {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},
		DisableKeepAlives: false,
		IdleConnTimeout:   90 * time.Second,
	}

	return &FetchClient{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		retryConfig: RetryConfig{
			MaxRetries:    2,
			InitialDelay:  1 * time.Second,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
		},
		maxBodySize: 10 << 20, // 10 MiB
	}
}

// NewFetchClientWithTimeout creates a fetch client with a custom timeout
func NewFetchClientWithTimeout(timeout time.Duration) *FetchClient {
	client := NewFetchClient()
	client.httpClient.Timeout = timeout
	return client
}

// Fetch retrieves a URL with retries and returns the response body.
// Client errors (4xx) are not retried.
func (f *FetchClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}

	var lastErr error
	for attempt := 0; attempt <= f.retryConfig.MaxRetries; attempt++ {
		body, err := f.attemptFetch(ctx, url, attempt)
		if err == nil {
			return body, nil
		}

		lastErr = err

		// Don't retry client errors or a canceled context
		if strings.Contains(err.Error(), "status 4") || ctx.Err() != nil {
			break
		}

		if attempt < f.retryConfig.MaxRetries {
			time.Sleep(f.calculateDelay(attempt))
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", f.retryConfig.MaxRetries+1, lastErr)
}

// attemptFetch performs a single fetch attempt
func (f *FetchClient) attemptFetch(ctx context.Context, url string, attempt int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Rotate user agent on retries
	req.Header.Set("User-Agent", f.userAgents[attempt%len(f.userAgents)])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if attempt > 0 {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned status %d for %s", resp.StatusCode, url)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// calculateDelay calculates exponential backoff delay with jitter
func (f *FetchClient) calculateDelay(attempt int) time.Duration {
	delay := float64(f.retryConfig.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= f.retryConfig.BackoffFactor
	}
	delay += rand.Float64() * 0.1 * float64(f.retryConfig.InitialDelay)

	if delay > float64(f.retryConfig.MaxDelay) {
		delay = float64(f.retryConfig.MaxDelay)
	}
	return time.Duration(delay)
}
