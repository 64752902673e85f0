package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maxaizer/bulk-scraper/internal/metrics"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxBodySize = 10 << 20

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

type FetchOptions struct {
	Headers map[string]string
	// Attempts is the maximum number of requests made for one url, at least one.
	Attempts int
	Timeout  time.Duration
}

type Client struct {
	httpClient     HTTPClient
	rateLimiter    *rate.Limiter
	userAgent      string
	backoff        time.Duration
	defaultTimeout time.Duration
	wait           func(ctx context.Context, d time.Duration) error
}

func NewClient(userAgent string) *Client {
	return &Client{
		httpClient:     &http.Client{},
		userAgent:      userAgent,
		backoff:        time.Second,
		defaultTimeout: 30 * time.Second,
		wait:           Sleep,
	}
}

func (c *Client) SetHTTPClient(client HTTPClient) {
	c.httpClient = client
}

// SetRateLimit caps requests across all sites; zero disables the limiter.
func (c *Client) SetRateLimit(maxRequestsPerSecond float32) {
	if maxRequestsPerSecond <= 0 {
		c.rateLimiter = nil
		return
	}
	c.rateLimiter = rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1)
}

// SetBackoff sets the base delay; attempt n waits n*base before the next try.
func (c *Client) SetBackoff(base time.Duration) {
	c.backoff = base
}

func (c *Client) SetDefaultTimeout(timeout time.Duration) {
	c.defaultTimeout = timeout
}

// FetchDocument downloads and parses an html page, retrying failed attempts.
func (c *Client) FetchDocument(ctx context.Context, url string, opts FetchOptions) (*goquery.Document, error) {

	attempts := max(opts.Attempts, 1)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		doc, err := c.fetchOnce(ctx, url, opts.Headers, timeout)
		if err == nil {
			metrics.FetchAttemptsCounter.WithLabelValues("success").Inc()
			return doc, nil
		}
		metrics.FetchAttemptsCounter.WithLabelValues("failure").Inc()
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Warnf("attempt %d/%d failed for %s: %v", attempt, attempts, url, err)
		if attempt == attempts {
			break
		}

		if err = c.wait(ctx, time.Duration(attempt)*c.backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", url, attempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string, headers map[string]string,
	timeout time.Duration) (*goquery.Document, error) {

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	c.applyHeaders(req, headers)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("error parsing html: %w", err)
	}
	return doc, nil
}

func (c *Client) applyHeaders(req *http.Request, headers map[string]string) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
