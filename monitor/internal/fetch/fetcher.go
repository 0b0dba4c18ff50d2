// Package fetch retrieves monitored guideline pages and reduces them to
// normalized visible text suitable for fingerprinting and diffing.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/guidewatch/guidewatch/safeurl"
)

// Result is the outcome of one page capture.
type Result struct {
	StatusCode int
	Text       string // normalized visible text
	Hash       string // SHA-256 hex of Text
}

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration // HTTP timeout. Default: 30s.
	MaxBytes int64         // Max response body size. Default: safeurl.MaxResponseBody.
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates URLs before fetch (SSRF prevention).
	// Default: safeurl.ValidateURL.
	URLValidator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = safeurl.MaxResponseBody
	}
	if c.UserAgent == "" {
		c.UserAgent = "guidewatch/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = safeurl.ValidateURL
	}
}

// Fetcher retrieves pages over HTTP with SSRF protection on redirects.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked (SSRF): %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves url, strips markup down to visible text, and returns the
// normalized text with its content hash. Non-2xx/3xx statuses are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	// SSRF: validate URL before request.
	if err := f.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("URL blocked (SSRF): %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return &Result{StatusCode: resp.StatusCode}, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := safeurl.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	text, err := NormalizeHTML(body)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	sum := sha256.Sum256([]byte(text))
	return &Result{
		StatusCode: resp.StatusCode,
		Text:       text,
		Hash:       hex.EncodeToString(sum[:]),
	}, nil
}
