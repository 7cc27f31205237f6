// Package screener fetches Screener.in company pages and turns them into
// profit & loss, balance sheet and cash flow tables.
package screener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultBaseURL is the public Screener.in site.
const DefaultBaseURL = "https://www.screener.in"

// DefaultUserAgent is sent with every page request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

// ErrTickerNotFound is returned when the site has no page for a ticker.
var ErrTickerNotFound = errors.New("ticker not found")

// HTTPError is a non-success response from the site.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %s", e.URL, e.Status)
}

// Is lets a 404 match ErrTickerNotFound.
func (e *HTTPError) Is(target error) bool {
	return target == ErrTickerNotFound && e.StatusCode == http.StatusNotFound
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	RatePerSec   int  // page requests per second; 0 disables limiting
	Consolidated bool // prefer consolidated statements, falling back to standalone
}

// Client downloads and parses company pages.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *RateLimiter
	log     *slog.Logger
}

// NewClient creates a client; zero config fields take defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  slog.Default().With("component", "screener"),
	}
	if cfg.RatePerSec > 0 {
		c.limiter = NewRateLimiter(cfg.RatePerSec, time.Second)
	}
	return c
}

// Fetch downloads the company page for a normalized ticker.
func (c *Client) Fetch(ctx context.Context, ticker string) (*goquery.Document, error) {
	standalone := fmt.Sprintf("%s/company/%s/", c.cfg.BaseURL, url.PathEscape(ticker))
	if !c.cfg.Consolidated {
		return c.get(ctx, standalone)
	}

	doc, err := c.get(ctx, standalone+"consolidated/")
	if err == nil {
		return doc, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	c.log.Debug("consolidated page unavailable, trying standalone", "ticker", ticker, "error", err)
	return c.get(ctx, standalone)
}

func (c *Client) get(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	c.log.Debug("fetched page", "url", pageURL, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: pageURL}
	}

	return ParseDocument(resp.Body)
}

// ParseDocument parses an HTML company page.
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse screener HTML: %w", err)
	}
	return doc, nil
}
