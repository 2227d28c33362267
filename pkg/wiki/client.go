// Package wiki provides a client for the MediaWiki query API.
package wiki

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/openqb/qantagen/internal/resilience"
)

// Client defines the MediaWiki operations used for answer resolution.
type Client interface {
	// Search runs a full-text search and returns matching pages, best match
	// first. No matches is an empty slice, not an error.
	Search(ctx context.Context, query string) ([]SearchResult, error)
	// Extract fetches the plain-text body of a page by exact title. A
	// missing page returns an empty string and no error.
	Extract(ctx context.Context, title string) (string, error)
}

// SearchResult is a single full-text search hit.
type SearchResult struct {
	Title     string `json:"title"`
	PageID    int64  `json:"pageid"`
	WordCount int    `json:"wordcount"`
	Snippet   string `json:"snippet"`
}

// apiError is the error envelope MediaWiki returns with a 200 status.
type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type searchEnvelope struct {
	Error *apiError `json:"error"`
	Query struct {
		Search []SearchResult `json:"search"`
	} `json:"query"`
}

type extractEnvelope struct {
	Error *apiError `json:"error"`
	Query struct {
		Pages []struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
			Missing bool   `json:"missing"`
		} `json:"pages"`
	} `json:"query"`
}

// Option configures the wiki client.
type Option func(*httpClient)

// WithBaseURL sets a custom API endpoint (for testing or non-Wikipedia wikis).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithUserAgent sets the User-Agent header. Wikipedia asks API consumers to
// identify themselves with a contact URL.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithSearchLimit caps the number of search results per query.
func WithSearchLimit(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// Non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the attempt budget and base backoff for transient failures.
func WithRetry(attempts, backoffMS int) Option {
	return func(c *httpClient) {
		c.retry = resilience.Settings(attempts, backoffMS)
	}
}

// WithBreaker configures the circuit breaker tripped by consecutive
// transport failures.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(c *httpClient) {
		c.breaker = resilience.NewBreaker(threshold, cooldown)
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	limit     int
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *resilience.Breaker
	retry     resilience.RetryConfig
}

// NewClient creates a MediaWiki API client pointed at English Wikipedia.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   "https://en.wikipedia.org/w/api.php",
		userAgent: "qantagen/1.0 (https://github.com/openqb/qantagen)",
		limit:     5,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		breaker: resilience.NewBreaker(0, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{
		"action":        {"query"},
		"list":          {"search"},
		"srsearch":      {query},
		"srlimit":       {strconv.Itoa(c.limit)},
		"srprop":        {"wordcount|snippet"},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	body, err := c.do(ctx, "wiki_search", params)
	if err != nil {
		return nil, eris.Wrap(err, "wiki: search request failed")
	}

	var env searchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "wiki: unmarshal search response")
	}
	if env.Error != nil {
		return nil, eris.Errorf("wiki: api error %s: %s", env.Error.Code, env.Error.Info)
	}

	return env.Query.Search, nil
}

func (c *httpClient) Extract(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":        {"query"},
		"prop":          {"extracts"},
		"explaintext":   {"true"},
		"exlimit":       {"1"},
		"redirects":     {"1"},
		"titles":        {title},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	body, err := c.do(ctx, "wiki_extract", params)
	if err != nil {
		return "", eris.Wrap(err, "wiki: extract request failed")
	}

	var env extractEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", eris.Wrap(err, "wiki: unmarshal extract response")
	}
	if env.Error != nil {
		return "", eris.Errorf("wiki: api error %s: %s", env.Error.Code, env.Error.Info)
	}

	pages := env.Query.Pages
	if len(pages) == 0 || pages[0].Missing {
		return "", nil
	}
	return pages[0].Extract, nil
}

// do runs one API call with rate limiting, circuit breaking, and retries on
// transient failures. It returns the response body of a 200 response.
func (c *httpClient) do(ctx context.Context, op string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "wiki: rate limiter")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "wiki: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger(op)

	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		if err := c.breaker.Allow(); err != nil {
			return nil, err
		}
		body, err := c.roundTrip(ctx, req)
		c.breaker.Record(err)
		return body, err
	})
}

func (c *httpClient) roundTrip(ctx context.Context, req *http.Request) ([]byte, error) {
	// Clone so each retry gets a fresh request (GET, no body).
	resp, err := c.http.Do(req.Clone(ctx))
	if err != nil {
		return nil, err
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, eris.Wrap(readErr, "wiki: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("wiki: status %d: %s", resp.StatusCode, string(body))
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.MarkTransient(err, resp.StatusCode)
		}
		return nil, err
	}
	return body, nil
}
