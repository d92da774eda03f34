// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/litsearch/internal/httputil"
	"github.com/pdiddy/litsearch/pkg/types"
)

// MaxPageSize is the Semantic Scholar per-request result cap without an
// API key. Requests never ask for more than this regardless of the
// configured maximum.
const MaxPageSize = 100

const scholarFields = "title,abstract,authors,year,publicationDate,journal,externalIds,url"

// ErrRateLimited reports that the search API kept answering 429 after the
// bounded backoff retries. The orchestrator treats it as end-of-paging and
// keeps what was gathered.
var ErrRateLimited = errors.New("search API rate limit exceeded")

// PageError reports a failure scoped to a single page of results. The
// orchestrator skips the page and continues with the next one.
type PageError struct {
	Offset int
	Err    error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("fetching page at offset %d: %v", e.Offset, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// RawPaper is one record as returned by the Semantic Scholar graph API.
type RawPaper struct {
	PaperID         string `json:"paperId"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	Year            int    `json:"year"`
	PublicationDate string `json:"publicationDate"`
	URL             string `json:"url"`
	Journal         struct {
		Name string `json:"name"`
	} `json:"journal"`
	ExternalIDs struct {
		DOI   string `json:"DOI"`
		ArXiv string `json:"ArXiv"`
	} `json:"externalIds"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

// Page is one page of raw results plus the total the source reports.
type Page struct {
	Records []RawPaper
	Total   int
}

// Fetcher retrieves one page of raw results for a query and window.
// A second search backend would be another implementation behind this
// interface, not a special case in the orchestrator.
type Fetcher interface {
	Fetch(ctx context.Context, query string, window Window, offset, limit int) (Page, error)
	Source() string
}

// ScholarClient queries the Semantic Scholar paper search endpoint. A
// rate.Limiter enforces the minimum one-second spacing between consecutive
// outbound calls; the limiter is shared by every request the client makes,
// so one client per process keeps the spacing process-wide.
type ScholarClient struct {
	client     *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	userAgent  string
	maxRetries int
	log        zerolog.Logger
}

// ScholarOption configures a ScholarClient.
type ScholarOption func(*ScholarClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ScholarOption {
	return func(c *ScholarClient) { c.client = hc }
}

// WithBaseURL overrides the API endpoint (for httptest servers).
func WithBaseURL(u string) ScholarOption {
	return func(c *ScholarClient) { c.baseURL = u }
}

// WithAPIKey sets the Semantic Scholar API key.
func WithAPIKey(key string) ScholarOption {
	return func(c *ScholarClient) { c.apiKey = key }
}

// WithLogger sets the diagnostics logger.
func WithLogger(log zerolog.Logger) ScholarOption {
	return func(c *ScholarClient) { c.log = log }
}

// WithRequestInterval overrides the minimum spacing between outbound calls.
// Tests use a zero interval to avoid real sleeps.
func WithRequestInterval(d time.Duration) ScholarOption {
	return func(c *ScholarClient) {
		c.limiter = rate.NewLimiter(intervalLimit(d), 1)
	}
}

func intervalLimit(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// NewScholarClient builds a client from the search configuration.
func NewScholarClient(cfg types.SearchConfig, opts ...ScholarOption) *ScholarClient {
	c := &ScholarClient{
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		baseURL:    "https://api.semanticscholar.org/graph/v1/paper/search",
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRateRetries,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns the backend identifier recorded in exports.
func (c *ScholarClient) Source() string { return "semantic_scholar" }

// Fetch retrieves one page of results. HTTP 429 responses are retried with
// bounded exponential backoff and surface ErrRateLimited when exhausted.
// Transport failures are retried once and then surface a *PageError, as do
// unexpected status codes and undecodable bodies.
func (c *ScholarClient) Fetch(ctx context.Context, query string, window Window, offset, limit int) (Page, error) {
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	params := url.Values{
		"query":  {query},
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
		"fields": {scholarFields},
	}
	if window.Kind == WindowMonthRange {
		params.Set("publicationDateOrRange", window.dateFilter())
	} else {
		params.Set("year", window.yearFilter())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Page{}, &PageError{Offset: offset, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.do(ctx, req, offset)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Page{}, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return Page{}, &PageError{Offset: offset, Err: fmt.Errorf("search API returned HTTP %d", resp.StatusCode)}
	}

	var sr struct {
		Total int        `json:"total"`
		Data  []RawPaper `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return Page{}, &PageError{Offset: offset, Err: fmt.Errorf("parsing response: %w", err)}
	}

	return Page{Records: sr.Data, Total: sr.Total}, nil
}

// do issues the request under the rate limiter, retrying a transport-level
// failure once before giving up on the page.
func (c *ScholarClient) do(ctx context.Context, req *http.Request, offset int) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.log.Warn().Int("offset", offset).Err(err).Msg("request failed, retrying once")
	if werr := c.limiter.Wait(ctx); werr != nil {
		return nil, werr
	}
	resp, err = httputil.DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err != nil {
		return nil, &PageError{Offset: offset, Err: err}
	}
	return resp, nil
}
