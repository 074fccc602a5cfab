package ads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the ADS API base URL.
	BaseURL = "https://api.adsabs.harvard.edu/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit keeps bursts of lookups well under the ADS per-second limit.
	RateLimit = 5.0

	// DefaultSearchRows caps the number of candidates returned by Search.
	DefaultSearchRows = 20

	// searchFields are the fields requested for each search result.
	searchFields = "bibcode,title,doi,identifier"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 4096
)

// Client is a rate-limited HTTP client for the ADS API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	token      string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the API token sent as a bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithBaseURL sets the API base URL (a mirror, or a test server).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithRateLimit sets the maximum requests per second.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a new ADS API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Search returns the papers whose identifiers match identifier (a DOI or an
// arXiv ID). Zero or many results are not errors.
func (c *Client) Search(ctx context.Context, identifier string) ([]Paper, error) {
	identifier = strings.TrimSpace(strings.ReplaceAll(identifier, `"`, ""))
	if identifier == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", fmt.Sprintf(`identifier:"%s"`, identifier))
	params.Set("fl", searchFields)
	params.Set("rows", strconv.Itoa(DefaultSearchRows))

	body, err := c.do(ctx, http.MethodGet, "/search/query?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing search results: %v", ErrInvalidResponse, err)
	}
	if resp.Error != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Endpoint: "search", Message: resp.Error.Msg}
	}

	return resp.Response.Docs, nil
}

// ExportBibTeX returns the BibTeX records for bibcodes as one text blob.
func (c *Client) ExportBibTeX(ctx context.Context, bibcodes []string) (string, error) {
	if len(bibcodes) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(exportRequest{Bibcode: bibcodes})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/export/bibtex", payload)
	if err != nil {
		return "", err
	}

	var resp exportResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: parsing export: %v", ErrInvalidResponse, err)
	}

	return resp.Export, nil
}

// do performs one authenticated, rate-limited request and returns the body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if c.token == "" {
		return nil, fmt.Errorf("%w: no API token configured", ErrAuthError)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, path); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}
	return body, nil
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, path string) error {
	endpoint := strings.SplitN(strings.TrimPrefix(path, "/"), "?", 2)[0]

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
			msg += ", resets at " + reset
		}
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case resp.StatusCode >= 400:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Message: msg}
	}
	return nil
}
