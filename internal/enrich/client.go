// Package enrich retrieves bibliographic metadata from Crossref and merges
// it into records that pass a retrieval similarity gate.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Crossref REST API base URL.
	BaseURL = "https://api.crossref.org"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit keeps us inside Crossref's polite pool allowance.
	RateLimit = 10.0

	// DefaultSearchRows is how many candidates a bibliographic query returns.
	DefaultSearchRows = 5
)

// Client is a rate-limited HTTP client for the Crossref works API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithMailto sets the contact address sent with every request, which moves
// requests into Crossref's polite pool.
func WithMailto(addr string) ClientOption {
	return func(c *Client) {
		c.mailto = addr
	}
}

// NewClient creates a new Crossref works client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
	}

	if addr := os.Getenv("CROSSREF_MAILTO"); addr != "" {
		c.mailto = addr
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Work is one Crossref work as the REST API delivers it.
type Work struct {
	DOI            string       `json:"DOI"`
	Type           string       `json:"type"`
	Title          []string     `json:"title"`
	ContainerTitle []string     `json:"container-title"`
	Author         []workAuthor `json:"author"`
	Issued         workDate     `json:"issued"`
	Volume         string       `json:"volume"`
	Issue          string       `json:"issue"`
	Page           string       `json:"page"`
}

type workAuthor struct {
	Family string `json:"family"`
	Given  string `json:"given"`
}

type workDate struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the publication year as a string, or "" when absent.
func (w *Work) Year() string {
	if len(w.Issued.DateParts) == 0 || len(w.Issued.DateParts[0]) == 0 {
		return ""
	}
	return strconv.Itoa(w.Issued.DateParts[0][0])
}

// Authors renders the author list in "Family, Given and Family, Given" form.
func (w *Work) Authors() string {
	parts := make([]string, 0, len(w.Author))
	for _, a := range w.Author {
		switch {
		case a.Family != "" && a.Given != "":
			parts = append(parts, a.Family+", "+a.Given)
		case a.Family != "":
			parts = append(parts, a.Family)
		}
	}
	return strings.Join(parts, " and ")
}

// GetWork fetches a single work by DOI.
func (c *Client) GetWork(ctx context.Context, doi string) (*Work, error) {
	var wrapper struct {
		Message Work `json:"message"`
	}
	path := "/works/" + url.PathEscape(doi)
	if err := c.get(ctx, path, nil, &wrapper); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: doi %s", ErrNotFound, doi)
		}
		return nil, err
	}
	if wrapper.Message.DOI == "" {
		return nil, fmt.Errorf("%w: doi %s", ErrNotFound, doi)
	}
	return &wrapper.Message, nil
}

// SearchWorks queries works by free-form bibliographic text (title plus
// authors), returning up to rows candidates in relevance order.
func (c *Client) SearchWorks(ctx context.Context, bibliographic string, rows int) ([]*Work, error) {
	if rows <= 0 {
		rows = DefaultSearchRows
	}

	params := url.Values{}
	params.Set("query.bibliographic", bibliographic)
	params.Set("rows", strconv.Itoa(rows))

	var wrapper struct {
		Message struct {
			Items []*Work `json:"items"`
		} `json:"message"`
	}
	if err := c.get(ctx, "/works", params, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Message.Items, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}
	u := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response) error {
	if resp.StatusCode == 404 {
		return ErrNotFound
	}
	if resp.StatusCode == 429 {
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}
	return nil
}
