// Package gitlab provides a rate-limited client for the GitLab repository API.
package gitlab

import (
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

	"github.com/matsen/versiondiff/internal/commit"
)

const (
	// DefaultTimeout is the HTTP client timeout. Callers usually set a tighter
	// per-call deadline on the context.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is the default request rate in requests per second.
	DefaultRateLimit = 20.0

	// DefaultBurst allows a full worker pool to start at once.
	DefaultBurst = 10

	// MaxPerPage is the largest page size GitLab accepts.
	MaxPerPage = 100

	// tagsPerPage is the page size used when listing tags.
	tagsPerPage = 100

	userAgent = "vdiff-cli"
)

// Client is a GitLab API client scoped to a single project.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	projectID  string
	token      string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the private access token applied to every call.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the request rate (requests per second) and burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a client for the project at baseURL (e.g. https://gitlab.example.com).
// projectID may be a numeric ID or a "group/project" path.
func NewClient(baseURL, projectID string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
		baseURL:    strings.TrimRight(baseURL, "/"),
		projectID:  projectID,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ProjectID returns the project this client is scoped to.
func (c *Client) ProjectID() string {
	return c.projectID
}

// projectURL builds an API URL under the project's repository namespace.
func (c *Client) projectURL(path string, params url.Values) string {
	u := fmt.Sprintf("%s/api/v4/projects/%s/repository/%s", c.baseURL, url.PathEscape(c.projectID), path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// get performs a rate-limited GET and returns the response for a 200 status.
// The caller must close the body.
func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("rate limiter: %w", ctxErr)
		}
		// The wait would overrun the deadline. A later attempt with a fresh
		// deadline can still get a token.
		return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("PRIVATE-TOKEN", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkError, err)
	}

	if err := checkStatus(resp, endpoint); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}

// checkStatus maps non-200 statuses onto the client's error taxonomy.
func checkStatus(resp *http.Response, endpoint string) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrRefNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    strings.TrimSpace(string(body)),
		}
	}
}

// ListCommits fetches one page of the commits reachable from ref.
// An empty slice means the page is past the end of the history.
func (c *Client) ListCommits(ctx context.Context, ref string, page, perPage int) ([]commit.Record, error) {
	params := url.Values{}
	params.Set("ref_name", ref)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	resp, err := c.get(ctx, c.projectURL("commits", params))
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", err, ref)
		}
		return nil, err
	}
	defer resp.Body.Close()

	var records []commit.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decoding commits page %d: %w", ErrInvalidResponse, page, err)
	}

	return records, nil
}

// Tag is a repository tag.
type Tag struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
	Target  string `json:"target"`
	Commit  struct {
		ID            string `json:"id"`
		CommittedDate string `json:"committed_date"`
	} `json:"commit"`
}

// ListTags fetches every tag of the project, following the X-Next-Page header.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	var all []Tag
	page := 1
	for page > 0 {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(tagsPerPage))

		resp, err := c.get(ctx, c.projectURL("tags", params))
		if err != nil {
			return nil, err
		}

		var tags []Tag
		err = json.NewDecoder(resp.Body).Decode(&tags)
		next := resp.Header.Get("X-Next-Page")
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: decoding tags page %d: %w", ErrInvalidResponse, page, err)
		}

		all = append(all, tags...)

		// An empty header on the last page parses to 0 and ends the loop.
		page, _ = strconv.Atoi(next)
		if len(tags) == 0 {
			page = 0
		}
	}

	return all, nil
}
