package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const coverURLFormat = "https://covers.openlibrary.org/b/id/%d-L.jpg"

const maxSubjects = 10

// TimeoutError reports that Open Library did not answer within the
// client timeout, after all retries.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("openlibrary: request timed out after %s", e.Timeout)
}

// APIError reports an HTTP-level failure talking to Open Library.
// StatusCode is zero for transport errors.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("openlibrary: unexpected status code %d", e.StatusCode)
	}
	return fmt.Sprintf("openlibrary: request failed: %v", e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	RPS        int
}

// Client queries the Open Library search API. It holds one reusable
// HTTP connection pool; Close releases it at process shutdown.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openlibrary.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 2
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(cfg.RPS)), 1),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// Close releases the outbound connection pool.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// searchResponse matches search.json. Every field is optional; absent
// or malformed values are simply not extracted.
type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Title            string   `json:"title"`
	AuthorNames      []string `json:"author_name"`
	CoverID          int      `json:"cover_i"`
	Subjects         []string `json:"subject"`
	Publishers       []string `json:"publisher"`
	Languages        []string `json:"language"`
	Description      any      `json:"description"` // string or {"value": ...}
	FirstPublishYear int      `json:"first_publish_year"`
}

// Enrich looks up supplementary metadata, by ISBN first and by
// title+author as fallback. Only the first candidate document is used;
// no match yields an empty map and no error.
func (c *Client) Enrich(ctx context.Context, title, author, isbn string) (map[string]any, error) {
	if isbn != "" {
		data, err := c.SearchByISBN(ctx, isbn)
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			return data, nil
		}
	}
	return c.SearchByTitleAuthor(ctx, title, author)
}

// SearchByISBN returns extracted metadata for the best ISBN match.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) (map[string]any, error) {
	params := url.Values{}
	params.Set("isbn", isbn)
	params.Set("limit", "1")
	return c.search(ctx, params)
}

// SearchByTitleAuthor returns extracted metadata for the best
// title+author match.
func (c *Client) SearchByTitleAuthor(ctx context.Context, title, author string) (map[string]any, error) {
	params := url.Values{}
	params.Set("title", title)
	params.Set("author", author)
	params.Set("limit", "1")
	return c.search(ctx, params)
}

func (c *Client) search(ctx context.Context, params url.Values) (map[string]any, error) {
	var res searchResponse
	if err := c.get(ctx, c.baseURL+"/search.json?"+params.Encode(), &res); err != nil {
		return nil, err
	}
	if len(res.Docs) == 0 {
		return map[string]any{}, nil
	}
	return extractDoc(res.Docs[0]), nil
}

// get performs a GET with bounded retries. Timeouts and 5xx (plus 429)
// responses are retried with exponential backoff; other failure
// statuses surface immediately.
func (c *Client) get(ctx context.Context, rawURL string, target any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				lastErr = &APIError{StatusCode: resp.StatusCode}
				continue
			}
			return &APIError{StatusCode: resp.StatusCode}
		}

		err = json.NewDecoder(resp.Body).Decode(target)
		resp.Body.Close()
		if err != nil {
			return &APIError{Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	if isTimeout(lastErr) {
		return &TimeoutError{Timeout: c.httpClient.Timeout}
	}
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		return apiErr
	}
	return &APIError{Err: lastErr}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func extractDoc(doc searchDoc) map[string]any {
	out := map[string]any{}

	if doc.CoverID != 0 {
		out["cover_url"] = fmt.Sprintf(coverURLFormat, doc.CoverID)
	}
	if len(doc.Subjects) > 0 {
		subjects := doc.Subjects
		if len(subjects) > maxSubjects {
			subjects = subjects[:maxSubjects]
		}
		out["subjects"] = subjects
	}
	if len(doc.Publishers) > 0 {
		out["publisher"] = doc.Publishers[0]
	}
	if len(doc.Languages) > 0 {
		out["language"] = doc.Languages[0]
	}
	if desc := descriptionText(doc.Description); desc != "" {
		out["description"] = desc
	}
	if len(doc.AuthorNames) > 0 {
		out["author_full"] = doc.AuthorNames[0]
	}
	if doc.Title != "" {
		out["title_full"] = doc.Title
	}
	if doc.FirstPublishYear != 0 {
		out["first_publish_year"] = doc.FirstPublishYear
	}

	return out
}

func descriptionText(description any) string {
	if s, ok := description.(string); ok {
		return s
	}
	if m, ok := description.(map[string]any); ok {
		if v, ok := m["value"].(string); ok {
			return v
		}
	}
	return ""
}
