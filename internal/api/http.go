package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alvmarrod/follow-weaver/internal/storage"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const ctxResponseKey = "response"

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
}

// HTTPClient talks to the follow-graph API over HTTP with a colly collector
type HTTPClient struct {
	cfg       HTTPConfig
	base      *url.URL
	collector *colly.Collector
	now       func() time.Time
}

// NewHTTPClient creates a client for the API at cfg.BaseURL
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "follow-weaver"
	}

	c := &HTTPClient{
		cfg:  cfg,
		base: base,
		now:  time.Now,
	}
	c.setupColly()
	return c, nil
}

// setupColly configures the collector with callbacks
func (c *HTTPClient) setupColly() {
	c.collector = colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.UserAgent(c.cfg.UserAgent),
	)
	c.collector.SetRequestTimeout(c.cfg.Timeout)

	c.collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		if c.cfg.Token != "" {
			r.Headers.Set("Authorization", "Bearer "+c.cfg.Token)
		}
	})

	// Every status reaches OnResponse; classification happens after Request returns
	c.collector.OnResponse(func(r *colly.Response) {
		logrus.Debugf("API %s -> %d (%d bytes)", r.Request.URL, r.StatusCode, len(r.Body))
		r.Ctx.Put(ctxResponseKey, r)
	})

	c.collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Request != nil {
			logrus.Debugf("API request %s failed: %v", r.Request.URL, err)
			return
		}
		logrus.Debugf("API request failed: %v", err)
	})
}

// get performs one GET and returns the body of a 2xx response
func (c *HTTPClient) get(ctx context.Context, query url.Values, elem ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u := c.base.JoinPath(elem...)
	u.RawQuery = query.Encode()

	reqCtx := colly.NewContext()
	if err := c.collector.Request(http.MethodGet, u.String(), nil, reqCtx, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("api: GET %s: %w", u.Path, err)
	}

	resp, ok := reqCtx.GetAny(ctxResponseKey).(*colly.Response)
	if !ok {
		return nil, fmt.Errorf("%w: no response for %s", ErrMalformed, u.Path)
	}
	if err := c.classify(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// classify maps a response status to the package error taxonomy
func (c *HTTPClient) classify(resp *colly.Response) error {
	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code == 420:
		return &RateLimitError{RetryAfter: c.retryAfter(resp.Headers)}
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return &StatusError{Code: code, Status: http.StatusText(code)}
	}
}

// retryAfter reads the server's backoff hint from Retry-After (seconds or
// HTTP date) or X-Rate-Limit-Reset (unix seconds)
func (c *HTTPClient) retryAfter(h *http.Header) time.Duration {
	if h == nil {
		return 0
	}

	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil {
			return positive(at.Sub(c.now()))
		}
	}

	if v := strings.TrimSpace(h.Get("X-Rate-Limit-Reset")); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return positive(time.Unix(epoch, 0).Sub(c.now()))
		}
	}
	return 0
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// GetUser fetches the user object for id
func (c *HTTPClient) GetUser(ctx context.Context, id storage.NodeID) (storage.Attributes, error) {
	body, err := c.get(ctx, nil, "users", url.PathEscape(string(id)))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: user %s is not JSON", ErrMalformed, id)
	}
	return storage.Attributes(body), nil
}

type followingPage struct {
	IDs        []json.RawMessage `json:"ids"`
	NextCursor json.RawMessage   `json:"next_cursor"`
}

// GetFollowing walks every page of the following list of id
func (c *HTTPClient) GetFollowing(ctx context.Context, id storage.NodeID) ([]storage.NodeID, error) {
	targets := make([]storage.NodeID, 0)
	seenCursors := make(map[string]bool)
	cursor := ""

	for {
		var query url.Values
		if cursor != "" {
			query = url.Values{"cursor": {cursor}}
		}

		body, err := c.get(ctx, query, "users", url.PathEscape(string(id)), "following")
		if err != nil {
			return nil, err
		}

		var page followingPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: following page for %s: %v", ErrMalformed, id, err)
		}
		for _, raw := range page.IDs {
			target, err := parseID(raw)
			if err != nil {
				return nil, err
			}
			targets = append(targets, target)
		}

		cursor = nextCursor(page.NextCursor)
		if cursor == "" {
			return targets, nil
		}
		if seenCursors[cursor] {
			return nil, fmt.Errorf("%w: cursor %s repeated for %s", ErrMalformed, cursor, id)
		}
		seenCursors[cursor] = true
		logrus.Debugf("Following list of %s continues at cursor %s (%d so far)", id, cursor, len(targets))
	}
}

// nextCursor returns "" when the listing is complete
func nextCursor(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	next, err := parseID(raw)
	if err != nil || next == "0" {
		return ""
	}
	return string(next)
}

// LookupHandle resolves a handle (without the leading @) to an id
func (c *HTTPClient) LookupHandle(ctx context.Context, handle string) (storage.NodeID, error) {
	body, err := c.get(ctx, nil, "users", "by", "handle", url.PathEscape(handle))
	if err != nil {
		return "", err
	}

	var user struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("%w: handle %s: %v", ErrMalformed, handle, err)
	}
	return parseID(user.ID)
}

// Verify checks that the token is accepted
func (c *HTTPClient) Verify(ctx context.Context) error {
	_, err := c.get(ctx, nil, "account", "verify")
	return err
}
