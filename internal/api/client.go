package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alvmarrod/follow-weaver/internal/storage"
)

// Client is the remote follow-graph API
type Client interface {
	// GetUser returns the user object for id, kept verbatim
	GetUser(ctx context.Context, id storage.NodeID) (storage.Attributes, error)
	// GetFollowing returns every id followed by id, in API order, across all pages
	GetFollowing(ctx context.Context, id storage.NodeID) ([]storage.NodeID, error)
	// LookupHandle resolves a screen handle to its id
	LookupHandle(ctx context.Context, handle string) (storage.NodeID, error)
	// Verify checks the configured credentials
	Verify(ctx context.Context) error
}

var (
	ErrNotFound     = errors.New("api: not found")
	ErrForbidden    = errors.New("api: forbidden")
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrRateLimited  = errors.New("api: rate limited")
	ErrMalformed    = errors.New("api: malformed response")
)

// RateLimitError is returned when the request budget is exhausted.
// RetryAfter is zero when the server gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("api: rate limited, retry after %v", e.RetryAfter)
	}
	return "api: rate limited"
}

// Is makes errors.Is(err, ErrRateLimited) match
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// StatusError carries an unexpected HTTP status
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: unexpected status %d %s", e.Code, e.Status)
}

// parseID accepts an id encoded either as a JSON string or a JSON number
func parseID(raw json.RawMessage) (storage.NodeID, error) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("%w: empty id", ErrMalformed)
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if s == "" {
			return "", fmt.Errorf("%w: empty id", ErrMalformed)
		}
		return storage.NodeID(s), nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: id %s: %v", ErrMalformed, raw, err)
	}
	return storage.NodeID(n.String()), nil
}
