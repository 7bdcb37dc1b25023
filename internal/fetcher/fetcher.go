package fetcher

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/alvmarrod/follow-weaver/internal/api"
	"github.com/alvmarrod/follow-weaver/internal/storage"
	"golang.org/x/time/rate"
)

// Kind classifies the result of one fetch
type Kind int

const (
	// Success means the value is usable
	Success Kind = iota
	// RateLimited means retry after a backoff: the request budget is
	// exhausted or the server failed transiently
	RateLimited
	// Permanent means the id can never be resolved
	Permanent
	// Fatal means the run cannot continue (bad credentials or cancellation)
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case RateLimited:
		return "rate_limited"
	case Permanent:
		return "permanent"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of a fetch
type Outcome struct {
	Kind        Kind
	BackoffHint time.Duration
	Reason      string
	Err         error
}

// OK reports whether the fetch succeeded
func (o Outcome) OK() bool {
	return o.Kind == Success
}

// Config sets the request budget
type Config struct {
	// RequestsPerWindow <= 0 disables client-side limiting
	RequestsPerWindow int
	Window            time.Duration
}

// Fetcher wraps an api.Client with a request budget and classifies its
// failures. It does no caching.
type Fetcher struct {
	client  api.Client
	limiter *rate.Limiter
}

// New creates a fetcher over client
func New(client api.Client, cfg Config) *Fetcher {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerWindow > 0 && cfg.Window > 0 {
		every := cfg.Window / time.Duration(cfg.RequestsPerWindow)
		limiter = rate.NewLimiter(rate.Every(every), cfg.RequestsPerWindow)
	}
	return &Fetcher{client: client, limiter: limiter}
}

// ResolveNode fetches the attributes of id
func (f *Fetcher) ResolveNode(ctx context.Context, id storage.NodeID) (storage.Attributes, Outcome) {
	if out, ok := f.wait(ctx); !ok {
		return nil, out
	}
	attrs, err := f.client.GetUser(ctx, id)
	return attrs, classify(ctx, err)
}

// ResolveEdges fetches the ordered following list of id
func (f *Fetcher) ResolveEdges(ctx context.Context, id storage.NodeID) ([]storage.NodeID, Outcome) {
	if out, ok := f.wait(ctx); !ok {
		return nil, out
	}
	targets, err := f.client.GetFollowing(ctx, id)
	return targets, classify(ctx, err)
}

func (f *Fetcher) wait(ctx context.Context) (Outcome, bool) {
	if err := f.limiter.Wait(ctx); err != nil {
		return Outcome{Kind: Fatal, Reason: "waiting for request budget", Err: err}, false
	}
	return Outcome{}, true
}

// classify maps an api error onto an Outcome
func classify(ctx context.Context, err error) Outcome {
	if err == nil {
		return Outcome{Kind: Success}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{Kind: Fatal, Reason: ctxErr.Error(), Err: ctxErr}
	}

	var rl *api.RateLimitError
	if errors.As(err, &rl) {
		return Outcome{Kind: RateLimited, BackoffHint: rl.RetryAfter, Reason: err.Error(), Err: err}
	}

	var status *api.StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, api.ErrRateLimited):
		return Outcome{Kind: RateLimited, Reason: err.Error(), Err: err}
	case errors.Is(err, api.ErrUnauthorized):
		return Outcome{Kind: Fatal, Reason: err.Error(), Err: err}
	case errors.Is(err, context.Canceled):
		return Outcome{Kind: Fatal, Reason: err.Error(), Err: err}
	case errors.As(err, &status) && status.Code >= 500:
		return Outcome{Kind: RateLimited, Reason: err.Error(), Err: err}
	case errors.As(err, &netErr):
		return Outcome{Kind: RateLimited, Reason: err.Error(), Err: err}
	default:
		return Outcome{Kind: Permanent, Reason: err.Error(), Err: err}
	}
}
