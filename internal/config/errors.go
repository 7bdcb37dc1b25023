package config

import "errors"

// Configuration validation errors returned by Validate and ValidateCrawl
var (
	ErrInvalidDepth           = errors.New("max_depth must be >= 0")
	ErrInvalidCheckpointEvery = errors.New("checkpoint_every must be >= 1")
	ErrInvalidMaxFollowing    = errors.New("max_following must be >= 0")
	ErrInvalidTimeout         = errors.New("request_timeout_ms must be >= 1000")
	ErrInvalidBudget          = errors.New("requests_per_window must be >= 0 with a positive window_seconds")
	ErrInvalidBackoff         = errors.New("backoff_base_ms must be > 0 and backoff_max_ms >= backoff_base_ms")
	ErrUnknownBackend         = errors.New("storage_backend must be sqlite or badger")
	ErrInvalidLogLevel        = errors.New("invalid log_level")
	ErrMissingAPIURL          = errors.New("api_base_url is required")
	ErrMissingToken           = errors.New("api_token is required (or set WEAVER_API_TOKEN)")
)
