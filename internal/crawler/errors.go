package crawler

import "errors"

var (
	// ErrAuthentication is returned when the API rejects the credentials
	ErrAuthentication = errors.New("authentication failed")
	// ErrNoSeeds is returned when a fresh crawl has nothing to start from
	ErrNoSeeds = errors.New("no seeds to crawl")
)
