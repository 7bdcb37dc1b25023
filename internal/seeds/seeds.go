package seeds

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alvmarrod/follow-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// IDPrefix marks a seed that is already a node id
const IDPrefix = "id:"

// ErrUnresolvable is returned when a seed cannot be turned into an id
var ErrUnresolvable = errors.New("unresolvable seed")

// HandleLookup resolves a handle to a node id. api.Client implements it.
type HandleLookup interface {
	LookupHandle(ctx context.Context, handle string) (storage.NodeID, error)
}

// Resolver turns human-readable seeds into node ids: display names go
// through the alias table, handles through the API
type Resolver struct {
	lookup  HandleLookup
	aliases map[string]string
}

// NewResolver creates a resolver. Alias names match case-insensitively.
func NewResolver(lookup HandleLookup, aliases map[string]string) *Resolver {
	normalized := make(map[string]string, len(aliases))
	for name, handle := range aliases {
		normalized[normalize(name)] = strings.TrimSpace(handle)
	}
	return &Resolver{lookup: lookup, aliases: normalized}
}

// Resolve returns the ids of seeds in order, without duplicates. The first
// seed that cannot be resolved aborts with an error.
func (r *Resolver) Resolve(ctx context.Context, seeds []string) ([]storage.NodeID, error) {
	ids := make([]storage.NodeID, 0, len(seeds))
	seen := make(map[storage.NodeID]bool)

	for _, seed := range seeds {
		if strings.TrimSpace(seed) == "" {
			continue
		}

		id, err := r.resolveOne(ctx, seed)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	return ids, nil
}

func (r *Resolver) resolveOne(ctx context.Context, seed string) (storage.NodeID, error) {
	token := strings.TrimSpace(seed)
	if handle, ok := r.aliases[normalize(token)]; ok {
		logrus.Debugf("Seed %q is an alias for %q", seed, handle)
		token = handle
	}

	if raw, ok := strings.CutPrefix(token, IDPrefix); ok {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return "", fmt.Errorf("%w: %q has an empty id", ErrUnresolvable, seed)
		}
		return storage.NodeID(raw), nil
	}

	handle := strings.TrimPrefix(token, "@")
	if handle == "" {
		return "", fmt.Errorf("%w: %q", ErrUnresolvable, seed)
	}

	id, err := r.lookup.LookupHandle(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrUnresolvable, seed, err)
	}
	logrus.Infof("Seed %q resolved to %s", seed, id)
	return id, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
