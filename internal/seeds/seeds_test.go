package seeds

import (
	"context"
	"errors"
	"testing"

	"github.com/alvmarrod/follow-weaver/internal/api"
	"github.com/alvmarrod/follow-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupFunc func(ctx context.Context, handle string) (storage.NodeID, error)

func (f lookupFunc) LookupHandle(ctx context.Context, handle string) (storage.NodeID, error) {
	return f(ctx, handle)
}

func directory(handles map[string]storage.NodeID, calls *[]string) lookupFunc {
	return func(_ context.Context, handle string) (storage.NodeID, error) {
		*calls = append(*calls, handle)
		if id, ok := handles[handle]; ok {
			return id, nil
		}
		return "", api.ErrNotFound
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	var calls []string
	r := NewResolver(directory(map[string]storage.NodeID{
		"ada":   "1",
		"grace": "2",
	}, &calls), map[string]string{
		"Ada Lovelace": "ada",
		"Alan Turing":  "id:3",
	})

	ids, err := r.Resolve(context.Background(), []string{
		"ada lovelace", "@grace", "  ", "Alan Turing", "id:4", "ada",
	})
	require.NoError(t, err)
	assert.Equal(t, []storage.NodeID{"1", "2", "3", "4"}, ids)
	assert.Equal(t, []string{"ada", "grace", "ada"}, calls)
}

func TestResolveUnknownHandle(t *testing.T) {
	t.Parallel()

	var calls []string
	r := NewResolver(directory(nil, &calls), nil)

	_, err := r.Resolve(context.Background(), []string{"@nobody"})
	assert.ErrorIs(t, err, ErrUnresolvable)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestResolveRejectsEmpty(t *testing.T) {
	t.Parallel()

	var calls []string
	r := NewResolver(directory(nil, &calls), nil)

	for _, seed := range []string{"id:", "@"} {
		_, err := r.Resolve(context.Background(), []string{seed})
		assert.ErrorIs(t, err, ErrUnresolvable, seed)
	}
	assert.Empty(t, calls)
}

func TestResolvePropagatesAuthFailure(t *testing.T) {
	t.Parallel()

	r := NewResolver(lookupFunc(func(context.Context, string) (storage.NodeID, error) {
		return "", api.ErrUnauthorized
	}), nil)

	_, err := r.Resolve(context.Background(), []string{"ada"})
	assert.True(t, errors.Is(err, api.ErrUnauthorized))
}
