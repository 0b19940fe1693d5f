package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/edgeflix/internal/index"
)

func seeded() *index.Memory {
	m := index.NewMemory()
	m.Seed(index.CollectionZones,
		index.Record{ID: "us-east", Attributes: map[string]any{"region": "primary"}},
		index.Record{ID: "us-east", Attributes: map[string]any{"region": "secondary"}},
	)
	m.Seed(index.CollectionInstances, index.Record{ID: "i-1", Attributes: map[string]any{"addr": "10.0.0.1"}})
	return m
}

func TestRouteResolvesFirstRanked(t *testing.T) {
	r := New(seeded())
	route, err := r.Route(context.Background(), "us-east", "i-1")
	require.NoError(t, err)
	assert.Equal(t, "primary", route.Zone.Attributes["region"])
	assert.Equal(t, "10.0.0.1", route.Instance.Attributes["addr"])
}

func TestRouteMissingInstance(t *testing.T) {
	r := New(seeded())
	route, err := r.Route(context.Background(), "us-east", "i-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoutingFailure)
	assert.ErrorIs(t, err, index.ErrNotFound)
	assert.Equal(t, Route{}, route, "route must never be partially filled")

	var re *RoutingError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, index.CollectionInstances, re.Collection)
}

func TestRouteMissingZone(t *testing.T) {
	r := New(seeded())
	route, err := r.Route(context.Background(), "nowhere", "i-1")
	assert.ErrorIs(t, err, ErrRoutingFailure)
	assert.Equal(t, Route{}, route)
}

type brokenStore struct{ err error }

func (b brokenStore) Lookup(context.Context, string, string) ([]index.Record, error) {
	return nil, b.err
}

func TestRouteLookupErrorPreservesCause(t *testing.T) {
	cause := errors.New("index down")
	_, err := New(brokenStore{err: cause}).Route(context.Background(), "z", "i")
	assert.ErrorIs(t, err, ErrRoutingFailure)
	assert.ErrorIs(t, err, cause)
}
