package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory crea un cliente de cache en memoria. cleanup es el intervalo del janitor
// (0 => un minuto).
func NewMemory(prefix string, cleanup time.Duration) *memoryClient {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, cleanup),
	}
}

func (m *memoryClient) Get(_ context.Context, key string) (string, error) {
	k := prefixed(m.prefix, key)
	v, ok := m.c.Get(k)
	if !ok {
		// go-cache no devuelve items vencidos; el janitor los desaloja.
		m.misses.Add(1)
		return "", ErrNotFound
	}
	m.hits.Add(1)
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(prefixed(m.prefix, key), value, ttl)
	return nil
}

func (m *memoryClient) Delete(_ context.Context, key string) error {
	m.c.Delete(prefixed(m.prefix, key))
	return nil
}

// Peek retorna la entrada sin contar hit/miss. Las entradas vencidas no se devuelven.
func (m *memoryClient) Peek(key string) (Entry, bool) {
	v, exp, ok := m.c.GetWithExpiration(prefixed(m.prefix, key))
	if !ok {
		return Entry{}, false
	}
	s, _ := v.(string)
	return Entry{Key: key, Value: s, ExpiresAt: exp}, true
}

func (m *memoryClient) Ping(context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}

func (m *memoryClient) Stats(context.Context) (Stats, error) {
	return Stats{
		Driver: "memory",
		Keys:   int64(len(m.c.Items())), // Items omite los vencidos que el janitor aún no barrió
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
	}, nil
}
