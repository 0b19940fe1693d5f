package index

import (
	"context"
	"sync"
)

// DefaultEventsCap acota la colección events del índice en memoria.
const DefaultEventsCap = 10000

// Memory es un índice en memoria. Registros repetidos para el mismo ID se rankean
// en orden de inserción, salvo en las colecciones upsert (ver Upserts). Las
// colecciones con límite desalojan el registro más viejo al superarlo.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]map[string][]Record
	counts map[string]int
	caps   map[string]int
	order  map[string][]string // IDs en orden de inserción, sólo colecciones con límite
}

// NewMemory crea un índice vacío con events acotado a DefaultEventsCap.
func NewMemory() *Memory {
	return &Memory{
		data:   make(map[string]map[string][]Record),
		counts: make(map[string]int),
		caps:   map[string]int{CollectionEvents: DefaultEventsCap},
		order:  make(map[string][]string),
	}
}

// Limit fija el máximo de registros de collection; n <= 0 lo quita.
// Debe llamarse antes de indexar en esa colección.
func (m *Memory) Limit(collection string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 {
		delete(m.caps, collection)
		delete(m.order, collection)
		return
	}
	m.caps[collection] = n
}

// Seed carga registros en una colección.
func (m *Memory) Seed(collection string, recs ...Record) {
	for _, r := range recs {
		_ = m.Index(context.Background(), collection, r)
	}
}

func (m *Memory) Lookup(ctx context.Context, collection, id string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.data[collection][id]
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = Record{ID: r.ID, Attributes: cloneAttrs(r.Attributes)}
	}
	return out, nil
}

func (m *Memory) Index(ctx context.Context, collection string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.data[collection]
	if !ok {
		col = make(map[string][]Record)
		m.data[collection] = col
	}
	cp := Record{ID: rec.ID, Attributes: cloneAttrs(rec.Attributes)}
	if Upserts(collection) && len(col[rec.ID]) > 0 {
		col[rec.ID] = []Record{cp}
		return nil
	}
	col[rec.ID] = append(col[rec.ID], cp)
	m.counts[collection]++

	limit, bounded := m.caps[collection]
	if !bounded {
		return nil
	}
	m.order[collection] = append(m.order[collection], rec.ID)
	for m.counts[collection] > limit && len(m.order[collection]) > 0 {
		m.evictOldestLocked(collection)
	}
	return nil
}

func (m *Memory) evictOldestLocked(collection string) {
	q := m.order[collection]
	id := q[0]
	m.order[collection] = q[1:]

	col := m.data[collection]
	if recs := col[id]; len(recs) > 1 {
		col[id] = recs[1:]
	} else {
		delete(col, id)
	}
	m.counts[collection]--
}

// Count retorna cuántos registros hay en la colección.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[collection]
}

func (m *Memory) Close() error { return nil }

func cloneAttrs(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
