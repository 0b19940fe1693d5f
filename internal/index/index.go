// Package index define la capacidad de búsqueda/índice que respalda el lookup
// de zonas e instancias y el indexado best-effort de Responses.
package index

import (
	"context"
	"errors"
)

// Colecciones conocidas.
const (
	CollectionZones     = "zones"
	CollectionInstances = "instances"
	CollectionEvents    = "events"
	CollectionReplicas  = "replicas"
)

// Upserts reporta si collection guarda un único registro por ID: indexar de nuevo
// el mismo ID lo reemplaza en vez de sumar un registro rankeado detrás.
func Upserts(collection string) bool {
	return collection == CollectionReplicas
}

// ErrNotFound indica que ningún registro coincide con el ID.
var ErrNotFound = errors.New("index: record not found")

// Record es un registro read-only devuelto por el índice.
type Record struct {
	ID         string         `json:"id" yaml:"id" toml:"id"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes" toml:"attributes"`
}

// Store resuelve registros por coincidencia exacta de ID.
// Los resultados vienen en el orden de ranking del propio índice.
type Store interface {
	Lookup(ctx context.Context, collection, id string) ([]Record, error)
}

// Indexer escribe registros en el índice.
type Indexer interface {
	Index(ctx context.Context, collection string, rec Record) error
}

// StoreIndexer agrupa ambas capacidades.
type StoreIndexer interface {
	Store
	Indexer
	Close() error
}
