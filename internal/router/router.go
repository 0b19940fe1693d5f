// Package router resuelve el par (zona, instancia) de un request contra el índice.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/edgeflix/internal/index"
)

// ErrRoutingFailure es el sentinel de cualquier falla de ruteo.
var ErrRoutingFailure = errors.New("routing failure")

// RoutingError indica qué lookup falló y conserva la causa original.
type RoutingError struct {
	Collection string
	ID         string
	Err        error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing failure: %s %q: %v", e.Collection, e.ID, e.Err)
}

// Is permite errors.Is(err, ErrRoutingFailure).
func (e *RoutingError) Is(target error) bool { return target == ErrRoutingFailure }

func (e *RoutingError) Unwrap() error { return e.Err }

// Route es el par resuelto. Nunca se devuelve parcialmente poblado.
type Route struct {
	Zone     index.Record `json:"zone"`
	Instance index.Record `json:"instance"`
}

// Router resuelve rutas.
type Router struct {
	store index.Store
}

// New crea un Router sobre el índice dado.
func New(store index.Store) *Router {
	return &Router{store: store}
}

// Route resuelve zona e instancia por ID exacto. Ante múltiples coincidencias gana
// la primera en el ranking del índice.
func (r *Router) Route(ctx context.Context, zoneID, instanceID string) (Route, error) {
	zone, err := r.first(ctx, index.CollectionZones, zoneID)
	if err != nil {
		return Route{}, err
	}
	inst, err := r.first(ctx, index.CollectionInstances, instanceID)
	if err != nil {
		return Route{}, err
	}
	return Route{Zone: zone, Instance: inst}, nil
}

func (r *Router) first(ctx context.Context, collection, id string) (index.Record, error) {
	if id == "" {
		return index.Record{}, &RoutingError{Collection: collection, ID: id, Err: index.ErrNotFound}
	}
	recs, err := r.store.Lookup(ctx, collection, id)
	if err != nil {
		return index.Record{}, &RoutingError{Collection: collection, ID: id, Err: err}
	}
	if len(recs) == 0 {
		return index.Record{}, &RoutingError{Collection: collection, ID: id, Err: index.ErrNotFound}
	}
	return recs[0], nil
}
