// Package cache provee la capa de cache del engine con soporte multi-backend.
//
// Backends (Client):
//   - memory: in-process sobre go-cache, para desarrollo/testing y nodos sueltos.
//   - redis: distribuido, para producción.
//
// Layer envuelve un Client con timeout acotado, degradación a miss y el guard
// anti-stampede (singleflight) usado por el dispatcher en modo cache-aside.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client define las operaciones del backend de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close libera recursos del backend.
	Close() error

	// Stats retorna estadísticas del backend.
	Stats(ctx context.Context) (Stats, error)
}

// Entry es la representación de una entrada almacenada.
type Entry struct {
	Key       string
	Value     string
	ExpiresAt time.Time // zero => no expira
}

// Stats contiene estadísticas del cache.
type Stats struct {
	Driver     string
	Keys       int64
	UsedMemory string
	Hits       int64
	Misses     int64
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver          string // "memory" | "redis"
	Addr            string // host:port (redis)
	Password        string
	DB              int
	Prefix          string        // prefijo para todas las keys
	CleanupInterval time.Duration // janitor del backend memory
}

var (
	// ErrNotFound indica que la key no existe (o expiró).
	ErrNotFound = errors.New("cache: key not found")

	// ErrUnavailable indica que el backend falló o no respondió dentro del timeout.
	// Nunca es fatal: los callers lo tratan como miss.
	ErrUnavailable = errors.New("cache: unavailable")

	// ErrInFlight lo devuelve GetOrCompute en ModeBypass cuando otro caller ya recalcula la key.
	ErrInFlight = errors.New("cache: recomputation in flight")
)

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.CleanupInterval), nil
	default:
		return nil, fmt.Errorf("cache: unsupported driver %q", cfg.Driver)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
