package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
)

// Mode define qué hacen los callers concurrentes ante un miss con recálculo en vuelo.
type Mode int

const (
	// ModeWait se une al recálculo en vuelo y recibe su resultado.
	ModeWait Mode = iota
	// ModeBypass devuelve ErrInFlight sin esperar ni recalcular.
	ModeBypass
)

// Event es lo que Layer reporta a su observer (métricas).
type Event string

const (
	EventHit         Event = "hit"
	EventMiss        Event = "miss"
	EventUnavailable Event = "unavailable"
	EventSetError    Event = "set_error"
	EventCompute     Event = "compute"
)

// LayerOptions configura Layer.
type LayerOptions struct {
	Timeout    time.Duration // cota por llamada al backend. Default 200ms
	DefaultTTL time.Duration // ttl cuando Set recibe 0. Default 1h
	Logger     *zap.Logger
	Observe    func(Event)
}

// Layer es la capa cache-aside sobre un Client.
type Layer struct {
	client     Client
	timeout    time.Duration
	defaultTTL time.Duration
	log        *zap.Logger
	observe    func(Event)

	sf       singleflight.Group
	inflight sync.Map // key -> struct{}; sólo keys con recálculo en curso
}

// NewLayer crea la capa sobre el backend dado.
func NewLayer(client Client, opts LayerOptions) *Layer {
	if opts.Timeout <= 0 {
		opts.Timeout = 200 * time.Millisecond
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("cache")
	}
	if opts.Observe == nil {
		opts.Observe = func(Event) {}
	}
	return &Layer{
		client:     client,
		timeout:    opts.Timeout,
		defaultTTL: opts.DefaultTTL,
		log:        opts.Logger,
		observe:    opts.Observe,
	}
}

// Client retorna el backend subyacente.
func (l *Layer) Client() Client { return l.client }

// Get consulta el cache. Con el backend caído o lento devuelve found=false y un
// error que envuelve ErrUnavailable; nunca bloquea más que el timeout.
func (l *Layer) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := bounded(ctx, l.timeout, func(ctx context.Context) (string, error) {
		return l.client.Get(ctx, key)
	})
	switch {
	case err == nil:
		l.observe(EventHit)
		return v, true, nil
	case errors.Is(err, ErrNotFound):
		l.observe(EventMiss)
		return "", false, nil
	default:
		l.observe(EventUnavailable)
		l.log.Warn("cache get degraded to miss", logger.Key(key), logger.Err(err))
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// Set guarda el valor. Retorna false ante cualquier falla del backend; nunca falla al caller.
func (l *Layer) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	_, err := bounded(ctx, l.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.client.Set(ctx, key, value, ttl)
	})
	if err != nil {
		l.observe(EventSetError)
		l.log.Warn("cache set failed", logger.Key(key), logger.Err(err))
		return false
	}
	return true
}

// GetOrCompute implementa cache-aside con guard anti-stampede: por key hay a lo sumo
// un compute en vuelo. El valor se escribe en cache sólo si compute tuvo éxito.
//
// compute corre con el contexto del caller que lidera el vuelo. Si ese caller cancela,
// los que esperaban con su contexto vivo reintentan una vez como líderes.
// cached=true indica que el valor salió del cache.
func (l *Layer) GetOrCompute(ctx context.Context, key string, ttl time.Duration, mode Mode, compute func(context.Context) (string, error)) (value string, cached bool, err error) {
	if v, found, _ := l.Get(ctx, key); found {
		return v, true, nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		if mode == ModeBypass {
			if _, busy := l.inflight.Load(key); busy {
				return "", false, ErrInFlight
			}
		}

		ch := l.sf.DoChan(key, func() (any, error) {
			l.inflight.Store(key, struct{}{})
			defer l.inflight.Delete(key)

			// double-check: otro vuelo pudo poblar la key entre nuestro miss y este punto
			if v, err := bounded(ctx, l.timeout, func(ctx context.Context) (string, error) {
				return l.client.Get(ctx, key)
			}); err == nil {
				return flight{value: v, cached: true}, nil
			}
			l.observe(EventCompute)
			v, err := compute(ctx)
			if err != nil {
				return nil, err
			}
			l.Set(context.WithoutCancel(ctx), key, v, ttl)
			return flight{value: v}, nil
		})

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				if res.Shared && isContextErr(res.Err) && ctx.Err() == nil {
					continue
				}
				return "", false, res.Err
			}
			f := res.Val.(flight)
			return f.value, f.cached, nil
		}
	}
	return "", false, ErrInFlight
}

type flight struct {
	value  string
	cached bool
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// bounded corre fn con timeout y no espera más que eso aunque el backend ignore el contexto.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
