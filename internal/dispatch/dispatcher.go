package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/edgeflix/internal/breaker"
	"github.com/dropDatabas3/edgeflix/internal/cache"
	"github.com/dropDatabas3/edgeflix/internal/index"
	"github.com/dropDatabas3/edgeflix/internal/metrics"
	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
	"github.com/dropDatabas3/edgeflix/internal/router"
)

// Deps son las dependencias del Dispatcher. Todo salvo Registry es opcional.
type Deps struct {
	Registry []Registration

	// Breakers: si es nil se crea un Set con BreakerConfig.
	Breakers      *breaker.Set
	BreakerConfig breaker.Config

	Cache   *cache.Layer
	Router  *router.Router
	Sink    Sink
	Indexer index.Indexer

	// TelemetryTimeout acota la escritura al índice tras cada éxito. Default 2s
	TelemetryTimeout time.Duration

	Logger *zap.Logger
}

// Dispatcher recibe requests tipados, los rutea al handler registrado y
// envuelve cada invocación en el breaker de su service kind.
type Dispatcher struct {
	handlers map[ServiceKind]Registration
	breakers *breaker.Set
	cache    *cache.Layer
	router   *router.Router
	sink     Sink
	indexer  index.Indexer
	timeout  time.Duration
	log      *zap.Logger

	wg sync.WaitGroup
}

// New valida el registro y construye el Dispatcher.
func New(d Deps) (*Dispatcher, error) {
	if d.Logger == nil {
		d.Logger = logger.Named("dispatch")
	}
	if d.TelemetryTimeout <= 0 {
		d.TelemetryTimeout = 2 * time.Second
	}

	handlers := make(map[ServiceKind]Registration, len(d.Registry))
	names := make([]string, 0, len(d.Registry))
	for _, reg := range d.Registry {
		if reg.Kind == "" {
			return nil, errors.New("dispatch: registration without kind")
		}
		if reg.Handler == nil {
			return nil, fmt.Errorf("dispatch: nil handler for %q", reg.Kind)
		}
		if _, dup := handlers[reg.Kind]; dup {
			return nil, fmt.Errorf("dispatch: duplicate registration for %q", reg.Kind)
		}
		handlers[reg.Kind] = reg
		names = append(names, string(reg.Kind))
	}

	set := d.Breakers
	if set == nil {
		set = breaker.NewSet(d.BreakerConfig, names, breaker.Logging(d.Logger), metrics.BreakerListener)
	} else {
		for _, n := range names {
			set.Get(n)
		}
	}

	return &Dispatcher{
		handlers: handlers,
		breakers: set,
		cache:    d.Cache,
		router:   d.Router,
		sink:     d.Sink,
		indexer:  d.Indexer,
		timeout:  d.TelemetryTimeout,
		log:      d.Logger,
	}, nil
}

// Breakers expone el Set (health / tests).
func (d *Dispatcher) Breakers() *breaker.Set { return d.breakers }

// Kinds lista los service kinds registrados.
func (d *Dispatcher) Kinds() []ServiceKind {
	out := make([]ServiceKind, 0, len(d.handlers))
	for k := range d.handlers {
		out = append(out, k)
	}
	return out
}

// Dispatch ejecuta req contra el handler de kind. Siempre retorna exactamente un Response.
func (d *Dispatcher) Dispatch(ctx context.Context, kind ServiceKind, req Request) (resp Response) {
	start := time.Now()
	req = req.forKind(kind)
	log := logger.FromOr(ctx, d.log).With(logger.RequestID(req.ID), logger.Kind(string(kind)))

	defer func() {
		resp.RequestID = req.ID
		resp.Kind = kind
		metrics.DispatchTotal.WithLabelValues(string(kind), resp.Code).Inc()
		metrics.DispatchDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
		if resp.OK() {
			log.Debug("dispatched", logger.Code(resp.Code), logger.Bool("cached", resp.Cached), logger.Duration(time.Since(start)))
		} else {
			log.Warn("dispatch failed", logger.Code(resp.Code), logger.Err(resp.cause), logger.Duration(time.Since(start)))
		}
	}()

	reg, ok := d.handlers[kind]
	if !ok {
		return failure(CodeServiceNotFound, fmt.Sprintf("service %q is not registered", kind),
			fmt.Errorf("%w: %q", ErrServiceNotFound, kind))
	}

	if d.router != nil {
		zoneID, instanceID := req.String(PayloadZoneID), req.String(PayloadInstanceID)
		if zoneID != "" && instanceID != "" {
			route, err := d.router.Route(ctx, zoneID, instanceID)
			if err != nil && ctx.Err() != nil {
				return failure(CodeCanceled, "request canceled", ctx.Err())
			}
			if err != nil {
				return failure(CodeRoutingFailure, "could not resolve route", err)
			}
			req = req.withRoute(route)
		}
	}

	b := d.breakers.Get(string(kind))
	invoke := func(ctx context.Context) (Response, error) {
		return breaker.Call(ctx, b, func(ctx context.Context) (Response, error) {
			return callHandler(ctx, reg.Handler, req)
		})
	}

	var err error
	if reg.Cache != nil && d.cache != nil {
		resp, err = d.cached(ctx, kind, req, *reg.Cache, invoke)
	} else {
		resp, err = invoke(ctx)
	}
	if err != nil {
		return d.classify(ctx, kind, err)
	}

	resp.RequestID, resp.Kind = req.ID, kind
	d.emit(ctx, req, resp, log)
	return resp
}

// Wait espera a que terminen las escrituras de telemetría pendientes.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) cached(ctx context.Context, kind ServiceKind, req Request, pol CachePolicy, invoke func(context.Context) (Response, error)) (Response, error) {
	key, err := CacheKey(kind, req.Payload)
	if err != nil {
		// payload no serializable: se atiende sin cache
		return invoke(ctx)
	}
	raw, hit, err := d.cache.GetOrCompute(ctx, key, pol.TTL, pol.Mode, func(ctx context.Context) (string, error) {
		r, err := invoke(ctx)
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(r)
		if err != nil {
			return "", err
		}
		return string(b), nil
	})
	if err != nil {
		return Response{}, err
	}
	var out Response
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		d.log.Warn("cached response unreadable, recomputing", logger.Key(key), logger.Err(err))
		return invoke(ctx)
	}
	out.Cached = hit
	return out, nil
}

func (d *Dispatcher) classify(ctx context.Context, kind ServiceKind, err error) Response {
	switch {
	case errors.Is(err, breaker.ErrOpen):
		return failure(CodeBreakerOpen, fmt.Sprintf("service %q temporarily unavailable", kind), err)
	case errors.Is(err, cache.ErrInFlight):
		return failure(CodeInFlight, "result is being recomputed", err)
	case ctx.Err() != nil:
		return failure(CodeCanceled, "request canceled", ctx.Err())
	default:
		return failure(CodeHandlerFailure, "service call failed", &HandlerFailure{Kind: kind, Err: err})
	}
}

// emit entrega el Response al sink y lo indexa sin bloquear al caller.
func (d *Dispatcher) emit(ctx context.Context, req Request, resp Response, log *zap.Logger) {
	if d.sink != nil {
		d.sink.RecordEvent(ctx, resp)
	}
	if d.indexer == nil {
		return
	}
	rec := index.Record{
		ID: req.ID,
		Attributes: map[string]any{
			"kind":    string(resp.Kind),
			"status":  string(resp.Status),
			"code":    resp.Code,
			"message": resp.Message,
			"cached":  resp.Cached,
		},
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.indexer.Index(ictx, index.CollectionEvents, rec); err != nil {
			log.Warn("telemetry index failed", logger.Err(err))
		}
	}()
}

func callHandler(ctx context.Context, h Handler, req Request) (resp Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = Response{}, panicError{value: r}
		}
	}()
	return h.Handle(ctx, req)
}

// CacheKey deriva la key determinística para (kind, payload).
// encoding/json ordena las keys de los maps, así que payloads iguales dan la misma key.
func CacheKey(kind ServiceKind, payload map[string]any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return "dispatch:" + string(kind) + ":" + hex.EncodeToString(sum[:]), nil
}
