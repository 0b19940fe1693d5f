// Package app arma el engine a partir de la configuración: cache, índice, router,
// breakers, dispatcher, pipeline y API HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/edgeflix/internal/breaker"
	"github.com/dropDatabas3/edgeflix/internal/cache"
	"github.com/dropDatabas3/edgeflix/internal/config"
	"github.com/dropDatabas3/edgeflix/internal/dispatch"
	httpx "github.com/dropDatabas3/edgeflix/internal/http"
	"github.com/dropDatabas3/edgeflix/internal/index"
	jwtx "github.com/dropDatabas3/edgeflix/internal/jwt"
	"github.com/dropDatabas3/edgeflix/internal/metrics"
	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
	"github.com/dropDatabas3/edgeflix/internal/pipeline"
	"github.com/dropDatabas3/edgeflix/internal/rate"
	"github.com/dropDatabas3/edgeflix/internal/router"
	"github.com/dropDatabas3/edgeflix/internal/services"
	"github.com/dropDatabas3/edgeflix/internal/telemetry"
	"github.com/dropDatabas3/edgeflix/internal/transcode"
)

// Engine es el engine cableado.
type Engine struct {
	Config     *config.Config
	Log        *zap.Logger
	Cache      *cache.Layer
	Index      index.StoreIndexer
	Dispatcher *dispatch.Dispatcher
	Pipeline   *pipeline.Pipeline
	Issuer     *jwtx.Issuer
	Limiter    rate.Limiter
	Handler    nethttp.Handler

	cacheClient cache.Client
}

// Options permite inyectar piezas en tests. Todo es opcional.
type Options struct {
	// Registry reemplaza los servicios built-in.
	Registry []dispatch.Registration
	// Index reemplaza el índice que se construiría desde cfg.Index.
	Index index.StoreIndexer
	// Registerer para métricas. Default prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
	HTTPClient *nethttp.Client
}

// New construye el engine. Si falla a mitad de camino libera lo ya abierto.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *Engine, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log := logger.Named("engine")
	e := &Engine{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	// 1. Cache
	e.cacheClient, err = cache.New(cache.Config{
		Driver:          cfg.Cache.Kind,
		Addr:            cfg.Cache.Redis.Addr,
		Password:        cfg.Cache.Redis.Password,
		DB:              cfg.Cache.Redis.DB,
		Prefix:          cfg.Cache.Redis.Prefix,
		CleanupInterval: cfg.Cache.Memory.CleanupInterval.D(),
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	e.Cache = cache.NewLayer(e.cacheClient, cache.LayerOptions{
		Timeout:    cfg.Cache.Timeout.D(),
		DefaultTTL: cfg.Cache.DefaultTTL.D(),
		Logger:     logger.Named("cache"),
		Observe:    func(ev cache.Event) { metrics.CacheObserver(string(ev)) },
	})

	// 2. Índice
	var pool func() *pgxpool.Pool
	if opts.Index != nil {
		e.Index = opts.Index
	} else {
		e.Index, pool, err = openIndex(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	// 3. Breakers
	bcfg := breaker.Config{
		Threshold: cfg.Breaker.Threshold,
		Window:    cfg.Breaker.Window.D(),
		Cooldown:  cfg.Breaker.Cooldown.D(),
	}
	dispatchBreakers := breaker.NewSet(bcfg, nil, breaker.Logging(logger.Named("breaker.dispatch")), metrics.BreakerListener)
	pipelineBreakers := breaker.NewSet(bcfg, nil, breaker.Logging(logger.Named("breaker.pipeline")), metrics.BreakerListener)

	// 4. Dispatcher
	registry := opts.Registry
	if registry == nil {
		registry, err = builtinRegistry(cfg)
		if err != nil {
			return nil, err
		}
	}
	e.Dispatcher, err = dispatch.New(dispatch.Deps{
		Registry:         registry,
		Breakers:         dispatchBreakers,
		Cache:            e.Cache,
		Router:           router.New(e.Index),
		Sink:             telemetry.Fanout{telemetry.NewLogSink(logger.Named("telemetry")), telemetry.PromSink{}},
		Indexer:          e.Index,
		TelemetryTimeout: cfg.Telemetry.Timeout.D(),
		Logger:           logger.Named("dispatch"),
	})
	if err != nil {
		return nil, err
	}

	// 5. Pipeline
	e.Issuer = jwtx.NewIssuer(cfg.Auth.Issuer, cfg.Auth.JWTSecret)
	formats, resolutions := renditions(cfg)
	e.Pipeline, err = pipeline.New(pipeline.Options{
		Transcoder:  transcode.NewManifest(cfg.Pipeline.RenditionBaseURI, formats, resolutions),
		Distributor: transcode.NewHTTPDistributor(opts.HTTPClient, cfg.Pipeline.DistributeTimeout.D(), edgeToken(e.Issuer), logger.Named("distributor")),
		Placer:      transcode.NewRendezvous(cfg.Pipeline.Edges, cfg.Pipeline.ReplicationFactor),
		Breakers:    pipelineBreakers,
		Workers:     cfg.Pipeline.Workers,
		Logger:      logger.Named("pipeline"),
	})
	if err != nil {
		return nil, err
	}

	// 6. HTTP
	if cfg.Rate.Enabled {
		e.Limiter = e.newLimiter(cfg)
	}
	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{Registry: opts.Registerer, IndexPool: pool})
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	e.Handler = httpx.NewRouter(httpx.Deps{
		Version:    cfg.App.Version,
		Dispatcher: e.Dispatcher,
		Pipeline:   e.Pipeline,
		EdgeIndex:  e.Index,
		Breakers: map[string]*breaker.Set{
			"dispatch": dispatchBreakers,
			"pipeline": pipelineBreakers,
		},
		CachePing: e.cacheClient.Ping,
		Issuer:    e.Issuer,
		Limiter:   e.Limiter,
		Metrics:   metricsHandler,
	})

	log.Info("engine ready",
		logger.String("cache", cfg.Cache.Kind),
		logger.String("index", cfg.Index.Driver),
		logger.Count(len(registry)),
		logger.Int("edges", len(cfg.Pipeline.Edges)),
	)
	return e, nil
}

// Serve atiende la API HTTP hasta que ctx se cancela.
func (e *Engine) Serve(ctx context.Context) error {
	return httpx.Serve(ctx, httpx.ServerConfig{
		Addr:         e.Config.Server.Addr,
		ReadTimeout:  e.Config.Server.ReadTimeout.D(),
		WriteTimeout: e.Config.Server.WriteTimeout.D(),
	}, e.Handler)
}

// Close espera la telemetría pendiente y cierra cache e índice.
func (e *Engine) Close() error {
	if e.Dispatcher != nil {
		e.Dispatcher.Wait()
	}
	var errs []error
	if e.cacheClient != nil {
		errs = append(errs, e.cacheClient.Close())
	}
	if e.Index != nil {
		errs = append(errs, e.Index.Close())
	}
	return errors.Join(errs...)
}

func openIndex(ctx context.Context, cfg *config.Config) (index.StoreIndexer, func() *pgxpool.Pool, error) {
	switch cfg.Index.Driver {
	case "postgres":
		pg, err := index.NewPostgres(ctx, cfg.Index.DSN, cfg.Index.MaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("index: %w", err)
		}
		if cfg.Index.Migrate {
			mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := pg.Migrate(mctx); err != nil {
				_ = pg.Close()
				return nil, nil, fmt.Errorf("index migrate: %w", err)
			}
		}
		return pg, pg.Pool, nil
	default:
		mem := index.NewMemory()
		mem.Limit(index.CollectionEvents, cfg.Index.Memory.EventsCap)
		mem.Seed(index.CollectionZones, cfg.Index.Zones...)
		mem.Seed(index.CollectionInstances, cfg.Index.Instances...)
		return mem, nil, nil
	}
}

func builtinRegistry(cfg *config.Config) ([]dispatch.Registration, error) {
	policies := make(map[dispatch.ServiceKind]services.Policy, len(cfg.Services))
	for _, s := range cfg.Services {
		mode := cache.ModeWait
		if s.CacheMode == "bypass" {
			mode = cache.ModeBypass
		}
		policies[dispatch.ServiceKind(s.Kind)] = services.Policy{CacheTTL: s.CacheTTL.D(), CacheMode: mode}
	}
	regs := services.Registry(logger.Named("services"), policies)

	// sólo se registran los kinds que aparecen en la config
	out := regs[:0]
	for _, r := range regs {
		if _, ok := policies[r.Kind]; ok {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("app: no built-in service enabled")
	}
	return out, nil
}

func renditions(cfg *config.Config) ([]pipeline.Format, []pipeline.Resolution) {
	formats := make([]pipeline.Format, 0, len(cfg.Pipeline.Formats))
	for _, f := range cfg.Pipeline.Formats {
		formats = append(formats, pipeline.Format(f))
	}
	resolutions := make([]pipeline.Resolution, 0, len(cfg.Pipeline.Resolutions))
	for _, r := range cfg.Pipeline.Resolutions {
		resolutions = append(resolutions, pipeline.Resolution(r))
	}
	return formats, resolutions
}

// edgeToken mintea un token corto por PUT cuando hay secreto compartido.
func edgeToken(iss *jwtx.Issuer) transcode.TokenFunc {
	if !iss.Enabled() {
		return nil
	}
	return func() (string, error) {
		tok, _, err := iss.IssueAccess("distributor", time.Minute, map[string]any{"scope": "edge:write"})
		return tok, err
	}
}

// newLimiter usa redis cuando el cache es redis; si no, memoria local.
func (e *Engine) newLimiter(cfg *config.Config) rate.Limiter {
	if rc, ok := e.cacheClient.(interface{ Redis() *redis.Client }); ok {
		return rate.NewRedisLimiter(rc.Redis(), cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.Limit, cfg.Rate.Window.D())
	}
	return rate.NewMemoryLimiter(cfg.Rate.Limit, cfg.Rate.Window.D())
}
