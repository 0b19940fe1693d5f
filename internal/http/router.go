package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/edgeflix/internal/breaker"
	httperrors "github.com/dropDatabas3/edgeflix/internal/http/errors"
	"github.com/dropDatabas3/edgeflix/internal/http/handlers"
	mw "github.com/dropDatabas3/edgeflix/internal/http/middlewares"
	"github.com/dropDatabas3/edgeflix/internal/index"
	jwtx "github.com/dropDatabas3/edgeflix/internal/jwt"
	"github.com/dropDatabas3/edgeflix/internal/rate"
)

// Deps son las dependencias de la API HTTP del engine.
type Deps struct {
	Version    string
	Dispatcher handlers.Dispatcher
	Pipeline   handlers.Onboarder
	// EdgeIndex recibe las réplicas entrantes. Si es nil no se monta /v1/edge.
	EdgeIndex index.Indexer
	// Breakers agrupados por componente (dispatch, pipeline) para /healthz.
	Breakers  map[string]*breaker.Set
	CachePing func(context.Context) error

	Issuer  *jwtx.Issuer
	Limiter rate.Limiter
	Metrics http.Handler
}

// NewRouter arma el router chi con middlewares globales y rutas versionadas.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.WithRequestID(), mw.WithLogging(), mw.WithRecover(), WithMetrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})

	health := handlers.NewHealthController(d.Version, d.Breakers, d.CachePing)
	r.Get("/healthz", health.Healthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.RequireAuth(d.Issuer))

		if d.Dispatcher != nil {
			disp := handlers.NewDispatchController(d.Dispatcher)
			r.With(mw.WithRateLimit(d.Limiter)).Post("/dispatch/{kind}", disp.Dispatch)
		}
		if d.Pipeline != nil {
			movies := handlers.NewMoviesController(d.Pipeline)
			r.Post("/movies", movies.Onboard)
		}
		if d.EdgeIndex != nil {
			edge := handlers.NewEdgeController(d.EdgeIndex)
			r.Put("/edge/replicas/{movie}/{format}/{resolution}", edge.ReceiveReplica)
		}
	})

	return r
}
