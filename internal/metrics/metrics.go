package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/edgeflix/internal/breaker"
)

// Engine-related Prometheus metrics. Viven en un paquete propio para que cache,
// dispatch y pipeline puedan reportar sin depender entre sí.

var (
	DispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgeflix_dispatch_total",
		Help: "Requests despachados por service kind y código de resultado",
	}, []string{"kind", "code"})

	DispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edgeflix_dispatch_duration_seconds",
		Help:    "Latencia de Dispatch por service kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "edgeflix_breaker_state",
		Help: "Estado del breaker por call-site (0=closed, 1=open, 2=half_open)",
	}, []string{"breaker"})

	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgeflix_breaker_transitions_total",
		Help: "Transiciones de estado por call-site y estado destino",
	}, []string{"breaker", "to"})

	CacheEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgeflix_cache_events_total",
		Help: "Eventos de la capa de cache (hit|miss|unavailable|set_error|compute)",
	}, []string{"event"})

	ReplicasTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgeflix_replicas_total",
		Help: "Réplicas procesadas por etapa y resultado (ok|failed|skipped)",
	}, []string{"stage", "result"})

	TelemetryEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgeflix_telemetry_events_total",
		Help: "Responses exitosos recibidos por el sink de telemetría",
	}, []string{"kind", "status"})
)

func all() []prometheus.Collector {
	return []prometheus.Collector{
		DispatchTotal,
		DispatchDuration,
		BreakerState,
		BreakerTransitions,
		CacheEvents,
		ReplicasTotal,
		TelemetryEvents,
	}
}

// Register registra las métricas en el registry dado (o el default si es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range all() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// BreakerListener es un breaker.StateChangeFunc que refleja transiciones en métricas.
func BreakerListener(name string, _, to breaker.State) {
	BreakerState.WithLabelValues(name).Set(float64(to))
	BreakerTransitions.WithLabelValues(name, to.String()).Inc()
}

// CacheObserver adapta los eventos de cache.Layer a CacheEvents.
func CacheObserver(event string) {
	CacheEvents.WithLabelValues(event).Inc()
}
