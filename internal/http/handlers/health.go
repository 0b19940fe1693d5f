package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/edgeflix/internal/breaker"
	"github.com/dropDatabas3/edgeflix/internal/http/helpers"
)

// HealthResponse es el cuerpo de GET /healthz.
type HealthResponse struct {
	Status   string                       `json:"status"` // ok | degraded
	Version  string                       `json:"version,omitempty"`
	Cache    string                       `json:"cache"`
	Breakers map[string]map[string]string `json:"breakers"`
}

// HealthController reporta el estado de breakers y cache.
type HealthController struct {
	version   string
	breakers  map[string]*breaker.Set
	cachePing func(context.Context) error
}

func NewHealthController(version string, breakers map[string]*breaker.Set, cachePing func(context.Context) error) *HealthController {
	return &HealthController{version: version, breakers: breakers, cachePing: cachePing}
}

// Healthz maneja GET /healthz. Responde 200 aun degradado: el engine sigue atendiendo.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Version:  c.version,
		Cache:    "ok",
		Breakers: make(map[string]map[string]string, len(c.breakers)),
	}
	for group, set := range c.breakers {
		if set == nil {
			continue
		}
		states := map[string]string{}
		for name, st := range set.Snapshot() {
			states[name] = st.String()
			if st != breaker.Closed {
				resp.Status = "degraded"
			}
		}
		resp.Breakers[group] = states
	}
	if c.cachePing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := c.cachePing(ctx); err != nil {
			resp.Cache = "unavailable"
			resp.Status = "degraded"
		}
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
