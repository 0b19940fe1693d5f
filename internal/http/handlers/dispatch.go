package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/edgeflix/internal/breaker"
	"github.com/dropDatabas3/edgeflix/internal/dispatch"
	httperrors "github.com/dropDatabas3/edgeflix/internal/http/errors"
	"github.com/dropDatabas3/edgeflix/internal/http/helpers"
	mw "github.com/dropDatabas3/edgeflix/internal/http/middlewares"
	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
)

// Dispatcher es lo que necesita DispatchController.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind dispatch.ServiceKind, req dispatch.Request) dispatch.Response
}

// DispatchController maneja POST /v1/dispatch/{kind}.
type DispatchController struct {
	d Dispatcher
}

func NewDispatchController(d Dispatcher) *DispatchController {
	return &DispatchController{d: d}
}

// Dispatch toma el body como payload y responde el dispatch.Response con el status mapeado.
func (c *DispatchController) Dispatch(w http.ResponseWriter, r *http.Request) {
	kind := dispatch.ServiceKind(chi.URLParam(r, "kind"))
	payload := map[string]any{}
	if !helpers.ReadJSON(w, r, &payload) {
		return
	}

	req := dispatch.NewRequest(kind, payload)
	if rid := mw.GetRequestID(r.Context()); rid != "" {
		req.ID = rid
	}

	resp := c.d.Dispatch(r.Context(), kind, req)
	status := httperrors.StatusForResponse(resp)
	if resp.Code == dispatch.CodeBreakerOpen {
		var open *breaker.OpenError
		if errors.As(resp.Err(), &open) && open.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(open.RetryAfter.Seconds())+1))
		}
	}
	if status >= 500 {
		logger.From(r.Context()).Warn("dispatch error response", logger.Op("DispatchController.Dispatch"),
			logger.Kind(string(kind)), logger.Code(resp.Code), logger.Err(resp.Err()))
	}
	helpers.WriteJSON(w, status, resp)
}
