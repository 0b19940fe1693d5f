// Package services contiene los handlers built-in registrados en el Dispatcher.
package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/edgeflix/internal/cache"
	"github.com/dropDatabas3/edgeflix/internal/dispatch"
	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
)

// Policy es la configuración de cache por service kind.
type Policy struct {
	CacheTTL  time.Duration
	CacheMode cache.Mode
}

// Registry arma las registraciones built-in. policies puede ser nil.
func Registry(log *zap.Logger, policies map[dispatch.ServiceKind]Policy) []dispatch.Registration {
	if log == nil {
		log = logger.Named("services")
	}
	regs := []dispatch.Registration{
		{Kind: dispatch.KindUser, Handler: &UserService{log: log.Named("user")}},
		{Kind: dispatch.KindOrder, Handler: &OrderService{log: log.Named("order")}},
		{Kind: dispatch.KindReport, Handler: &ReportService{log: log.Named("report")}},
	}
	for i := range regs {
		if p, ok := policies[regs[i].Kind]; ok && p.CacheTTL > 0 {
			regs[i].Cache = &dispatch.CachePolicy{TTL: p.CacheTTL, Mode: p.CacheMode}
		}
	}
	return regs
}

// UserService autentica al usuario identificado por "user_id".
type UserService struct{ log *zap.Logger }

func (s *UserService) Handle(ctx context.Context, req dispatch.Request) (dispatch.Response, error) {
	if err := ctx.Err(); err != nil {
		return dispatch.Response{}, err
	}
	user := req.String("user_id")
	if user == "" {
		s.log.Info("authentication rejected", logger.RequestID(req.ID))
		return dispatch.Reject("Authentication failed", nil), nil
	}
	s.log.Info("user authenticated", logger.RequestID(req.ID), logger.String("user_id", user))
	return dispatch.Success("User authenticated", map[string]any{"user_id": user}), nil
}

// OrderService procesa la orden identificada por "order_id".
type OrderService struct{ log *zap.Logger }

func (s *OrderService) Handle(ctx context.Context, req dispatch.Request) (dispatch.Response, error) {
	if err := ctx.Err(); err != nil {
		return dispatch.Response{}, err
	}
	order := req.String("order_id")
	if order == "" {
		return dispatch.Reject("Order processing failed", nil), nil
	}
	out := map[string]any{"order_id": order}
	if req.Route != nil {
		out["zone_id"] = req.Route.Zone.ID
		out["instance_id"] = req.Route.Instance.ID
	}
	s.log.Info("order processed", logger.RequestID(req.ID), logger.String("order_id", order))
	return dispatch.Success("Order processed", out), nil
}

// ReportService genera un reporte sobre los parámetros del payload. Es determinístico
// para el mismo payload, lo que lo hace apto para cache.
type ReportService struct{ log *zap.Logger }

func (s *ReportService) Handle(ctx context.Context, req dispatch.Request) (dispatch.Response, error) {
	if err := ctx.Err(); err != nil {
		return dispatch.Response{}, err
	}
	name := req.String("report")
	if name == "" {
		name = "default"
	}
	params := 0
	for k := range req.Payload {
		if k != "report" {
			params++
		}
	}
	s.log.Info("report generated", logger.RequestID(req.ID), logger.String("report", name))
	return dispatch.Success("Report generated", map[string]any{"report": name, "params": params}), nil
}
