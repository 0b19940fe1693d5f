package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/edgeflix/internal/cache"
	"github.com/dropDatabas3/edgeflix/internal/router"
)

// ServiceKind identifica un servicio registrado.
type ServiceKind string

const (
	KindUser   ServiceKind = "user_service"
	KindOrder  ServiceKind = "order_service"
	KindReport ServiceKind = "report_service"
)

// Payload keys con significado para el dispatcher.
const (
	PayloadZoneID     = "zone_id"
	PayloadInstanceID = "instance_id"
)

// Request es inmutable una vez construido: NewRequest copia el payload y los
// handlers reciben siempre una copia.
type Request struct {
	ID      string         `json:"id"`
	Kind    ServiceKind    `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`

	// Route sólo está presente en la copia ruteada que recibe el handler.
	Route *router.Route `json:"route,omitempty"`
}

// NewRequest construye un Request con ID nuevo.
func NewRequest(kind ServiceKind, payload map[string]any) Request {
	return Request{
		ID:      uuid.NewString(),
		Kind:    kind,
		Payload: clonePayload(payload),
	}
}

// String retorna el valor string de key o "".
func (r Request) String(key string) string {
	if s, ok := r.Payload[key].(string); ok {
		return s
	}
	return ""
}

func (r Request) forKind(kind ServiceKind) Request {
	out := r
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.Kind = kind
	out.Payload = clonePayload(r.Payload)
	return out
}

func (r Request) withRoute(route router.Route) Request {
	out := r
	out.Payload = clonePayload(r.Payload)
	out.Route = &route
	return out
}

func clonePayload(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Status del Response.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Códigos estables de Response.
const (
	CodeOK              = "OK"
	CodeServiceNotFound = "SERVICE_NOT_FOUND"
	CodeBreakerOpen     = "BREAKER_OPEN"
	CodeHandlerFailure  = "HANDLER_FAILURE"
	CodeRoutingFailure  = "ROUTING_FAILURE"
	CodeInFlight        = "RECOMPUTE_IN_FLIGHT"
	CodeCanceled        = "CANCELED"
	CodeRejected        = "REJECTED"
)

// Response es el resultado estructurado de un Dispatch; se produce exactamente uno por Request.
type Response struct {
	RequestID string         `json:"request_id"`
	Kind      ServiceKind    `json:"kind"`
	Status    Status         `json:"status"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	Cached    bool           `json:"cached,omitempty"`

	cause error
}

// Success construye un Response exitoso.
func Success(message string, payload map[string]any) Response {
	return Response{Status: StatusSuccess, Code: CodeOK, Message: message, Payload: payload}
}

// Reject construye un Response de error de negocio (el handler respondió, no falló).
func Reject(message string, payload map[string]any) Response {
	return Response{Status: StatusError, Code: CodeRejected, Message: message, Payload: payload}
}

func failure(code, message string, cause error) Response {
	return Response{Status: StatusError, Code: code, Message: message, cause: cause}
}

// OK reporta si el Response es exitoso.
func (r Response) OK() bool { return r.Status == StatusSuccess }

// Err retorna la causa original de un Response de error (nil si no hay).
func (r Response) Err() error { return r.cause }

// Handler es la capacidad polimórfica de un servicio.
type Handler interface {
	Handle(ctx context.Context, req Request) (Response, error)
}

// HandlerFunc adapta una función a Handler.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// CachePolicy habilita cache-aside para un service kind.
type CachePolicy struct {
	TTL  time.Duration
	Mode cache.Mode
}

// Registration asocia un service kind a su handler.
type Registration struct {
	Kind    ServiceKind
	Handler Handler
	Cache   *CachePolicy
}

// Sink recibe los Responses exitosos. RecordEvent no debe bloquear.
type Sink interface {
	RecordEvent(ctx context.Context, resp Response)
}
