package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/edgeflix/internal/dispatch"
)

// errorResponse estructura interna para la serialización JSON.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe una respuesta HTTP basada en el error proporcionado.
// Maneja automáticamente errores de tipo *AppError y errores genéricos.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// StatusForResponse mapea el código de un dispatch.Response a un HTTP status.
func StatusForResponse(r dispatch.Response) int {
	switch r.Code {
	case dispatch.CodeOK:
		return http.StatusOK
	case dispatch.CodeServiceNotFound:
		return http.StatusNotFound
	case dispatch.CodeBreakerOpen, dispatch.CodeInFlight:
		return http.StatusServiceUnavailable
	case dispatch.CodeHandlerFailure:
		return http.StatusBadGateway
	case dispatch.CodeRoutingFailure, dispatch.CodeRejected:
		return http.StatusUnprocessableEntity
	case dispatch.CodeCanceled:
		return StatusClientClosedRequest
	default:
		if r.OK() {
			return http.StatusOK
		}
		return http.StatusInternalServerError
	}
}
