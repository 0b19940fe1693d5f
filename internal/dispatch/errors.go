package dispatch

import (
	"errors"
	"fmt"
)

// ErrServiceNotFound indica un service kind no registrado.
var ErrServiceNotFound = errors.New("service not found")

// HandlerFailure envuelve la falla del colaborador conservando la causa.
type HandlerFailure struct {
	Kind ServiceKind
	Err  error
}

func (e *HandlerFailure) Error() string {
	return fmt.Sprintf("handler %s failed: %v", e.Kind, e.Err)
}

func (e *HandlerFailure) Unwrap() error { return e.Err }

// panicError es la causa cuando un handler entra en panic.
type panicError struct{ value any }

func (p panicError) Error() string { return fmt.Sprintf("handler panic: %v", p.value) }
