// Package breaker implementa el circuit breaker por call-site usado por el
// dispatcher (uno por service kind) y por el pipeline (uno por etapa).
//
// Estados:
//
//	Closed   -> las llamadas pasan; Threshold fallas dentro de Window abren el breaker.
//	Open     -> se rechaza sin invocar fn; pasado Cooldown la próxima llamada es el trial.
//	HalfOpen -> exactamente un trial en vuelo; éxito cierra, falla reabre.
//
// Una llamada cancelada por el contexto del caller no cuenta ni como éxito ni como falla.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State es el estado de un breaker.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrOpen es el sentinel de rechazo sin intento. Usar errors.Is(err, ErrOpen).
var ErrOpen = errors.New("breaker: open")

// OpenError se devuelve cuando la llamada fue rechazada sin ejecutarse.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("breaker %q open (retry after %s)", e.Name, e.RetryAfter)
}

func (e *OpenError) Unwrap() error { return ErrOpen }

// Config controla los umbrales de transición.
type Config struct {
	Threshold int           // fallas dentro de Window que abren el breaker
	Window    time.Duration // ventana rolling de observación
	Cooldown  time.Duration // tiempo en Open antes del trial

	// Now permite inyectar un reloj en tests. Default: time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Window <= 0 {
		c.Window = 30 * time.Second
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 10 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// StateChangeFunc se invoca (fuera del lock) en cada transición.
type StateChangeFunc func(name string, from, to State)

// Breaker protege un único call-site.
type Breaker struct {
	name     string
	cfg      Config
	onChange StateChangeFunc

	mu            sync.Mutex
	state         State
	failures      []time.Time // timestamps de fallas dentro de la ventana (Closed)
	openedAt      time.Time
	trialInFlight bool
}

// New crea un breaker en estado Closed.
func New(name string, cfg Config, onChange StateChangeFunc) *Breaker {
	return &Breaker{
		name:     name,
		cfg:      cfg.withDefaults(),
		onChange: onChange,
		state:    Closed,
	}
}

// Name retorna el nombre del call-site.
func (b *Breaker) Name() string { return b.name }

// State retorna un snapshot del estado (sólo lectura, para health y métricas).
// Un breaker Open cuyo cooldown venció se sigue reportando Open hasta la próxima llamada.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures retorna cuántas fallas hay dentro de la ventana actual.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked(b.cfg.Now())
	return len(b.failures)
}

// Execute corre fn si el breaker lo admite.
//
//   - Rechazo sin intento: *OpenError (errors.Is(err, ErrOpen)).
//   - Falla de fn: se devuelve el error original, sin envolver.
//   - Contexto cancelado: ctx.Err() o el error de fn; no afecta la contabilidad.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	trial, err := b.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)

	switch {
	case err == nil:
		b.onSuccess(trial)
	case ctx.Err() != nil:
		b.onNeutral(trial)
	default:
		b.onFailure(trial)
	}
	return err
}

// Call es la variante genérica de Execute para colaboradores que retornan un valor.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// admit decide si la llamada pasa. trial=true si es el trial de HalfOpen.
func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	now := b.cfg.Now()

	switch b.state {
	case Closed:
		b.mu.Unlock()
		return false, nil

	case Open:
		elapsed := now.Sub(b.openedAt)
		if elapsed < b.cfg.Cooldown {
			b.mu.Unlock()
			return false, &OpenError{Name: b.name, RetryAfter: b.cfg.Cooldown - elapsed}
		}
		b.trialInFlight = true
		notify := b.transitionLocked(HalfOpen, now)
		b.mu.Unlock()
		notify()
		return true, nil

	default: // HalfOpen
		if b.trialInFlight {
			b.mu.Unlock()
			return false, &OpenError{Name: b.name, RetryAfter: 0}
		}
		b.trialInFlight = true
		b.mu.Unlock()
		return true, nil
	}
}

func (b *Breaker) onSuccess(trial bool) {
	b.mu.Lock()
	now := b.cfg.Now()
	notify := func() {}
	switch {
	case trial && b.state == HalfOpen:
		b.trialInFlight = false
		notify = b.transitionLocked(Closed, now)
	case b.state == Closed:
		b.failures = b.failures[:0]
	}
	b.mu.Unlock()
	notify()
}

func (b *Breaker) onFailure(trial bool) {
	b.mu.Lock()
	now := b.cfg.Now()
	notify := func() {}
	switch {
	case trial && b.state == HalfOpen:
		b.trialInFlight = false
		notify = b.transitionLocked(Open, now)
	case b.state == Closed:
		b.pruneLocked(now)
		b.failures = append(b.failures, now)
		if len(b.failures) >= b.cfg.Threshold {
			notify = b.transitionLocked(Open, now)
		}
	}
	b.mu.Unlock()
	notify()
}

func (b *Breaker) onNeutral(trial bool) {
	if !trial {
		return
	}
	b.mu.Lock()
	if b.state == HalfOpen {
		b.trialInFlight = false
	}
	b.mu.Unlock()
}

// transitionLocked aplica la transición y devuelve el callback a invocar sin lock.
func (b *Breaker) transitionLocked(to State, now time.Time) func() {
	from := b.state
	b.state = to
	switch to {
	case Open:
		b.openedAt = now
		b.failures = b.failures[:0]
	case Closed:
		b.failures = b.failures[:0]
	}
	if b.onChange == nil || from == to {
		return func() {}
	}
	name, cb := b.name, b.onChange
	return func() { cb(name, from, to) }
}

func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	i := 0
	for i < len(b.failures) && !b.failures[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.failures = append(b.failures[:0], b.failures[i:]...)
	}
}
