package breaker

import "sync"

// Set es un registro de breakers por nombre que comparten Config.
// Los nombres conocidos se crean de entrada; Get crea bajo demanda.
type Set struct {
	cfg       Config
	listeners []StateChangeFunc

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewSet crea el registro con los breakers iniciales.
func NewSet(cfg Config, names []string, listeners ...StateChangeFunc) *Set {
	s := &Set{
		cfg:       cfg,
		listeners: listeners,
		breakers:  make(map[string]*Breaker, len(names)),
	}
	for _, n := range names {
		s.breakers[n] = New(n, cfg, s.notify)
	}
	return s
}

// Get devuelve (o crea) el breaker del call-site.
func (s *Set) Get(name string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[name]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// double-check
	if b, ok = s.breakers[name]; ok {
		return b
	}
	b = New(name, s.cfg, s.notify)
	s.breakers[name] = b
	return b
}

// Lookup devuelve el breaker sólo si ya existe.
func (s *Set) Lookup(name string) (*Breaker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.breakers[name]
	return b, ok
}

// Snapshot retorna el estado de cada breaker.
func (s *Set) Snapshot() map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]State, len(s.breakers))
	for n, b := range s.breakers {
		out[n] = b.State()
	}
	return out
}

// Len retorna la cantidad de breakers registrados.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.breakers)
}

func (s *Set) notify(name string, from, to State) {
	for _, l := range s.listeners {
		l(name, from, to)
	}
}
