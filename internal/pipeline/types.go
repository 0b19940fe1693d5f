package pipeline

import (
	"errors"
	"fmt"
)

// Format es el contenedor de salida.
type Format string

// Resolution es la resolución de salida.
type Resolution string

const (
	FormatMP4 Format = "mp4"
	Format3GP Format = "3gp"

	Res4K    Resolution = "4k"
	Res1080p Resolution = "1080p"
	Res720p  Resolution = "720p"
)

// Pair identifica una rendición dentro de una película.
type Pair struct {
	Format     Format     `json:"format"`
	Resolution Resolution `json:"resolution"`
}

func (p Pair) String() string { return string(p.Format) + "/" + string(p.Resolution) }

// Asset es un handle opaco a un archivo de video (crudo o codificado).
type Asset struct {
	MovieID    string     `json:"movie_id,omitempty"`
	URI        string     `json:"uri"`
	Format     Format     `json:"format,omitempty"`
	Resolution Resolution `json:"resolution,omitempty"`
	Digest     string     `json:"digest,omitempty"`
}

// MovieDescriptor describe una película a onboardear. Formats y Resolutions se tratan
// como conjuntos. Si Pairs no está vacío reemplaza al producto cartesiano.
type MovieDescriptor struct {
	ID          string       `json:"id"`
	RawAsset    Asset        `json:"raw_asset"`
	Formats     []Format     `json:"formats,omitempty"`
	Resolutions []Resolution `json:"resolutions,omitempty"`
	Pairs       []Pair       `json:"pairs,omitempty"`
}

// ErrInvalidDescriptor indica un descriptor que no puede procesarse.
var ErrInvalidDescriptor = errors.New("pipeline: invalid movie descriptor")

// Validate chequea el descriptor y retorna los pares pedidos, sin duplicados y en orden.
func (d MovieDescriptor) Validate() ([]Pair, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidDescriptor)
	}
	if d.RawAsset.URI == "" {
		return nil, fmt.Errorf("%w: missing raw asset", ErrInvalidDescriptor)
	}
	pairs := d.requested()
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no format/resolution requested", ErrInvalidDescriptor)
	}
	for _, p := range pairs {
		if p.Format == "" || p.Resolution == "" {
			return nil, fmt.Errorf("%w: incomplete pair %q", ErrInvalidDescriptor, p.String())
		}
	}
	return pairs, nil
}

func (d MovieDescriptor) requested() []Pair {
	seen := make(map[Pair]struct{})
	var out []Pair
	add := func(p Pair) {
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(d.Pairs) > 0 {
		for _, p := range d.Pairs {
			add(p)
		}
		return out
	}
	for _, f := range d.Formats {
		for _, r := range d.Resolutions {
			add(Pair{Format: f, Resolution: r})
		}
	}
	return out
}

// ReplicaState es el estado de distribución de una réplica.
type ReplicaState int

const (
	Pending ReplicaState = iota
	Distributed
	Failed
)

func (s ReplicaState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Distributed:
		return "distributed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s ReplicaState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ReplicaState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pending":
		*s = Pending
	case "distributed":
		*s = Distributed
	case "failed":
		*s = Failed
	default:
		return fmt.Errorf("pipeline: unknown replica state %q", b)
	}
	return nil
}

// Stage nombra una etapa del pipeline. También es el nombre de su breaker.
type Stage string

const (
	StageTranscode  Stage = "transcode"
	StageReplicate  Stage = "replicate"
	StageDistribute Stage = "distribute"
)

// Stages en orden de ejecución.
var Stages = []Stage{StageTranscode, StageReplicate, StageDistribute}

// Replica es una rendición de una película.
type Replica struct {
	MovieID     string       `json:"movie_id"`
	Format      Format       `json:"format"`
	Resolution  Resolution   `json:"resolution"`
	Encoded     Asset        `json:"encoded"`
	State       ReplicaState `json:"state"`
	Targets     []string     `json:"targets,omitempty"`
	Prepared    bool         `json:"prepared"`
	FailedStage Stage        `json:"failed_stage,omitempty"`

	err error
}

// Pair de la réplica.
func (r Replica) Pair() Pair { return Pair{Format: r.Format, Resolution: r.Resolution} }

// Err retorna la causa de falla, o nil.
func (r Replica) Err() error { return r.err }

func (r *Replica) fail(stage Stage, err error) {
	r.State = Failed
	r.FailedStage = stage
	r.err = err
}

// DistributionReport es el resultado de OnboardMovie. Ambas listas respetan el orden pedido.
type DistributionReport struct {
	MovieID     string    `json:"movie_id"`
	Distributed []Replica `json:"distributed"`
	Failed      []Replica `json:"failed"`
}

// Replicas retorna todas las réplicas del reporte.
func (r DistributionReport) Replicas() []Replica {
	out := make([]Replica, 0, len(r.Distributed)+len(r.Failed))
	out = append(out, r.Distributed...)
	return append(out, r.Failed...)
}

// RetryDescriptor arma un descriptor con sólo los pares fallidos. ok es false si no hay nada para reintentar.
func (r DistributionReport) RetryDescriptor(desc MovieDescriptor) (retry MovieDescriptor, ok bool) {
	if len(r.Failed) == 0 {
		return MovieDescriptor{}, false
	}
	retry = desc
	retry.Pairs = make([]Pair, 0, len(r.Failed))
	for _, rep := range r.Failed {
		retry.Pairs = append(retry.Pairs, rep.Pair())
	}
	return retry, true
}
