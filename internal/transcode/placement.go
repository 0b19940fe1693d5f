package transcode

import (
	"hash/fnv"
	"sort"

	"github.com/dropDatabas3/edgeflix/internal/pipeline"
)

// Rendezvous ubica cada réplica en los factor edges con mayor peso FNV-1a para
// (edge, movie, rendición). Agregar o quitar un edge sólo mueve las réplicas que lo tenían.
type Rendezvous struct {
	edges  []string
	factor int
}

// NewRendezvous crea el placer. factor <= 0 o mayor que la cantidad de edges usa todos.
func NewRendezvous(edges []string, factor int) *Rendezvous {
	if factor <= 0 || factor > len(edges) {
		factor = len(edges)
	}
	return &Rendezvous{edges: append([]string(nil), edges...), factor: factor}
}

func (r *Rendezvous) Targets(rep pipeline.Replica) []string {
	if len(r.edges) == 0 {
		return nil
	}
	key := rep.MovieID + "/" + string(rep.Format) + "/" + string(rep.Resolution)
	type scored struct {
		edge  string
		score uint64
	}
	all := make([]scored, len(r.edges))
	for i, e := range r.edges {
		h := fnv.New64a()
		h.Write([]byte(e))
		h.Write([]byte{0})
		h.Write([]byte(key))
		all[i] = scored{edge: e, score: h.Sum64()}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score == all[j].score {
			return all[i].edge < all[j].edge
		}
		return all[i].score > all[j].score
	})
	out := make([]string, r.factor)
	for i := range out {
		out[i] = all[i].edge
	}
	return out
}
