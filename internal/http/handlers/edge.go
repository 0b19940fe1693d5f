package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/edgeflix/internal/http/errors"
	"github.com/dropDatabas3/edgeflix/internal/http/helpers"
	"github.com/dropDatabas3/edgeflix/internal/index"
	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
	"github.com/dropDatabas3/edgeflix/internal/transcode"
)

// EdgeController recibe réplicas cuando este nodo actúa como edge.
type EdgeController struct {
	idx index.Indexer
}

func NewEdgeController(idx index.Indexer) *EdgeController {
	return &EdgeController{idx: idx}
}

// ReceiveReplica maneja PUT /v1/edge/replicas/{movie}/{format}/{resolution} y registra
// el manifest en la colección replicas.
func (c *EdgeController) ReceiveReplica(w http.ResponseWriter, r *http.Request) {
	movie := chi.URLParam(r, "movie")
	format := chi.URLParam(r, "format")
	res := chi.URLParam(r, "resolution")

	var m transcode.ReplicaManifest
	if !helpers.ReadJSON(w, r, &m) {
		return
	}
	if m.MovieID == "" {
		m.MovieID = movie
	}
	if m.Format == "" {
		m.Format = format
	}
	if m.Resolution == "" {
		m.Resolution = res
	}
	if m.MovieID != movie || m.Format != format || m.Resolution != res {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("manifest does not match path"))
		return
	}
	if m.URI == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("uri is required"))
		return
	}

	rec := index.Record{
		ID: movie + "/" + format + "/" + res,
		Attributes: map[string]any{
			"movie_id":    m.MovieID,
			"format":      m.Format,
			"resolution":  m.Resolution,
			"uri":         m.URI,
			"digest":      m.Digest,
			"received_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := c.idx.Index(r.Context(), index.CollectionReplicas, rec); err != nil {
		logger.From(r.Context()).Error("replica index failed", logger.Op("EdgeController.ReceiveReplica"),
			logger.MovieID(movie), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithCause(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
