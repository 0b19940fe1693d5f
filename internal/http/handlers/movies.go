package handlers

import (
	"context"
	"errors"
	"net/http"

	httperrors "github.com/dropDatabas3/edgeflix/internal/http/errors"
	"github.com/dropDatabas3/edgeflix/internal/http/helpers"
	"github.com/dropDatabas3/edgeflix/internal/pipeline"
)

// Onboarder es lo que necesita MoviesController.
type Onboarder interface {
	OnboardMovie(ctx context.Context, desc pipeline.MovieDescriptor) (pipeline.DistributionReport, error)
}

// ReplicaView es una réplica tal como se expone por HTTP.
type ReplicaView struct {
	pipeline.Replica
	Error string `json:"error,omitempty"`
}

// ReportView es el reporte de distribución expuesto por HTTP.
type ReportView struct {
	MovieID     string                    `json:"movie_id"`
	Distributed []ReplicaView             `json:"distributed"`
	Failed      []ReplicaView             `json:"failed"`
	Retry       *pipeline.MovieDescriptor `json:"retry,omitempty"`
}

// NewReportView arma la vista del reporte, con el descriptor de reintento si hubo fallas.
func NewReportView(desc pipeline.MovieDescriptor, rep pipeline.DistributionReport) ReportView {
	v := ReportView{
		MovieID:     rep.MovieID,
		Distributed: views(rep.Distributed),
		Failed:      views(rep.Failed),
	}
	if retry, ok := rep.RetryDescriptor(desc); ok {
		v.Retry = &retry
	}
	return v
}

func views(reps []pipeline.Replica) []ReplicaView {
	out := make([]ReplicaView, 0, len(reps))
	for _, r := range reps {
		rv := ReplicaView{Replica: r}
		if err := r.Err(); err != nil {
			rv.Error = err.Error()
		}
		out = append(out, rv)
	}
	return out
}

// MoviesController maneja POST /v1/movies.
type MoviesController struct {
	p Onboarder
}

func NewMoviesController(p Onboarder) *MoviesController {
	return &MoviesController{p: p}
}

// Onboard corre el pipeline. Un onboarding con réplicas fallidas sigue siendo 200:
// el detalle está en el reporte.
func (c *MoviesController) Onboard(w http.ResponseWriter, r *http.Request) {
	var desc pipeline.MovieDescriptor
	if !helpers.ReadJSON(w, r, &desc) {
		return
	}

	rep, err := c.p.OnboardMovie(r.Context(), desc)
	switch {
	case errors.Is(err, pipeline.ErrInvalidDescriptor):
		httperrors.WriteError(w, httperrors.ErrInvalidDescriptor.WithDetail(err.Error()).WithCause(err))
		return
	case err != nil:
		httperrors.WriteError(w, httperrors.ErrRequestCanceled.WithCause(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, NewReportView(desc, rep))
}
