// Package pipeline onboardea películas en tres etapas ordenadas (transcode, replicate,
// distribute), cada una protegida por su propio breaker. Las fallas por réplica se
// acumulan en el reporte y nunca abortan el lote.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/edgeflix/internal/breaker"
	"github.com/dropDatabas3/edgeflix/internal/metrics"
	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
)

// Transcoder codifica el asset crudo en una rendición.
type Transcoder interface {
	Transcode(ctx context.Context, raw Asset, format Format, resolution Resolution) (Asset, error)
}

// RenditionChecker lo implementan los Transcoders que conocen de antemano qué
// rendiciones soportan. Un par rechazado falla sin pasar por el breaker de la etapa.
type RenditionChecker interface {
	Supports(format Format, resolution Resolution) error
}

// Distributor empuja un asset codificado a los edge nodes.
type Distributor interface {
	Distribute(ctx context.Context, encoded Asset, targets []string) error
}

// Placer elige los edge nodes de una réplica. Debe ser determinístico.
type Placer interface {
	Targets(rep Replica) []string
}

// Static ubica todas las réplicas en el mismo conjunto de edges.
type Static []string

func (s Static) Targets(Replica) []string { return append([]string(nil), s...) }

// Options configura el Pipeline.
type Options struct {
	Transcoder  Transcoder
	Distributor Distributor
	Placer      Placer

	// Breakers: si es nil se crea uno con BreakerConfig para las tres etapas.
	Breakers      *breaker.Set
	BreakerConfig breaker.Config

	// Workers acota el paralelismo por etapa. Default 4
	Workers int

	Logger *zap.Logger
}

// Pipeline es seguro para uso concurrente.
type Pipeline struct {
	tr      Transcoder
	dist    Distributor
	placer  Placer
	set     *breaker.Set
	workers int
	log     *zap.Logger
}

// New valida las opciones y construye el Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Transcoder == nil || opts.Distributor == nil {
		return nil, errors.New("pipeline: transcoder and distributor are required")
	}
	if opts.Placer == nil {
		return nil, errors.New("pipeline: placer is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("pipeline")
	}
	names := []string{string(StageTranscode), string(StageReplicate), string(StageDistribute)}
	set := opts.Breakers
	if set == nil {
		set = breaker.NewSet(opts.BreakerConfig, names, breaker.Logging(opts.Logger), metrics.BreakerListener)
	}
	for _, n := range names {
		set.Get(n)
	}
	return &Pipeline{
		tr:      opts.Transcoder,
		dist:    opts.Distributor,
		placer:  opts.Placer,
		set:     set,
		workers: opts.Workers,
		log:     opts.Logger,
	}, nil
}

// Breakers expone el Set de las etapas.
func (p *Pipeline) Breakers() *breaker.Set { return p.set }

// OnboardMovie procesa desc y siempre retorna un reporte. El error es no-nil sólo si el
// descriptor es inválido (ErrInvalidDescriptor) o si ctx se cancela; en ese caso las
// réplicas sin terminar quedan fallidas con el error de ctx.
func (p *Pipeline) OnboardMovie(ctx context.Context, desc MovieDescriptor) (DistributionReport, error) {
	report := DistributionReport{MovieID: desc.ID}
	pairs, err := desc.Validate()
	if err != nil {
		return report, err
	}

	start := time.Now()
	log := logger.FromOr(ctx, p.log).With(logger.MovieID(desc.ID))
	raw := desc.RawAsset
	raw.MovieID = desc.ID

	reps := make([]*Replica, len(pairs))
	for i, pr := range pairs {
		reps[i] = &Replica{MovieID: desc.ID, Format: pr.Format, Resolution: pr.Resolution, State: Pending}
	}

	for _, stage := range Stages {
		switch stage {
		case StageTranscode:
			p.transcode(ctx, raw, reps)
		case StageReplicate:
			p.replicate(ctx, reps)
		case StageDistribute:
			p.distribute(ctx, reps)
		}
		if cerr := ctx.Err(); cerr != nil {
			abandon(reps, stage, cerr)
			report = buildReport(desc.ID, reps)
			log.Warn("onboarding canceled", logger.Stage(string(stage)), logger.Err(cerr))
			return report, cerr
		}
		logStage(log, stage, reps)
	}

	report = buildReport(desc.ID, reps)
	log.Info("movie onboarded",
		logger.Int("distributed", len(report.Distributed)),
		logger.Int("failed", len(report.Failed)),
		logger.Duration(time.Since(start)),
	)
	return report, nil
}

// transcode crea la rendición de cada par. Una falla marca sólo esa réplica; los pares
// que el Transcoder no soporta son input inválido y no cuentan para el breaker.
func (p *Pipeline) transcode(ctx context.Context, raw Asset, reps []*Replica) {
	b := p.set.Get(string(StageTranscode))
	p.each(ctx, reps, func(rep *Replica) bool { return rep.State == Pending && rep.Encoded.URI == "" }, func(rep *Replica) {
		if chk, ok := p.tr.(RenditionChecker); ok {
			if err := chk.Supports(rep.Format, rep.Resolution); err != nil {
				rep.fail(StageTranscode, &TranscodeFailure{Pair: rep.Pair(), Err: err})
				observe(StageTranscode, "failed")
				return
			}
		}
		enc, err := breaker.Call(ctx, b, func(ctx context.Context) (Asset, error) {
			a, err := p.tr.Transcode(ctx, raw, rep.Format, rep.Resolution)
			if err == nil && a.URI == "" {
				return Asset{}, ErrEmptyRendition
			}
			return a, err
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			rep.fail(StageTranscode, &TranscodeFailure{Pair: rep.Pair(), Err: err})
			observe(StageTranscode, "failed")
			return
		}
		rep.Encoded = enc
		observe(StageTranscode, "ok")
	})
}

// replicate asigna targets. Es idempotente: réplicas ya preparadas se saltean.
func (p *Pipeline) replicate(ctx context.Context, reps []*Replica) {
	b := p.set.Get(string(StageReplicate))
	p.each(ctx, reps, func(rep *Replica) bool { return rep.State != Failed }, func(rep *Replica) {
		if rep.Prepared {
			observe(StageReplicate, "skipped")
			return
		}
		targets, err := breaker.Call(ctx, b, func(context.Context) ([]string, error) {
			t := p.placer.Targets(*rep)
			if len(t) == 0 {
				return nil, ErrNoTargets
			}
			return t, nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			rep.fail(StageReplicate, &DistributionFailure{Pair: rep.Pair(), Stage: StageReplicate, Err: err})
			observe(StageReplicate, "failed")
			return
		}
		rep.Targets = targets
		rep.Prepared = true
		observe(StageReplicate, "ok")
	})
}

// distribute empuja cada réplica preparada. No hay reintento automático.
func (p *Pipeline) distribute(ctx context.Context, reps []*Replica) {
	b := p.set.Get(string(StageDistribute))
	p.each(ctx, reps, func(rep *Replica) bool { return rep.State == Pending && rep.Prepared }, func(rep *Replica) {
		err := b.Execute(ctx, func(ctx context.Context) error {
			return p.dist.Distribute(ctx, rep.Encoded, rep.Targets)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			rep.fail(StageDistribute, &DistributionFailure{Pair: rep.Pair(), Stage: StageDistribute, Targets: rep.Targets, Err: err})
			observe(StageDistribute, "failed")
			return
		}
		rep.State = Distributed
		observe(StageDistribute, "ok")
	})
}

// each corre fn sobre las réplicas que cumplen want con a lo sumo p.workers en paralelo.
// Cada goroutine escribe sólo su propia réplica.
func (p *Pipeline) each(ctx context.Context, reps []*Replica, want func(*Replica) bool, fn func(*Replica)) {
	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, rep := range reps {
		if !want(rep) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fn(rep)
			return nil
		})
	}
	_ = g.Wait()
}

func abandon(reps []*Replica, stage Stage, cause error) {
	for _, rep := range reps {
		if rep.State == Pending {
			rep.fail(stage, cause)
			observe(stage, "failed")
		}
	}
}

func buildReport(movieID string, reps []*Replica) DistributionReport {
	out := DistributionReport{MovieID: movieID, Distributed: []Replica{}, Failed: []Replica{}}
	for _, rep := range reps {
		switch rep.State {
		case Distributed:
			out.Distributed = append(out.Distributed, *rep)
		case Failed:
			out.Failed = append(out.Failed, *rep)
		}
	}
	return out
}

func logStage(log *zap.Logger, stage Stage, reps []*Replica) {
	failed := 0
	for _, rep := range reps {
		if rep.State == Failed && rep.FailedStage == stage {
			failed++
			log.Warn("replica failed", logger.Stage(string(stage)),
				logger.Replica(string(rep.Format), string(rep.Resolution)), logger.Err(rep.err))
		}
	}
	log.Debug("stage finished", logger.Stage(string(stage)), logger.Count(len(reps)), logger.Int("failed", failed))
}

func observe(stage Stage, result string) {
	metrics.ReplicasTotal.WithLabelValues(string(stage), result).Inc()
}
