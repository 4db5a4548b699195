package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"fxbot/internal/provider"
	"fxbot/internal/render"
)

const historyDateLayout = "2006-01-02"

// walkOutcome is the result of walking back over history: either every day was
// fetched or the walk stopped at the first failure.
type walkOutcome interface {
	isWalkOutcome()
}

type walkComplete struct {
	points []render.Point // newest first
}

type walkAborted struct {
	day   time.Time
	cause error
}

func (walkComplete) isWalkOutcome() {}
func (walkAborted) isWalkOutcome()  {}

// HistoryBuilder fetches a daily series for a pair and renders it into a chart.
type HistoryBuilder struct {
	provider provider.RatesProvider
	renderer render.Renderer
	registry ArtifactRegistry
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewHistoryBuilder creates a HistoryBuilder. renderer is expected to block until the chart is written.
func NewHistoryBuilder(prov provider.RatesProvider, renderer render.Renderer, registry ArtifactRegistry, logger *zap.SugaredLogger) *HistoryBuilder {
	return &HistoryBuilder{
		provider: prov,
		renderer: renderer,
		registry: registry,
		log:      logger,
		now:      time.Now,
	}
}

// Build walks back req.Days days starting today, one provider call per day. The first
// failed day aborts the build and yields the unavailable artifact; nothing is rendered
// for partial data. A rendered chart is registered under ArtifactToken(base, quote).
func (b *HistoryBuilder) Build(ctx context.Context, req HistoryRequest) (Artifact, error) {
	if req.Days < MinHistoryDays || req.Days > MaxHistoryDays {
		return Artifact{}, NewValidationError(KindBadDayCount)
	}

	switch out := b.walk(ctx, req).(type) {
	case walkAborted:
		if ctx.Err() != nil {
			return Artifact{}, ctx.Err()
		}
		b.log.Warnw("History build aborted",
			"pair", req.Pair(), "day", out.day.Format(historyDateLayout), "error", out.cause)
		return UnavailableArtifact(), nil

	case walkComplete:
		points := slices.Clone(out.points)
		slices.Reverse(points)

		token := ArtifactToken(req.Base, req.Quote)
		path, err := b.renderer.Render(ctx, token, points)
		if err != nil {
			if ctx.Err() != nil {
				return Artifact{}, ctx.Err()
			}
			b.log.Errorw("History chart render failed", "pair", req.Pair(), "error", err)
			return UnavailableArtifact(), nil
		}

		artifact := Artifact{Token: token, Status: ArtifactReady, Path: path}
		if err := b.registry.Register(ctx, artifact); err != nil {
			return Artifact{}, err
		}
		b.log.Infow("History chart ready", "pair", req.Pair(), "days", req.Days, "path", path)
		return artifact, nil

	default:
		return Artifact{}, fmt.Errorf("unexpected walk outcome %T", out)
	}
}

func (b *HistoryBuilder) walk(ctx context.Context, req HistoryRequest) walkOutcome {
	day := b.now()
	points := make([]render.Point, 0, req.Days)

	for range req.Days {
		if err := ctx.Err(); err != nil {
			return walkAborted{day: day, cause: err}
		}

		rates, err := b.provider.GetRates(ctx, provider.Query{
			Date:    day,
			Base:    req.Base,
			Symbols: []string{req.Quote},
		})
		if err != nil {
			return walkAborted{day: day, cause: err}
		}
		rate, ok := rates[req.Quote]
		if !ok {
			return walkAborted{day: day, cause: fmt.Errorf("no %s rate for %s", req.Quote, day.Format(historyDateLayout))}
		}

		points = append(points, render.Point{Date: day, Rate: rate})
		day = day.AddDate(0, 0, -1)
	}

	return walkComplete{points: points}
}
