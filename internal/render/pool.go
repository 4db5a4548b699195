package render

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Pool runs renders as isolated units of work with bounded concurrency.
// Render blocks the caller until its chart is written or fails.
type Pool struct {
	next    Renderer
	sem     *semaphore.Weighted
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewPool wraps next. A zero timeout waits for the render indefinitely.
func NewPool(next Renderer, concurrency int, timeout time.Duration, logger *zap.SugaredLogger) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{
		next:    next,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		timeout: timeout,
		log:     logger,
	}
}

type renderResult struct {
	path string
	err  error
}

// Render submits the job and waits for it.
func (p *Pool) Render(ctx context.Context, name string, points []Point) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("render %s: wait for slot: %w", name, err)
	}

	start := time.Now()
	done := make(chan renderResult, 1)
	go func() {
		defer p.sem.Release(1)
		path, err := p.next.Render(ctx, name, points)
		done <- renderResult{path: path, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		p.log.Infow("Chart rendered", "name", name, "points", len(points), "duration_ms", time.Since(start).Milliseconds())
		return res.path, nil
	case <-ctx.Done():
		// the slot is released once the abandoned render returns
		return "", fmt.Errorf("render %s: %w", name, ctx.Err())
	}
}

var _ Renderer = (*Pool)(nil)
