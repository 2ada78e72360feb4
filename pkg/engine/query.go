package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmreach/pkg/cache"
	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/monitoring"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
	"github.com/NERVsystems/osmreach/pkg/tracing"
)

const (
	modeBatch  = "batch"
	modeStream = "stream"
)

// Query computes the full reachable set for q
func (e *Engine) Query(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "engine.query")
	defer span.End()

	res, err := e.query(ctx, q)
	e.finish(ctx, modeBatch, start, q, err)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracing.QueryAttributes(modeBatch, res.Root.ID, res.Depth, res.Radius)...)
	return res, nil
}

func (e *Engine) query(ctx context.Context, q Query) (*Result, error) {
	p, err := e.prepare(q)
	if err != nil {
		return nil, err
	}

	m := &meter{e: e}
	err = m.run(ctx, func(context.Context) error {
		root, err := e.findRoot(q)
		p.root = root
		return err
	})
	if err != nil {
		return nil, err
	}

	key := cache.ResultKey{RootID: p.root.ID, Depth: p.depth, Radius: p.radius}
	if res, ok := e.results.Get(key); ok {
		return res, nil
	}

	var res *Result
	err = m.run(ctx, func(rctx context.Context) error {
		pool, err := e.Prefilter(rctx, p.root, p.radius)
		if err != nil {
			return err
		}

		levels := 0
		reached, err := e.Resolve(rctx, []*roadnet.Road{p.root}, pool, p.depth, func(Level) error {
			levels++
			return nil
		})
		if err != nil {
			return err
		}
		monitoring.RecordResolution(len(pool), levels, len(reached))

		res = &Result{
			Root:     p.root,
			Reached:  append(reached, Reached{Road: p.root, Depth: 0}),
			Depth:    p.depth,
			Radius:   p.radius,
			PoolSize: len(pool),
			Levels:   levels,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.results.Add(key, res)
	return res, nil
}

// Stream computes q level by level, sending each level on out as soon as it
// is ready and finishing with the root as a depth 0 level. Sends block while
// out is full; a blocked send holds no resolution slot and does not count
// against QueryTimeout. Cancelling ctx stops the search at the next send or
// level boundary and Stream returns ctx's error. out is closed when Stream
// returns.
func (e *Engine) Stream(ctx context.Context, q Query, out chan<- Level) error {
	defer close(out)

	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "engine.query")
	defer span.End()

	err := e.stream(ctx, q, out)
	e.finish(ctx, modeStream, start, q, err)
	return err
}

func (e *Engine) stream(ctx context.Context, q Query, out chan<- Level) error {
	p, err := e.prepare(q)
	if err != nil {
		return err
	}

	m := &meter{e: e}
	var (
		w    *walker
		size int
	)
	err = m.run(ctx, func(rctx context.Context) error {
		root, err := e.findRoot(q)
		if err != nil {
			return err
		}
		p.root = root
		pool, err := e.Prefilter(rctx, p.root, p.radius)
		if err != nil {
			return err
		}
		size = len(pool)
		w = e.walk([]*roadnet.Road{p.root}, pool, p.depth)
		return nil
	})
	if err != nil {
		return err
	}
	tracing.SetAttributes(ctx, tracing.QueryAttributes(modeStream, p.root.ID, p.depth, p.radius)...)

	send := func(l Level) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case out <- l:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	levels := 0
	for {
		var (
			l  Level
			ok bool
		)
		err := m.run(ctx, func(rctx context.Context) error {
			var err error
			l, ok, err = w.next(rctx)
			return err
		})
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		levels++
		if err := send(l); err != nil {
			return err
		}
	}
	monitoring.RecordResolution(size, levels, w.reached)

	return send(Level{Depth: 0, Roads: []*roadnet.Road{p.root}})
}

// finish records metrics, span status and a log line for one query
func (e *Engine) finish(ctx context.Context, mode string, start time.Time, q Query, err error) {
	d := time.Since(start)
	monitoring.RecordQuery(mode, d, err == nil)

	if err == nil {
		tracing.SetStatus(ctx, codes.Ok, "")
		e.logger.Debug("query complete", "mode", mode, "selector", q.Selector().String(), "duration", d)
		return
	}

	tracing.RecordError(ctx, err, trace.WithAttributes(tracing.ErrorAttributes(err)...))
	tracing.SetStatus(ctx, codes.Error, err.Error())
	if ctx.Err() != nil {
		e.logger.Debug("query cancelled", "mode", mode, "selector", q.Selector().String())
		return
	}
	code := core.AsError(err).Code
	monitoring.RecordError("engine", string(code))
	e.logger.Info("query failed", "mode", mode, "selector", q.Selector().String(), "code", code, "error", err)
}
