package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
	"github.com/NERVsystems/osmreach/pkg/tracing"
)

// Prefilter returns the roads whose first node lies strictly inside the
// axis-aligned box of half-width radius around the root's first node, in
// store order. The root and degenerate roads are never included. Only first
// nodes are tested, so a long road that merely passes through the box is
// missed.
func (e *Engine) Prefilter(ctx context.Context, root *roadnet.Road, radius float64) ([]*roadnet.Road, error) {
	ctx, span := tracing.StartSpan(ctx, "engine.prefilter")
	defer span.End()

	if err := core.ValidateRadius(radius, 0); err != nil {
		return nil, err
	}
	center, ok := e.store.FirstPoint(root)
	if !ok {
		return nil, core.Errorf(core.ErrDegenerateRoad, "road %d has no nodes", root.ID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pool := e.filter(e.store.Roads(), func(r *roadnet.Road) bool {
		if r.ID == root.ID {
			return false
		}
		p, ok := e.store.FirstPoint(r)
		return ok && p.WithinBox(center, radius)
	})

	span.SetAttributes(attribute.Int(tracing.AttrPoolSize, len(pool)))
	if limit := e.limits.MaxCandidates; limit > 0 && len(pool) > limit {
		return nil, core.Errorf(core.ErrQueryTooBroad, "%d candidate roads within %.0f m of road %d, limit is %d",
			len(pool), radius, root.ID, limit).
			WithGuidance("Reduce the bbox radius")
	}
	return pool, nil
}

// Resolve expands frontier breadth-first through pool. Each level holds the
// pool roads sharing at least one node id with the previous level, and is
// removed from the pool before the next level starts. Frontier roads are
// dropped from the pool up front, so they are never reached again.
// maxDepth is the number of levels to compute; 0 computes one level like 1.
//
// emit, if not nil, is called with every non-empty level before the next one
// is computed; an error from emit stops the search and is returned. ctx is
// checked between levels. The returned roads are ordered shallowest level
// first and pool order within a level.
func (e *Engine) Resolve(ctx context.Context, frontier, pool []*roadnet.Road, maxDepth int, emit func(Level) error) ([]Reached, error) {
	ctx, span := tracing.StartSpan(ctx, "engine.resolve")
	defer span.End()

	if maxDepth < 0 {
		return nil, core.Errorf(core.ErrInvalidDepth, "depth must not be negative, got %d", maxDepth)
	}

	w := e.walk(frontier, pool, maxDepth)
	var reached []Reached
	for {
		l, ok, err := w.next(ctx)
		if err != nil {
			return reached, err
		}
		if !ok {
			break
		}

		for _, r := range l.Roads {
			reached = append(reached, Reached{Road: r, Depth: l.Depth})
		}
		if emit != nil {
			if err := emit(l); err != nil {
				return reached, err
			}
		}
	}

	span.SetAttributes(attribute.Int(tracing.AttrReachedRoads, len(reached)))
	return reached, nil
}

// walker holds the state of one breadth-first expansion between levels
type walker struct {
	e        *Engine
	frontier []*roadnet.Road
	pool     []*roadnet.Road
	depth    int
	levels   int
	reached  int
}

func (e *Engine) walk(frontier, pool []*roadnet.Road, maxDepth int) *walker {
	return &walker{
		e:        e,
		frontier: frontier,
		pool:     without(pool, frontier),
		levels:   max(maxDepth, 1),
	}
}

// next computes the following level. It reports false once the level limit
// is reached or a level comes up empty.
func (w *walker) next(ctx context.Context) (Level, bool, error) {
	if w.depth >= w.levels {
		return Level{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return Level{}, false, err
	}

	connected := w.e.adjacent(w.frontier, w.pool)
	if len(connected) == 0 {
		w.depth = w.levels
		return Level{}, false, nil
	}

	w.depth++
	w.reached += len(connected)
	tracing.AddEvent(ctx, "level", trace.WithAttributes(tracing.LevelAttributes(w.depth, len(connected))...))
	w.e.logger.Debug("resolved level", "depth", w.depth, "roads", len(connected), "pool", len(w.pool))

	w.pool = without(w.pool, connected)
	w.frontier = connected
	return Level{Depth: w.depth, Roads: connected}, true, nil
}

// adjacent selects the pool roads sharing a node with frontier, excluding
// frontier members by id
func (e *Engine) adjacent(frontier, pool []*roadnet.Road) []*roadnet.Road {
	if len(frontier) == 0 || len(pool) == 0 {
		return nil
	}

	nodes := make(map[int64]struct{})
	members := make(map[int64]struct{}, len(frontier))
	for _, r := range frontier {
		members[r.ID] = struct{}{}
		for _, id := range r.Nodes {
			nodes[id] = struct{}{}
		}
	}

	return e.filter(pool, func(r *roadnet.Road) bool {
		if _, self := members[r.ID]; self {
			return false
		}
		for _, id := range r.Nodes {
			if _, ok := nodes[id]; ok {
				return true
			}
		}
		return false
	})
}

// filter runs keep over roads in parallel chunks. Each worker writes only its
// own slot; slots are joined in chunk order so the output keeps input order.
func (e *Engine) filter(roads []*roadnet.Road, keep func(*roadnet.Road) bool) []*roadnet.Road {
	spans := e.split(len(roads))
	parts := make([][]*roadnet.Road, len(spans))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, sp := range spans {
		g.Go(func() error {
			var out []*roadnet.Road
			for _, r := range roads[sp[0]:sp[1]] {
				if keep(r) {
					out = append(out, r)
				}
			}
			parts[i] = out
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, p := range parts {
		n += len(p)
	}
	if n == 0 {
		return nil
	}
	out := make([]*roadnet.Road, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// split cuts n items into at most e.workers contiguous spans of at least
// e.minChunk items each
func (e *Engine) split(n int) [][2]int {
	if n == 0 {
		return nil
	}
	size := (n + e.workers - 1) / e.workers
	size = max(size, e.minChunk, 1)

	spans := make([][2]int, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		spans = append(spans, [2]int{lo, min(lo+size, n)})
	}
	return spans
}

// without returns pool minus remove, keeping order
func without(pool, remove []*roadnet.Road) []*roadnet.Road {
	drop := make(map[int64]struct{}, len(remove))
	for _, r := range remove {
		drop[r.ID] = struct{}{}
	}
	out := make([]*roadnet.Road, 0, max(len(pool)-len(remove), 0))
	for _, r := range pool {
		if _, ok := drop[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out
}
