// Package engine answers connectivity queries over a road network: which roads
// are reachable from a root road through shared nodes, within a number of
// breadth-first levels and a bounding box around the root.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/NERVsystems/osmreach/pkg/cache"
	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/geo"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
)

const (
	// DefaultDepth is the number of levels explored when a query names none
	DefaultDepth = 15

	// DefaultRadius is the prefilter half-width in projected meters
	DefaultRadius = 10_000.0

	// minChunk keeps small scans on a single goroutine
	minChunk = 1024
)

// Limits bound the work a single query may cause
type Limits struct {
	// MaxDepth rejects deeper queries; 0 disables the check
	MaxDepth int
	// MaxCandidates fails queries whose prefiltered pool is larger; 0 disables
	MaxCandidates int
	// MaxConcurrentQueries caps resolutions running at once
	MaxConcurrentQueries int64
	// QueryTimeout bounds one resolution's wall-clock time; 0 disables
	QueryTimeout time.Duration
}

// DefaultLimits returns the limits used when none are configured
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:             64,
		MaxCandidates:        500_000,
		MaxConcurrentQueries: int64(2 * runtime.GOMAXPROCS(0)),
		QueryTimeout:         30 * time.Second,
	}
}

// Query is a connectivity request. Exactly one of RoadID or Point selects
// the root; RoadID wins when both are set. Nil Depth and Radius take defaults.
type Query struct {
	RoadID *int64
	Point  *geo.Location
	Depth  *int
	Radius *float64
}

// Selector returns the root selector for q
func (q Query) Selector() roadnet.Selector {
	return roadnet.Selector{RoadID: q.RoadID, Point: q.Point}
}

// Reached is a road together with the level it was first reached at.
// The root has depth 0.
type Reached struct {
	Road  *roadnet.Road
	Depth int
}

// Level is the set of roads first reached at one depth, in pool order
type Level struct {
	Depth int
	Roads []*roadnet.Road
}

// Result is a complete batch answer. Results may be shared through the
// result cache and must not be modified.
type Result struct {
	Root *roadnet.Road
	// Reached lists shallowest levels first and ends with the root
	Reached  []Reached
	Depth    int
	Radius   float64
	PoolSize int
	Levels   int
}

// Engine runs queries against one immutable store. It is safe for
// concurrent use.
type Engine struct {
	store    *roadnet.Store
	limits   Limits
	workers  int
	minChunk int
	sem      *semaphore.Weighted
	results  *cache.ResultCache[*Result]
	logger   *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLimits replaces the default limits
func WithLimits(l Limits) Option {
	return func(e *Engine) {
		e.limits = l
	}
}

// WithWorkers sets the parallelism of pool scans
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithResultCache memoises batch results
func WithResultCache(c *cache.ResultCache[*Result]) Option {
	return func(e *Engine) {
		e.results = c
	}
}

// WithLogger sets the engine's logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an engine over store
func New(store *roadnet.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		limits:   DefaultLimits(),
		workers:  runtime.GOMAXPROCS(0),
		minChunk: minChunk,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.limits.MaxConcurrentQueries <= 0 {
		e.limits.MaxConcurrentQueries = DefaultLimits().MaxConcurrentQueries
	}
	e.sem = semaphore.NewWeighted(e.limits.MaxConcurrentQueries)
	return e
}

// Store returns the engine's road network
func (e *Engine) Store() *roadnet.Store {
	return e.store
}

// Limits returns the limits in force
func (e *Engine) Limits() Limits {
	return e.limits
}

// plan is a validated query. root is resolved later, inside a metered run.
type plan struct {
	root   *roadnet.Road
	depth  int
	radius float64
}

func (e *Engine) prepare(q Query) (plan, error) {
	p := plan{depth: DefaultDepth, radius: DefaultRadius}
	if q.Depth != nil {
		p.depth = *q.Depth
	}
	if q.Radius != nil {
		p.radius = *q.Radius
	}

	if err := core.ValidateDepth(p.depth, e.limits.MaxDepth); err != nil {
		return p, err
	}
	if err := core.ValidateRadius(p.radius, 0); err != nil {
		return p, err
	}
	if q.RoadID == nil && q.Point != nil {
		if err := core.ValidateCoords(q.Point.Latitude, q.Point.Longitude); err != nil {
			return p, err
		}
	}
	return p, nil
}

// findRoot resolves q's root road. A proximity lookup scans every node, so
// callers run it through a meter.
func (e *Engine) findRoot(q Query) (*roadnet.Road, error) {
	root, err := e.store.FindRoot(q.Selector())
	if err != nil {
		return nil, err
	}
	if root.Degenerate() {
		return nil, core.Errorf(core.ErrDegenerateRoad, "road %d has no nodes", root.ID)
	}
	return root, nil
}

// begin acquires a resolution slot and applies what is left of the query
// timeout after spent. The returned function releases both.
func (e *Engine) begin(ctx context.Context, spent time.Duration) (context.Context, func(), error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return ctx, nil, err
	}
	cancel := func() {}
	if e.limits.QueryTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.limits.QueryTimeout-spent)
	}
	return ctx, func() {
		cancel()
		e.sem.Release(1)
	}, nil
}

// meter charges the compute time of one query against QueryTimeout. A slot
// is held only for the duration of each run, so time spent between runs,
// such as waiting on a slow stream reader, is neither metered nor blocking
// other queries.
type meter struct {
	e     *Engine
	spent time.Duration
}

// run calls fn holding a slot, under the unspent part of the timeout
func (m *meter) run(ctx context.Context, fn func(context.Context) error) error {
	rctx, release, err := m.e.begin(ctx, m.spent)
	if err != nil {
		return err
	}
	start := time.Now()
	err = fn(rctx)
	m.spent += time.Since(start)
	release()
	return tooBroad(ctx, err)
}

// tooBroad converts a hit query timeout into QUERY_TOO_BROAD. Cancellation
// by the caller passes through unchanged.
func tooBroad(parent context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return core.NewError(core.ErrQueryTooBroad, "query exceeded its time limit").
			WithGuidance("Reduce the depth or the bbox radius").
			Wrap(err)
	}
	return err
}
