package roadnet

import (
	"context"
	"log/slog"
	"time"

	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/osm"
)

// Predicate decides whether a way is kept as a road
type Predicate func(tags map[string]string) bool

// HasTag keeps ways carrying key, whatever its value
func HasTag(key string) Predicate {
	return func(tags map[string]string) bool {
		_, ok := tags[key]
		return ok
	}
}

// Builder constructs a Store from a raw feed in two passes: ways first, to
// learn which nodes are referenced, then only those nodes.
type Builder struct {
	feed   osm.Feed
	keep   Predicate
	logger *slog.Logger
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithPredicate overrides the default highway predicate
func WithPredicate(p Predicate) BuilderOption {
	return func(b *Builder) {
		b.keep = p
	}
}

// WithLogger sets the builder's logger
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a builder over feed keeping ways tagged highway
func NewBuilder(feed osm.Feed, opts ...BuilderOption) *Builder {
	b := &Builder{
		feed:   feed,
		keep:   HasTag("highway"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build reads the feed and returns the validated store. A road referencing a
// node absent from the feed fails the whole build.
func (b *Builder) Build(ctx context.Context) (*Store, error) {
	start := time.Now()

	var roads []Road
	wanted := make(map[int64]struct{})
	skipped := 0

	err := b.feed.Ways(ctx, func(w osm.RawWay) error {
		if w.Deleted || !b.keep(w.Tags) {
			skipped++
			return nil
		}
		nodes := make([]int64, len(w.NodeIDs))
		copy(nodes, w.NodeIDs)
		for _, id := range nodes {
			wanted[id] = struct{}{}
		}
		roads = append(roads, Road{ID: w.ID, Tags: NewTags(w.Tags), Nodes: nodes})
		return nil
	})
	if err != nil {
		return nil, ingestError("reading ways", err)
	}
	b.logger.Debug("scanned ways", "roads", len(roads), "skipped", skipped, "referenced_nodes", len(wanted))

	nodes := make([]Node, 0, len(wanted))
	// wanted is read-only from here on, so the feed may consult it concurrently
	referenced := func(id int64) bool {
		_, ok := wanted[id]
		return ok
	}
	err = b.feed.Nodes(ctx, referenced, func(n osm.RawNode) error {
		if !referenced(n.ID) || !n.HasCoords || n.Deleted {
			return nil
		}
		nodes = append(nodes, NewNode(n.ID, NewTags(n.Tags), n.Lat, n.Lon))
		return nil
	})
	if err != nil {
		return nil, ingestError("reading nodes", err)
	}

	store, err := NewStore(nodes, roads)
	if err != nil {
		return nil, err
	}

	b.logger.Info("built road network",
		"roads", store.RoadCount(),
		"nodes", store.NodeCount(),
		"duration", time.Since(start))
	return store, nil
}

// ingestError keeps the cause reachable so errors.Is(err, context.Canceled) holds
func ingestError(stage string, err error) error {
	return core.NewError(core.ErrIngest, stage).Wrap(err)
}
