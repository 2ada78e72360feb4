package osm

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// PBFFeed reads an OpenStreetMap protobuf extract
type PBFFeed struct {
	path  string
	procs int
}

// NewPBFFeed returns a feed over the .osm.pbf file at path
func NewPBFFeed(path string) *PBFFeed {
	return &PBFFeed{path: path, procs: runtime.GOMAXPROCS(0)}
}

// Ways scans the ways of the extract, skipping nodes and relations
func (f *PBFFeed) Ways(ctx context.Context, fn func(RawWay) error) error {
	return f.scan(ctx, "way", func(s *osmpbf.Scanner) {
		s.SkipNodes = true
		s.SkipRelations = true
	}, func(o osm.Object) error {
		w, ok := o.(*osm.Way)
		if !ok {
			return nil
		}
		ids := make([]int64, len(w.Nodes))
		for i, wn := range w.Nodes {
			ids[i] = int64(wn.ID)
		}
		return fn(RawWay{
			ID:      int64(w.ID),
			Tags:    w.Tags.Map(),
			NodeIDs: ids,
			Deleted: !w.Visible,
		})
	})
}

// Nodes scans the nodes of the extract, skipping ways and relations. Nodes
// rejected by keep are dropped inside the decoder, before their tags are
// copied out.
func (f *PBFFeed) Nodes(ctx context.Context, keep func(id int64) bool, fn func(RawNode) error) error {
	return f.scan(ctx, "node", func(s *osmpbf.Scanner) {
		s.SkipWays = true
		s.SkipRelations = true
		if keep != nil {
			s.FilterNode = func(n *osm.Node) bool {
				return keep(int64(n.ID))
			}
		}
	}, func(o osm.Object) error {
		n, ok := o.(*osm.Node)
		if !ok {
			return nil
		}
		return fn(RawNode{
			ID:        int64(n.ID),
			Tags:      n.Tags.Map(),
			Lat:       n.Lat,
			Lon:       n.Lon,
			HasCoords: true,
			Deleted:   !n.Visible,
		})
	})
}

func (f *PBFFeed) scan(ctx context.Context, kind string, configure func(*osmpbf.Scanner), fn func(osm.Object) error) error {
	file, err := os.Open(f.path)
	if err != nil {
		reportError("pbf", "open")
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	start := time.Now()
	scanner := osmpbf.New(ctx, file, f.procs)
	defer scanner.Close()
	configure(scanner)

	count := 0
	for scanner.Scan() {
		if err := fn(scanner.Object()); err != nil {
			return err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		reportError("pbf", "decode")
		return fmt.Errorf("scan %ss of %s: %w", kind, f.path, err)
	}

	reportScan("pbf", kind, count, time.Since(start))
	return nil
}
