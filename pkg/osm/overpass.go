package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// OverpassFeed reads an Overpass API JSON document (output of `[out:json]`).
// The document is decoded once and both passes iterate the decoded elements.
type OverpassFeed struct {
	path string

	once sync.Once
	doc  *OverpassDocument
	err  error
}

// NewOverpassFeed returns a feed over the Overpass JSON file at path
func NewOverpassFeed(path string) *OverpassFeed {
	return &OverpassFeed{path: path}
}

func (f *OverpassFeed) load() (*OverpassDocument, error) {
	f.once.Do(func() {
		data, err := os.ReadFile(f.path)
		if err != nil {
			reportError("overpass", "open")
			f.err = fmt.Errorf("read %s: %w", f.path, err)
			return
		}
		var doc OverpassDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			reportError("overpass", "decode")
			f.err = fmt.Errorf("decode %s: %w", f.path, err)
			return
		}
		f.doc = &doc
	})
	return f.doc, f.err
}

// Ways iterates the way elements in document order
func (f *OverpassFeed) Ways(ctx context.Context, fn func(RawWay) error) error {
	return f.each(ctx, "way", func(e OverpassElement) error {
		return fn(RawWay{
			ID:      e.ID,
			Tags:    e.Tags,
			NodeIDs: e.Nodes,
			Deleted: e.deleted(),
		})
	})
}

// Nodes iterates the node elements accepted by keep in document order
func (f *OverpassFeed) Nodes(ctx context.Context, keep func(id int64) bool, fn func(RawNode) error) error {
	return f.each(ctx, "node", func(e OverpassElement) error {
		if keep != nil && !keep(e.ID) {
			return nil
		}
		n := RawNode{
			ID:      e.ID,
			Tags:    e.Tags,
			Deleted: e.deleted(),
		}
		if e.Lat != nil && e.Lon != nil {
			n.Lat, n.Lon, n.HasCoords = *e.Lat, *e.Lon, true
		}
		return fn(n)
	})
}

func (f *OverpassFeed) each(ctx context.Context, kind string, fn func(OverpassElement) error) error {
	doc, err := f.load()
	if err != nil {
		return err
	}

	start := time.Now()
	count := 0
	for i, e := range doc.Elements {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if e.Type != kind {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
		count++
	}

	reportScan("overpass", kind, count, time.Since(start))
	return nil
}
