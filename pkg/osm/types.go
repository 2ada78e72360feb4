// Package osm reads raw OpenStreetMap extracts into the flat way and node
// records the road network builder consumes.
package osm

import "context"

// RawWay is a way as it appears in the source extract
type RawWay struct {
	ID      int64
	Tags    map[string]string
	NodeIDs []int64
	Deleted bool
}

// RawNode is a node as it appears in the source extract
type RawNode struct {
	ID        int64
	Tags      map[string]string
	Lat       float64
	Lon       float64
	HasCoords bool
	Deleted   bool
}

// Feed is a re-readable source of raw elements. Each call makes one full
// pass over the source, calling fn per element in source order. Returning an
// error from fn stops the pass and is returned unchanged.
//
// Nodes passes only the nodes whose id satisfies keep, or every node when
// keep is nil. keep may be called from several goroutines at once.
type Feed interface {
	Ways(ctx context.Context, fn func(RawWay) error) error
	Nodes(ctx context.Context, keep func(id int64) bool, fn func(RawNode) error) error
}

// OverpassElement represents an element of an Overpass API JSON document
type OverpassElement struct {
	ID      int64             `json:"id"`
	Type    string            `json:"type"`
	Lat     *float64          `json:"lat,omitempty"`
	Lon     *float64          `json:"lon,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
	Nodes   []int64           `json:"nodes,omitempty"` // For ways, list of node IDs
	Visible *bool             `json:"visible,omitempty"`
}

// OverpassDocument is the top-level Overpass API JSON response
type OverpassDocument struct {
	Version   float64           `json:"version"`
	Generator string            `json:"generator"`
	Elements  []OverpassElement `json:"elements"`
}

func (e OverpassElement) deleted() bool {
	return e.Visible != nil && !*e.Visible
}
