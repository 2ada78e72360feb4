// Package render turns query results into drawable paths: projected
// coordinate paths for live clients, SVG documents and GeoJSON.
package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/NERVsystems/osmreach/pkg/engine"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
)

// Display colours
const (
	RootColor    = "red"
	ReachedColor = "green"
)

// Color returns the display colour for a road first reached at depth
func Color(depth int) string {
	if depth == 0 {
		return RootColor
	}
	return ReachedColor
}

// Path is one road as an ordered sequence of projected (x, y) points
type Path struct {
	Color string       `json:"color"`
	Path  [][2]float64 `json:"path"`
}

// Paths returns one projected path per reached road, in delivery order
func Paths(store *roadnet.Store, reached []engine.Reached) []Path {
	paths := make([]Path, 0, len(reached))
	for _, r := range reached {
		paths = append(paths, roadPath(store, r.Road, r.Depth))
	}
	return paths
}

// LevelPaths returns the paths of one streamed level
func LevelPaths(store *roadnet.Store, level engine.Level) []Path {
	paths := make([]Path, 0, len(level.Roads))
	for _, r := range level.Roads {
		paths = append(paths, roadPath(store, r, level.Depth))
	}
	return paths
}

func roadPath(store *roadnet.Store, r *roadnet.Road, depth int) Path {
	nodes := store.Path(r)
	p := Path{Color: Color(depth), Path: make([][2]float64, len(nodes))}
	for i, n := range nodes {
		p.Path[i] = [2]float64{n.Point.X, n.Point.Y}
	}
	return p
}

// GeoJSON returns the reached roads as a FeatureCollection of LineStrings in
// longitude/latitude order
func GeoJSON(store *roadnet.Store, reached []engine.Reached) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range reached {
		nodes := store.Path(r.Road)
		line := make(orb.LineString, len(nodes))
		for i, n := range nodes {
			line[i] = orb.Point{n.Lon, n.Lat}
		}

		f := geojson.NewFeature(line)
		f.ID = r.Road.ID
		f.Properties["id"] = r.Road.ID
		f.Properties["depth"] = r.Depth
		f.Properties["color"] = Color(r.Depth)
		if hw := r.Road.Highway(); hw != "" {
			f.Properties["highway"] = hw
		}
		fc.Append(f)
	}
	return fc
}
