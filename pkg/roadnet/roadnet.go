// Package roadnet holds the immutable road network: nodes with projected
// coordinates, roads as ordered node references, and root road selection.
package roadnet

import (
	"sort"

	"github.com/NERVsystems/osmreach/pkg/geo"
)

// Tag is a single OSM key/value pair
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Tags is a key-sorted tag list with unique keys
type Tags []Tag

// NewTags converts a tag map into a key-sorted list
func NewTags(m map[string]string) Tags {
	if len(m) == 0 {
		return nil
	}
	tags := make(Tags, 0, len(m))
	for k, v := range m {
		tags = append(tags, Tag{Key: k, Value: v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
	return tags
}

// Get returns the value for key
func (t Tags) Get(key string) (string, bool) {
	i := sort.Search(len(t), func(i int) bool { return t[i].Key >= key })
	if i < len(t) && t[i].Key == key {
		return t[i].Value, true
	}
	return "", false
}

// Map returns the tags as a map
func (t Tags) Map() map[string]string {
	m := make(map[string]string, len(t))
	for _, tag := range t {
		m[tag.Key] = tag.Value
	}
	return m
}

// Node is a point of the network
type Node struct {
	ID    int64
	Tags  Tags
	Lat   float64
	Lon   float64
	Point geo.Point
}

// NewNode creates a node and projects its coordinates
func NewNode(id int64, tags Tags, lat, lon float64) Node {
	return Node{
		ID:    id,
		Tags:  tags,
		Lat:   lat,
		Lon:   lon,
		Point: geo.Project(lat, lon),
	}
}

// Location returns the node's geographic position
func (n Node) Location() geo.Location {
	return geo.Location{Latitude: n.Lat, Longitude: n.Lon}
}

// Road is an ordered sequence of node references
type Road struct {
	ID    int64
	Tags  Tags
	Nodes []int64
}

// First returns the id of the road's first node
func (r *Road) First() (int64, bool) {
	if len(r.Nodes) == 0 {
		return 0, false
	}
	return r.Nodes[0], true
}

// Last returns the id of the road's last node
func (r *Road) Last() (int64, bool) {
	if len(r.Nodes) == 0 {
		return 0, false
	}
	return r.Nodes[len(r.Nodes)-1], true
}

// Degenerate reports whether the road has no nodes
func (r *Road) Degenerate() bool {
	return len(r.Nodes) == 0
}

// Highway returns the road's highway classification, if tagged
func (r *Road) Highway() string {
	v, _ := r.Tags.Get("highway")
	return v
}
