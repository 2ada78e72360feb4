package roadnet

import (
	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/geo"
)

// Store is the read-only road network. All methods are safe for concurrent use.
type Store struct {
	nodes     []Node
	nodeIndex map[int64]int
	roads     []*Road
	roadIndex map[int64]int
	first     []geo.Point
}

// NewStore builds a store from nodes and roads. Every node referenced by a
// road must be present and road ids must be unique. Roads keep their order.
func NewStore(nodes []Node, roads []Road) (*Store, error) {
	s := &Store{
		nodes:     make([]Node, 0, len(nodes)),
		nodeIndex: make(map[int64]int, len(nodes)),
		roads:     make([]*Road, 0, len(roads)),
		roadIndex: make(map[int64]int, len(roads)),
		first:     make([]geo.Point, 0, len(roads)),
	}

	for _, n := range nodes {
		if i, ok := s.nodeIndex[n.ID]; ok {
			s.nodes[i] = n
			continue
		}
		s.nodeIndex[n.ID] = len(s.nodes)
		s.nodes = append(s.nodes, n)
	}

	for i := range roads {
		r := roads[i]
		if _, dup := s.roadIndex[r.ID]; dup {
			return nil, core.Errorf(core.ErrInvalidInput, "duplicate road id %d", r.ID)
		}
		for _, id := range r.Nodes {
			if _, ok := s.nodeIndex[id]; !ok {
				return nil, core.Errorf(core.ErrMissingNode, "road %d references unknown node %d", r.ID, id)
			}
		}

		var p geo.Point
		if id, ok := r.First(); ok {
			p = s.nodes[s.nodeIndex[id]].Point
		}

		s.roadIndex[r.ID] = len(s.roads)
		s.roads = append(s.roads, &r)
		s.first = append(s.first, p)
	}

	return s, nil
}

// Roads returns all roads in store order. The slice must not be modified.
func (s *Store) Roads() []*Road {
	return s.roads
}

// Road looks up a road by id
func (s *Store) Road(id int64) (*Road, bool) {
	i, ok := s.roadIndex[id]
	if !ok {
		return nil, false
	}
	return s.roads[i], true
}

// Node looks up a node by id
func (s *Store) Node(id int64) (Node, bool) {
	i, ok := s.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return s.nodes[i], true
}

// RoadCount returns the number of roads
func (s *Store) RoadCount() int {
	return len(s.roads)
}

// NodeCount returns the number of nodes
func (s *Store) NodeCount() int {
	return len(s.nodes)
}

// FirstPoint returns the projected point of the road's first node.
// ok is false for degenerate roads and roads not in the store.
func (s *Store) FirstPoint(r *Road) (geo.Point, bool) {
	i, ok := s.roadIndex[r.ID]
	if !ok || s.roads[i].Degenerate() {
		return geo.Point{}, false
	}
	return s.first[i], true
}

// Path returns the road's nodes in order
func (s *Store) Path(r *Road) []Node {
	path := make([]Node, 0, len(r.Nodes))
	for _, id := range r.Nodes {
		if n, ok := s.Node(id); ok {
			path = append(path, n)
		}
	}
	return path
}
