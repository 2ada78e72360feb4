package roadnet

// Snapshot is the flat, serialisable form of a Store
type Snapshot struct {
	Nodes []Node
	Roads []Road
}

// Snapshot returns a copy of the store's contents in store order
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Nodes: make([]Node, len(s.nodes)),
		Roads: make([]Road, len(s.roads)),
	}
	copy(snap.Nodes, s.nodes)
	for i, r := range s.roads {
		snap.Roads[i] = *r
	}
	return snap
}

// FromSnapshot rebuilds a Store, applying the same validation as NewStore
func FromSnapshot(snap Snapshot) (*Store, error) {
	return NewStore(snap.Nodes, snap.Roads)
}
