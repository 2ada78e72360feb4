package roadnet

import (
	"fmt"

	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/geo"
)

// ProximityTolerance is the per-axis distance in degrees within which a node
// matches a query point
const ProximityTolerance = 0.001

// Selector picks the root road of a query, by id or by proximity to a point.
// RoadID takes precedence when both are set.
type Selector struct {
	RoadID *int64
	Point  *geo.Location
}

// String describes the selector for logs and error messages
func (sel Selector) String() string {
	switch {
	case sel.RoadID != nil:
		return fmt.Sprintf("road_id=%d", *sel.RoadID)
	case sel.Point != nil:
		return fmt.Sprintf("lat=%f,lon=%f", sel.Point.Latitude, sel.Point.Longitude)
	default:
		return "<empty>"
	}
}

// FindRoot resolves sel to exactly one road. Proximity lookup returns the
// first road in store order owning a node within ProximityTolerance of the
// point on both axes.
func (s *Store) FindRoot(sel Selector) (*Road, error) {
	switch {
	case sel.RoadID != nil:
		if r, ok := s.Road(*sel.RoadID); ok {
			return r, nil
		}
		return nil, core.Errorf(core.ErrRootNotFound, "no road with id %d", *sel.RoadID).
			WithQuery(sel.String())

	case sel.Point != nil:
		for _, r := range s.roads {
			for _, id := range r.Nodes {
				n, _ := s.Node(id)
				if geo.Near(n.Location(), *sel.Point, ProximityTolerance) {
					return r, nil
				}
			}
		}
		return nil, core.NewError(core.ErrRootNotFound, "no road passes near the requested point").
			WithQuery(sel.String()).
			WithGuidance("Choose a point on or within about 100 m of a road")

	default:
		return nil, core.NewValidationError(core.ErrMissingParameter, "either a road id or a point is required")
	}
}
