package engine

import (
	"github.com/NERVsystems/osmreach/pkg/coords"
	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/geo"
)

// Params is a query as the transports receive it. The root is chosen by
// RoadID, then At, then Lat/Lon. Radius is called bbox on the wire.
type Params struct {
	RoadID *int64   `json:"road_id,omitempty"`
	Lat    *float64 `json:"lat,omitempty"`
	Lon    *float64 `json:"lon,omitempty"`
	At     string   `json:"at,omitempty"`
	Depth  *int     `json:"depth,omitempty"`
	Radius *float64 `json:"bbox,omitempty"`
}

// Query converts p into a Query. Range checks on depth and radius happen
// when the query runs.
func (p Params) Query() (Query, error) {
	q := Query{RoadID: p.RoadID, Depth: p.Depth, Radius: p.Radius}
	if p.RoadID != nil {
		return q, nil
	}

	switch {
	case p.At != "":
		loc, _, err := coords.Parse(p.At)
		if err != nil {
			return q, core.NewValidationError(core.ErrInvalidInput, "cannot parse at").Wrap(err)
		}
		q.Point = &loc
	case p.Lat != nil && p.Lon != nil:
		q.Point = &geo.Location{Latitude: *p.Lat, Longitude: *p.Lon}
	case p.Lat != nil || p.Lon != nil:
		return q, core.NewValidationError(core.ErrMissingParameter, "lat and lon must be given together")
	}
	return q, nil
}
