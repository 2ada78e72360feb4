package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/geo"
	"github.com/NERVsystems/osmreach/pkg/render"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
)

// RoadInfoInput defines the input parameters for road_info
type RoadInfoInput struct {
	RoadID *int64 `json:"road_id"`
}

// RoadInfo describes one road of the store
type RoadInfo struct {
	ID         int64             `json:"id"`
	Highway    string            `json:"highway,omitempty"`
	Tags       map[string]string `json:"tags"`
	NodeCount  int               `json:"node_count"`
	Degenerate bool              `json:"degenerate"`
	First      *geo.Location     `json:"first,omitempty"`
	Last       *geo.Location     `json:"last,omitempty"`
	// Polyline is the geometry in encoded polyline format
	Polyline string `json:"polyline,omitempty"`
}

// RoadInfoTool returns the definition of road_info
func RoadInfoTool() mcp.Tool {
	return mcp.NewTool("road_info",
		mcp.WithDescription("Describe a road: its tags, node count, endpoint coordinates and encoded polyline geometry"),
		mcp.WithNumber("road_id",
			mcp.Required(),
			mcp.Description("OSM way id of the road"),
		),
	)
}

// HandleRoadInfo looks up one road
func (r *Registry) HandleRoadInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const name = "road_info"

	input, err := InputParser[RoadInfoInput](req)
	if err != nil {
		return ErrorResult(name, err), nil
	}
	if input.RoadID == nil {
		return ErrorResult(name, core.NewValidationError(core.ErrMissingParameter, "road_id is required")), nil
	}

	store := r.engine.Store()
	road, err := store.FindRoot(roadnet.Selector{RoadID: input.RoadID})
	if err != nil {
		return ErrorResult(name, err), nil
	}

	info := RoadInfo{
		ID:         road.ID,
		Highway:    road.Highway(),
		Tags:       road.Tags.Map(),
		NodeCount:  len(road.Nodes),
		Degenerate: road.Degenerate(),
		Polyline:   render.Polyline(store, road),
	}
	if id, ok := road.First(); ok {
		info.First = location(store, id)
	}
	if id, ok := road.Last(); ok {
		info.Last = location(store, id)
	}
	return jsonResult(info)
}

func location(store *roadnet.Store, id int64) *geo.Location {
	n, ok := store.Node(id)
	if !ok {
		return nil
	}
	loc := n.Location()
	return &loc
}
