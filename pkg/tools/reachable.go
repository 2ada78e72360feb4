package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/engine"
	"github.com/NERVsystems/osmreach/pkg/render"
)

// Output formats of reachable_roads
const (
	FormatSummary = "summary"
	FormatGeoJSON = "geojson"
)

// ReachableRoadsInput defines the input parameters for reachable_roads
type ReachableRoadsInput struct {
	engine.Params
	Format string `json:"format,omitempty"`
}

// ReachedRoad is one road of a reachable_roads summary
type ReachedRoad struct {
	ID      int64  `json:"id"`
	Depth   int    `json:"depth"`
	Highway string `json:"highway,omitempty"`
	Nodes   int    `json:"nodes"`
}

// ReachableRoadsOutput is the summary returned by reachable_roads
type ReachableRoadsOutput struct {
	RootID   int64         `json:"root_id"`
	Depth    int           `json:"depth"`
	Radius   float64       `json:"bbox"`
	PoolSize int           `json:"pool_size"`
	Levels   int           `json:"levels"`
	Count    int           `json:"count"`
	Roads    []ReachedRoad `json:"roads"`
}

// ReachableRoadsTool returns the definition of reachable_roads
func ReachableRoadsTool() mcp.Tool {
	return mcp.NewTool("reachable_roads",
		mcp.WithDescription("List the roads reachable from a root road through shared nodes, level by level, within a square box around the root"),
		mcp.WithNumber("road_id",
			mcp.Description("OSM way id of the root road"),
		),
		mcp.WithString("at",
			mcp.Description("Root location as decimal degrees, DMS or MGRS; the first road with a node within about 100 m is used"),
		),
		mcp.WithNumber("lat",
			mcp.Description("Root latitude, used with lon when road_id and at are absent"),
			mcp.Min(-90),
			mcp.Max(90),
		),
		mcp.WithNumber("lon",
			mcp.Description("Root longitude, used with lat"),
			mcp.Min(-180),
			mcp.Max(180),
		),
		mcp.WithNumber("depth",
			mcp.Description(fmt.Sprintf("Number of adjacency levels to explore (default %d)", engine.DefaultDepth)),
			mcp.Min(0),
		),
		mcp.WithNumber("bbox",
			mcp.Description(fmt.Sprintf("Half-width of the search box in projected meters (default %.0f)", engine.DefaultRadius)),
			mcp.Min(0),
		),
		mcp.WithString("format",
			mcp.Description("summary lists road ids and depths, geojson returns a FeatureCollection"),
			mcp.Enum(FormatSummary, FormatGeoJSON),
		),
	)
}

// HandleReachableRoads runs a batch query
func (r *Registry) HandleReachableRoads(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const name = "reachable_roads"
	logger := r.logger.With("tool", name)

	input, err := InputParser[ReachableRoadsInput](req)
	if err != nil {
		logger.Warn("failed to parse input", "error", err)
		return ErrorResult(name, err), nil
	}
	if input.Format == "" {
		input.Format = FormatSummary
	}
	if input.Format != FormatSummary && input.Format != FormatGeoJSON {
		return ErrorResult(name, core.NewValidationError(core.ErrInvalidInput,
			fmt.Sprintf("unknown format %q", input.Format))), nil
	}

	q, err := input.Query()
	if err != nil {
		return ErrorResult(name, err), nil
	}

	res, err := r.engine.Query(ctx, q)
	if err != nil {
		logger.Info("query failed", "selector", q.Selector().String(), "error", err)
		return ErrorResult(name, err), nil
	}

	if input.Format == FormatGeoJSON {
		data, err := json.Marshal(render.GeoJSON(r.engine.Store(), res.Reached))
		if err != nil {
			return nil, fmt.Errorf("marshal geojson: %w", err)
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	out := ReachableRoadsOutput{
		RootID:   res.Root.ID,
		Depth:    res.Depth,
		Radius:   res.Radius,
		PoolSize: res.PoolSize,
		Levels:   res.Levels,
		Count:    len(res.Reached),
		Roads:    make([]ReachedRoad, len(res.Reached)),
	}
	for i, rr := range res.Reached {
		out.Roads[i] = ReachedRoad{
			ID:      rr.Road.ID,
			Depth:   rr.Depth,
			Highway: rr.Road.Highway(),
			Nodes:   len(rr.Road.Nodes),
		}
	}
	return jsonResult(out)
}
