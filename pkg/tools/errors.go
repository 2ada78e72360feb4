// Package tools provides the osmreach MCP tool implementations.
package tools

import (
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmreach/pkg/core"
)

// DetailedError is the body of a failed tool call, with enough information
// for the caller to correct the request
type DetailedError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Query    string `json:"query,omitempty"`
	Guidance string `json:"guidance,omitempty"`
	Example  string `json:"example,omitempty"`
}

// ErrorResponse returns an error result carrying a plain message
func ErrorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// ErrorResult converts err into an error result. Errors caused by the
// request include a usage example for the tool.
func ErrorResult(toolName string, err error) *mcp.CallToolResult {
	e := core.AsError(err)
	detail := DetailedError{
		Code:     string(e.Code),
		Message:  e.Message,
		Query:    e.Query,
		Guidance: e.Guidance,
	}
	if e.HTTPStatus() == http.StatusBadRequest {
		detail.Example = GetToolUsageExample(toolName)
	}

	data, mErr := json.Marshal(detail)
	if mErr != nil {
		return ErrorResponse(e.Error())
	}
	return mcp.NewToolResultError(string(data))
}

// GetToolUsageExample returns an example JSON argument object for a tool
func GetToolUsageExample(toolName string) string {
	examples := map[string]string{
		"reachable_roads": `{
  "road_id": 4419472,
  "depth": 3,
  "bbox": 5000
}`,
		"road_info": `{
  "road_id": 4419472
}`,
		"get_version": `{}`,
	}

	if example, ok := examples[toolName]; ok {
		return example
	}
	return ""
}
