package tools

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmreach/pkg/engine"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
)

// testRegistry serves three roads in a chain, 100-101-102, plus road 103
// which touches nothing
func testRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := roadnet.NewStore([]roadnet.Node{
		roadnet.NewNode(1, nil, 47.5000, 19.0000),
		roadnet.NewNode(2, nil, 47.5010, 19.0000),
		roadnet.NewNode(3, nil, 47.5020, 19.0000),
		roadnet.NewNode(4, nil, 47.5030, 19.0000),
		roadnet.NewNode(5, nil, 47.5100, 19.0100),
		roadnet.NewNode(6, nil, 47.5110, 19.0100),
	}, []roadnet.Road{
		{ID: 100, Tags: roadnet.NewTags(map[string]string{"highway": "primary", "name": "Fő utca"}), Nodes: []int64{1, 2}},
		{ID: 101, Tags: roadnet.NewTags(map[string]string{"highway": "residential"}), Nodes: []int64{2, 3}},
		{ID: 102, Tags: roadnet.NewTags(map[string]string{"highway": "service"}), Nodes: []int64{3, 4}},
		{ID: 103, Tags: roadnet.NewTags(map[string]string{"highway": "track"}), Nodes: []int64{5, 6}},
	})
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(logger, engine.New(store, engine.WithLogger(logger)))
}

func request(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText returns the first text content of a result
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("nil result")
	}
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			return text.Text
		}
	}
	t.Fatal("result has no text content")
	return ""
}

func assertSuccess(t *testing.T, result *mcp.CallToolResult) {
	t.Helper()
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, code string) DetailedError {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected an error result, got %s", resultText(t, result))
	}
	var detail DetailedError
	if err := json.Unmarshal([]byte(resultText(t, result)), &detail); err != nil {
		t.Fatalf("error result is not JSON: %v", err)
	}
	if detail.Code != code {
		t.Errorf("error code = %s, want %s", detail.Code, code)
	}
	return detail
}
