package server

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/NERVsystems/osmreach/pkg/engine"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
	"github.com/NERVsystems/osmreach/pkg/tools"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// chainStore returns n roads in a line, road i running from node i to node
// i+1, so road 1 reaches road k at depth k-1
func chainStore(t *testing.T, n int) *roadnet.Store {
	t.Helper()
	nodes := make([]roadnet.Node, 0, n+1)
	for i := 1; i <= n+1; i++ {
		nodes = append(nodes, roadnet.NewNode(int64(i), nil, 47.5, 19.0+0.0005*float64(i)))
	}
	roads := make([]roadnet.Road, 0, n)
	for i := 1; i <= n; i++ {
		roads = append(roads, roadnet.Road{
			ID:    int64(i),
			Tags:  roadnet.NewTags(map[string]string{"highway": "residential"}),
			Nodes: []int64{int64(i), int64(i + 1)},
		})
	}
	store, err := roadnet.NewStore(nodes, roads)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// testTransport serves a three road chain through the full middleware chain
func testTransport(t *testing.T, config HTTPTransportConfig) (*HTTPTransport, *httptest.Server) {
	t.Helper()
	return transportFor(t, engineFor(t), config)
}

func engineFor(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.New(chainStore(t, 3), engine.WithLogger(discardLogger()))
}

func transportFor(t *testing.T, eng *engine.Engine, config HTTPTransportConfig) (*HTTPTransport, *httptest.Server) {
	t.Helper()
	logger := discardLogger()
	mcp := NewServer(tools.NewRegistry(logger, eng), logger)
	tr := NewHTTPTransport(eng, mcp.GetMCPServer(), config, logger)
	srv := httptest.NewServer(tr.Handler())
	t.Cleanup(func() {
		srv.Close()
		if tr.rateLimiter != nil {
			tr.rateLimiter.Stop()
		}
	})
	return tr, srv
}

func testConfig() HTTPTransportConfig {
	config := DefaultHTTPTransportConfig()
	config.RateLimit = 0
	return config
}
