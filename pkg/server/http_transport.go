package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/engine"
	"github.com/NERVsystems/osmreach/pkg/monitoring"
	"github.com/NERVsystems/osmreach/pkg/render"
)

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string   `json:"addr"`             // listen address, e.g. ":8080"
	BaseURL        string   `json:"base_url"`         // base URL for service discovery
	AuthToken      string   `json:"auth_token"`       // bearer token; empty disables auth
	MCPEndpoint    string   `json:"mcp_endpoint"`     // MCP streamable HTTP path
	RateLimit      float64  `json:"rate_limit"`       // requests per second per IP, 0 disables
	RateBurst      int      `json:"rate_burst"`       // burst size for the rate limiter
	MaxRequestSize int64    `json:"max_request_size"` // maximum request body size in bytes
	MaxHeaderBytes int      `json:"max_header_bytes"` // maximum header size in bytes
	StreamBuffer   int      `json:"stream_buffer"`    // levels buffered per WebSocket session
	AllowedOrigins []string `json:"allowed_origins"`  // WebSocket origins, "*" allows any
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":8080",
		MCPEndpoint:    "/mcp",
		RateLimit:      10,
		RateBurst:      20,
		MaxRequestSize: 1 << 20,
		MaxHeaderBytes: 1 << 20,
		StreamBuffer:   4,
	}
}

// HTTPTransport serves query routes, WebSocket sessions, health checks and
// MCP over one HTTP listener
type HTTPTransport struct {
	config        HTTPTransportConfig
	logger        *slog.Logger
	engine        *engine.Engine
	mcpHTTP       *mcpserver.StreamableHTTPServer
	mux           *http.ServeMux
	httpSrv       *http.Server
	rateLimiter   *RateLimiter
	sessions      *sessionSet
	healthChecker *monitoring.HealthChecker
	mu            sync.RWMutex
}

// NewHTTPTransport creates the transport. mcpServer may be nil, in which
// case the MCP endpoint is not mounted.
func NewHTTPTransport(eng *engine.Engine, mcpServer *mcpserver.MCPServer, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MCPEndpoint == "" {
		config.MCPEndpoint = "/mcp"
	}
	if config.StreamBuffer < 1 {
		config.StreamBuffer = 1
	}

	if config.AuthToken != "" {
		if err := core.ValidateAuthToken(config.AuthToken); err != nil {
			logger.Warn("weak authentication token detected", "error", err.Error())
		}
	}

	t := &HTTPTransport{
		config:   config,
		logger:   logger,
		engine:   eng,
		mux:      http.NewServeMux(),
		sessions: newSessionSet(),
	}
	if mcpServer != nil {
		t.mcpHTTP = mcpserver.NewStreamableHTTPServer(mcpServer,
			mcpserver.WithEndpointPath(config.MCPEndpoint),
		)
	}
	if config.RateLimit > 0 {
		t.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), max(config.RateBurst, 1))
	}

	t.setupRoutes()
	return t
}

// SetHealthChecker sets the health checker for the health routes
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthChecker = hc
}

// setupRoutes configures all HTTP routes
func (t *HTTPTransport) setupRoutes() {
	auth := BearerAuth(t.config.AuthToken, t.logger)

	t.mux.HandleFunc("GET /{$}", t.handleServiceDiscovery)

	t.mux.HandleFunc("GET /health", t.handleHealth)
	t.mux.HandleFunc("GET /ready", t.handleReady)
	t.mux.HandleFunc("GET /live", t.handleLive)

	t.mux.Handle("GET /svg", auth(http.HandlerFunc(t.handleSVG)))
	t.mux.Handle("GET /nodes", auth(http.HandlerFunc(t.handleNodes)))
	t.mux.Handle("GET /geojson", auth(http.HandlerFunc(t.handleGeoJSON)))
	t.mux.Handle("GET /ws", auth(http.HandlerFunc(t.handleWebSocket)))

	if t.mcpHTTP != nil {
		t.mux.Handle(t.config.MCPEndpoint, auth(t.mcpHTTP))
	}
}

// Handler returns the mux wrapped in the middleware chain
func (t *HTTPTransport) Handler() http.Handler {
	mws := []Middleware{
		TracingMiddleware(),
		LoggingMiddleware(t.logger),
		SecurityHeaders,
		RequestSizeLimiter(t.config.MaxRequestSize),
	}
	if t.rateLimiter != nil {
		mws = append(mws, t.rateLimiter.Middleware)
	}
	return Chain(t.mux, mws...)
}

// handleServiceDiscovery describes the service and the loaded network
func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	baseURL := t.config.BaseURL
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	endpoints := map[string]string{
		"svg":     baseURL + "/svg",
		"nodes":   baseURL + "/nodes",
		"geojson": baseURL + "/geojson",
		"ws":      baseURL + "/ws",
	}
	if t.mcpHTTP != nil {
		endpoints["mcp"] = baseURL + t.config.MCPEndpoint
	}

	store := t.engine.Store()
	writeJSON(w, t.logger, http.StatusOK, map[string]any{
		"service":   "osmreach",
		"endpoints": endpoints,
		"network": map[string]int{
			"roads": store.RoadCount(),
			"nodes": store.NodeCount(),
		},
		"auth": map[string]bool{
			"required": t.config.AuthToken != "",
		},
	})
}

func (t *HTTPTransport) handleSVG(w http.ResponseWriter, r *http.Request) {
	res, ok := t.query(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if _, err := w.Write([]byte(render.SVG(t.engine.Store(), res.Reached))); err != nil {
		t.logger.Debug("failed to write svg", "error", err)
	}
}

func (t *HTTPTransport) handleNodes(w http.ResponseWriter, r *http.Request) {
	res, ok := t.query(w, r)
	if !ok {
		return
	}
	writeJSON(w, t.logger, http.StatusOK, render.Paths(t.engine.Store(), res.Reached))
}

func (t *HTTPTransport) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	res, ok := t.query(w, r)
	if !ok {
		return
	}
	data, err := render.GeoJSON(t.engine.Store(), res.Reached).MarshalJSON()
	if err != nil {
		writeError(w, t.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if _, err := w.Write(data); err != nil {
		t.logger.Debug("failed to write geojson", "error", err)
	}
}

// query runs the batch query described by r's parameters. On failure the
// error response has been written and ok is false.
func (t *HTTPTransport) query(w http.ResponseWriter, r *http.Request) (*engine.Result, bool) {
	params, err := ParseParams(r)
	if err != nil {
		writeError(w, t.logger, err)
		return nil, false
	}
	q, err := params.Query()
	if err != nil {
		writeError(w, t.logger, err)
		return nil, false
	}

	res, err := t.engine.Query(r.Context(), q)
	if err != nil {
		if r.Context().Err() != nil {
			t.logger.Debug("client went away", "request_id", RequestID(r.Context()))
			return nil, false
		}
		writeError(w, t.logger, err)
		return nil, false
	}
	return res, true
}

// ParseParams reads road_id, lat, lon, at, depth and bbox from the URL query
func ParseParams(r *http.Request) (engine.Params, error) {
	values := r.URL.Query()
	var p engine.Params

	if s := values.Get("road_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return p, core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("road_id must be an integer, got %q", s))
		}
		p.RoadID = &id
	}
	for name, dst := range map[string]**float64{"lat": &p.Lat, "lon": &p.Lon, "bbox": &p.Radius} {
		s := values.Get(name)
		if s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return p, core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("%s must be a number, got %q", name, s))
		}
		*dst = &f
	}
	if s := values.Get("depth"); s != "" {
		d, err := strconv.Atoi(s)
		if err != nil {
			return p, core.NewValidationError(core.ErrInvalidDepth, fmt.Sprintf("depth must be an integer, got %q", s))
		}
		p.Depth = &d
	}
	p.At = values.Get("at")
	return p, nil
}

// handleHealth reports overall health
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	t.mu.RLock()
	hc := t.healthChecker
	t.mu.RUnlock()

	if hc != nil {
		hc.HealthHandler()(w, r)
		return
	}
	writeJSON(w, t.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady provides a readiness check
func (t *HTTPTransport) handleReady(w http.ResponseWriter, r *http.Request) {
	t.mu.RLock()
	hc := t.healthChecker
	t.mu.RUnlock()

	if hc != nil {
		hc.ReadinessHandler()(w, r)
		return
	}
	writeJSON(w, t.logger, http.StatusOK, map[string]any{"ready": true, "status": "ok"})
}

// handleLive provides a liveness check
func (t *HTTPTransport) handleLive(w http.ResponseWriter, r *http.Request) {
	t.mu.RLock()
	hc := t.healthChecker
	t.mu.RUnlock()

	if hc != nil {
		hc.LivenessHandler()(w, r)
		return
	}
	writeJSON(w, t.logger, http.StatusOK, map[string]bool{"alive": true})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to encode response", "error", err)
	}
}

// writeError writes err as a JSON core.Error with its HTTP status
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	e := core.AsError(err)
	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		monitoring.RecordError("http", string(e.Code))
	}
	writeJSON(w, logger, status, e)
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (t *HTTPTransport) Start() error {
	t.mu.Lock()

	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("Stop the transport before starting it again.")
	}

	t.httpSrv = &http.Server{
		Addr:              t.config.Addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    t.config.MaxHeaderBytes,
	}
	srv := t.httpSrv
	t.mu.Unlock()

	tls := t.config.TLSCertFile != "" && t.config.TLSKeyFile != ""
	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"mcp_endpoint", t.config.MCPEndpoint,
		"auth", t.config.AuthToken != "",
		"rate_limit", t.config.RateLimit,
		"tls_enabled", tls)

	if tls {
		return srv.ListenAndServeTLS(t.config.TLSCertFile, t.config.TLSKeyFile)
	}
	return srv.ListenAndServe()
}

// Shutdown closes WebSocket sessions and gracefully stops the server
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
	}
	t.sessions.closeAll()

	t.mu.Lock()
	srv := t.httpSrv
	t.httpSrv = nil
	t.mu.Unlock()

	if srv == nil {
		return nil
	}
	t.logger.Info("shutting down HTTP transport")

	if t.mcpHTTP != nil {
		if err := t.mcpHTTP.Shutdown(ctx); err != nil {
			t.logger.Error("failed to shut down MCP transport", "error", err)
		}
	}
	return srv.Shutdown(ctx)
}

// GetConfig returns the transport configuration
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}
