// Package monitoring exposes Prometheus metrics and health endpoints for osmreach.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "osmreach"
)

var (
	// Query metrics
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmreach_queries_total",
			Help: "Total number of connectivity queries processed",
		},
		[]string{"mode", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmreach_query_duration_seconds",
			Help:    "Connectivity query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"mode"},
	)

	QueryLevels = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osmreach_query_levels",
			Help:    "Number of non-empty breadth-first levels per query",
			Buckets: prometheus.LinearBuckets(0, 2, 16),
		},
	)

	QueryReachedRoads = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osmreach_query_reached_roads",
			Help:    "Number of roads reached per query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	CandidatePoolSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osmreach_candidate_pool_size",
			Help:    "Number of roads surviving the bounding-box prefilter",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		},
	)

	// MCP request metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmreach_mcp_requests_total",
			Help: "Total number of MCP requests processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmreach_mcp_request_duration_seconds",
			Help:    "MCP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// Ingestion metrics
	IngestElements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmreach_ingest_elements_total",
			Help: "Raw elements read from the source extract",
		},
		[]string{"format", "kind"},
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmreach_ingest_pass_duration_seconds",
			Help:    "Duration of one pass over the source extract",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"format", "kind"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmreach_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"transport"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmreach_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmreach_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osmreach_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Store metrics
	StoreRoads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmreach_store_roads",
			Help: "Number of roads in the loaded network",
		},
	)

	StoreNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmreach_store_nodes",
			Help: "Number of nodes in the loaded network",
		},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osmreach_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport", "type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmreach_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osmreach_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmreach_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmreach_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmreach_gc_runs_total",
			Help: "Total number of garbage collection runs",
		},
	)
)

// TransportInfo holds transport configuration and status
type TransportInfo struct {
	Type           string `json:"type"`                      // "http" or "stdio"
	HTTPAddr       string `json:"http_addr,omitempty"`       // HTTP address if enabled
	ActiveSessions int    `json:"active_sessions,omitempty"` // Active WebSocket sessions
}

// ServiceHealth is the body of the /health endpoint
type ServiceHealth struct {
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Status        string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        time.Duration          `json:"uptime"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	StartTime     time.Time              `json:"start_time,omitempty"`
	Components    map[string]ConnStatus  `json:"components"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
	Transport     *TransportInfo         `json:"transport,omitempty"`
}

// ConnStatus is the status of one monitored component
type ConnStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`               // "connected", "degraded", "error"
	Latency   int64  `json:"latency_ms,omitempty"` // Check latency in milliseconds
	LastError string `json:"last_error,omitempty"`
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordQuery records one finished query. mode is "batch" or "stream".
func RecordQuery(mode string, duration time.Duration, success bool) {
	QueriesTotal.WithLabelValues(mode, statusLabel(success)).Inc()
	QueryDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordResolution records the shape of a completed resolution
func RecordResolution(poolSize, levels, reached int) {
	CandidatePoolSize.Observe(float64(poolSize))
	QueryLevels.Observe(float64(levels))
	QueryReachedRoads.Observe(float64(reached))
}

func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordIngestPass records one full pass over the source extract
func RecordIngestPass(format, kind string, count int, duration time.Duration) {
	IngestElements.WithLabelValues(format, kind).Add(float64(count))
	IngestDuration.WithLabelValues(format, kind).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

// UpdateStoreSize publishes the loaded network's size
func UpdateStoreSize(roads, nodes int) {
	StoreRoads.Set(float64(roads))
	StoreNodes.Set(float64(nodes))
}

func RecordRateLimitExceeded(transport string) {
	RateLimitExceeded.WithLabelValues(transport).Inc()
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func UpdateActiveConnections(transport, connType string, count int) {
	ActiveConnections.WithLabelValues(transport, connType).Set(float64(count))
}
