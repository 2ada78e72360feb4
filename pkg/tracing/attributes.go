package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for osmreach operations
const (
	// Query attributes
	AttrQueryMode     = "osmreach.query.mode"
	AttrQueryRootID   = "osmreach.query.root_id"
	AttrQueryDepth    = "osmreach.query.depth"
	AttrQueryRadius   = "osmreach.query.radius"
	AttrQuerySelector = "osmreach.query.selector"

	// Resolution attributes
	AttrPoolSize     = "osmreach.resolve.pool_size"
	AttrLevelDepth   = "osmreach.resolve.level"
	AttrLevelRoads   = "osmreach.resolve.level_roads"
	AttrReachedRoads = "osmreach.resolve.reached"

	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	// Cache attributes
	AttrCacheType = "osmreach.cache.type"
	AttrCacheHit  = "osmreach.cache.hit"
	AttrCacheKey  = "osmreach.cache.key"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPSessionID  = "http.session_id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
)

// Cache types
const (
	CacheTypeArtifact = "artifact"
	CacheTypeResult   = "result"
)

// QueryAttributes returns attributes describing a resolved query
func QueryAttributes(mode string, rootID int64, depth int, radius float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrQueryMode, mode),
		attribute.Int64(AttrQueryRootID, rootID),
		attribute.Int(AttrQueryDepth, depth),
		attribute.Float64(AttrQueryRadius, radius),
	}
}

// LevelAttributes returns attributes for one breadth-first level
func LevelAttributes(depth, roads int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrLevelDepth, depth),
		attribute.Int(AttrLevelRoads, roads),
	}
}

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
