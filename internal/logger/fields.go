package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Tracing Fields (Context level)
// Propagated through the call chain of one request
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldUserID is the acting user, empty for anonymous callers
	FieldUserID = "user_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldStrategy is the recommendation view or cascade step being computed
	FieldStrategy = "strategy"

	// FieldProvider is the external provider being called (embedding, llm, qdrant)
	FieldProvider = "provider"

	// FieldDestinationID is the destination being scored
	FieldDestinationID = "destination_id"
)

// ============================================
// Metric Fields (Entry level)
// Used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldCacheHit marks whether a cached value was served
	FieldCacheHit = "cache_hit"
)
