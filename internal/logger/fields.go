package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Tracing fields (context level)
// Propagated through the call chain of one request or message
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldScopeID is the chat scope (channel/guild) being moderated
	FieldScopeID = "scope_id"

	// FieldMessageID is the inbound chat message ID
	FieldMessageID = "message_id"

	// FieldUserID is the sender of the inbound message
	FieldUserID = "user_id"

	// FieldContentID is the content identifier of an image
	FieldContentID = "content_id"
)

// ============================================
// Metric fields (Entry level)
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

	// FieldDistance is the edit distance of a fingerprint comparison
	FieldDistance = "distance"

	// FieldVerdict is the matching verdict for a message
	FieldVerdict = "verdict"
)
