package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Service
	FieldService = "service"

	// Sync pass
	FieldPassID     = "pass_id"
	FieldRoomID     = "room_id"
	FieldBatchIndex = "batch_index"
	FieldBatchSize  = "batch_size"
	FieldStaleCount = "stale_count"
	FieldPrevStatus = "previous_status"
	FieldLiveStatus = "live_status"
	FieldRawStatus  = "raw_status"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
