package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Relay
	FieldConnID   = "conn_id"
	FieldPool     = "pool"
	FieldRoomID   = "room_id"
	FieldTargetID = "target_id"
	FieldMsgType  = "msg_type"
	FieldRecordID = "record_id"

	// Actor
	FieldUserID = "user_id"
	FieldEmail  = "email"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
