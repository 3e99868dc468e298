package kafka

import "context"

// CallEvent records a call lifecycle transition between two peers.
type CallEvent struct {
	Type      string `json:"type"` // "call_invited" | "call_accepted" | "call_timeout"
	CallerID  string `json:"caller_id"`
	CalleeID  string `json:"callee_id"`
	Stage     string `json:"stage,omitempty"` // set on call_timeout
	Timestamp int64  `json:"timestamp"`
}

// Event types
const (
	EventCallInvited  = "call_invited"
	EventCallAccepted = "call_accepted"
	EventCallTimeout  = "call_timeout"
)

// CallEventProducer defines the interface for producing call events.
type CallEventProducer interface {
	ProduceCallInvited(ctx context.Context, callerID, calleeID string) error
	ProduceCallAccepted(ctx context.Context, callerID, calleeID string) error
	ProduceCallTimeout(ctx context.Context, callerID, calleeID, stage string) error
	Close() error
}
