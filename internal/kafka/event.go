package kafka

import "time"

// NewCallEvent stamps a CallEvent with the current time.
func NewCallEvent(eventType, callerID, calleeID, stage string) *CallEvent {
	return &CallEvent{
		Type:      eventType,
		CallerID:  callerID,
		CalleeID:  calleeID,
		Stage:     stage,
		Timestamp: time.Now().Unix(),
	}
}

// PairKey returns an order-independent key for two connection ids.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
