package model

import (
	"encoding/json"
	"time"
)

// Order event types. Closed enumeration: the emitter rejects anything else.
const (
	EventOrderCreated     = "order_created"
	EventRunnerAssigned   = "runner_assigned"
	EventRunnerEnRoute    = "runner_en_route"
	EventRunnerArrived    = "runner_arrived"
	EventOTPVerified      = "otp_verified"
	EventHandoffCompleted = "handoff_completed"
	EventOrderCancelled   = "order_cancelled"
	EventRefundProcessing = "refund_processing"
	EventRefundSucceeded  = "refund_succeeded"
	EventRefundFailed     = "refund_failed"
)

// OrderEvent is an append-only log entry, distinct from status transitions.
// Multiple events may correlate with zero or one status change; e.g.
// runner_arrived marks a sub-state of Pending Handoff without widening the
// status enum.
type OrderEvent struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	FromStatus     *string         `json:"from_status,omitempty"`
	ToStatus       *string         `json:"to_status,omitempty"`
	ActorID        *string         `json:"actor_id,omitempty"`
	ActorRole      *string         `json:"actor_role,omitempty"`
	ClientActionID *string         `json:"client_action_id,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

var eventTypes = map[string]struct{}{
	EventOrderCreated:     {},
	EventRunnerAssigned:   {},
	EventRunnerEnRoute:    {},
	EventRunnerArrived:    {},
	EventOTPVerified:      {},
	EventHandoffCompleted: {},
	EventOrderCancelled:   {},
	EventRefundProcessing: {},
	EventRefundSucceeded:  {},
	EventRefundFailed:     {},
}

// ValidEventType reports whether t belongs to the closed event enumeration.
func ValidEventType(t string) bool {
	_, ok := eventTypes[t]
	return ok
}

// systemEventTypes are produced only by the lifecycle itself: status
// writes, code verification, refund processing. Customers and runners may
// not emit them directly.
var systemEventTypes = map[string]struct{}{
	EventOrderCreated:     {},
	EventRunnerAssigned:   {},
	EventOTPVerified:      {},
	EventHandoffCompleted: {},
	EventOrderCancelled:   {},
	EventRefundProcessing: {},
	EventRefundSucceeded:  {},
	EventRefundFailed:     {},
}

// SystemEventType reports whether t is reserved for internal emitters.
func SystemEventType(t string) bool {
	_, ok := systemEventTypes[t]
	return ok
}
