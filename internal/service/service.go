package service

import (
	"errors"
	"log/slog"

	"cashdrop/internal/realtime"
)

var (
	ErrUnauthenticated = errors.New("no authenticated actor")
	ErrNotFound        = errors.New("order not found")
	// ErrConflict: the required preceding status no longer holds, e.g.
	// another runner already accepted. Caller refreshes and retries.
	ErrConflict         = errors.New("order status conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownEventType = errors.New("unknown event type")
)

// Actor is the identity performing an operation, extracted from the
// request's auth context.
type Actor struct {
	ID   string
	Role string
}

// ChangePublisher fans order changes out to the realtime feed. Injected at
// construction so tests and alternate environments can substitute it; a
// nil publisher disables the feed.
type ChangePublisher interface {
	PublishChange(ev realtime.ChangeEvent) error
}

// NotificationPublisher enqueues a push-notification dispatch for an
// emitted order event.
type NotificationPublisher interface {
	PublishNotification(eventID string) error
}

// publishChange is best effort: the write already committed, a feed
// failure must not roll it back or surface to the caller.
func publishChange(pub ChangePublisher, ev realtime.ChangeEvent) {
	if pub == nil {
		return
	}
	if err := pub.PublishChange(ev); err != nil {
		slog.Error("publish change event failed", "type", ev.Type, "error", err)
	}
}
