package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"cashdrop/internal/service"
)

const notificationsQueue = "notifications_queue"

// Dispatcher drains the notifications queue: each message carries an
// order-event id, the dispatcher loads the event and pushes it out.
// Failures are logged and the message dropped; the event log itself is the
// durable record. On broker errors it reconnects with linear backoff
// (attempt * base delay) up to maxAttempts before giving up.
type Dispatcher struct {
	url    string
	events *service.EventService
	push   *PushClient

	baseDelay   time.Duration
	maxAttempts int
}

func NewDispatcher(url string, events *service.EventService, push *PushClient) *Dispatcher {
	return &Dispatcher{
		url:         url,
		events:      events,
		push:        push,
		baseDelay:   time.Second,
		maxAttempts: 5,
	}
}

// Run consumes until the context is cancelled or the reconnect budget is
// exhausted.
func (d *Dispatcher) Run(ctx context.Context) error {
	attempt := 0
	for {
		consumed, err := d.consumeOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if consumed {
			attempt = 0
		}
		attempt++
		if attempt > d.maxAttempts {
			return fmt.Errorf("notification dispatcher degraded: %w", err)
		}
		slog.Warn("notification channel dropped, reconnecting", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(attempt) * d.baseDelay):
		}
	}
}

// consumeOnce builds a fresh connection and consumes until the delivery
// channel closes. Reports whether consumption was established at all.
func (d *Dispatcher) consumeOnce(ctx context.Context) (bool, error) {
	conn, err := amqp.Dial(d.url)
	if err != nil {
		return false, fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return false, fmt.Errorf("open channel: %w", err)
	}
	defer channel.Close()

	deliveries, err := channel.Consume(
		notificationsQueue, // queue
		"",                 // consumer
		true,               // auto-ack
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		return false, fmt.Errorf("start consume: %w", err)
	}

	slog.Info("notification dispatcher started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("notification dispatcher stopped")
			return true, nil
		case msg, ok := <-deliveries:
			if !ok {
				return true, fmt.Errorf("delivery channel closed")
			}
			if err := d.handle(ctx, msg.Body); err != nil {
				slog.Error("notification dispatch failed", "error", err)
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, body []byte) error {
	var msg struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	ev, err := d.events.GetByID(ctx, msg.EventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", msg.EventID, err)
	}

	if err := d.push.Send(ctx, ev); err != nil {
		return fmt.Errorf("push event %s: %w", ev.ID, err)
	}

	slog.Info("notification pushed", "event_id", ev.ID, "order_id", ev.OrderID, "type", ev.EventType)
	return nil
}
