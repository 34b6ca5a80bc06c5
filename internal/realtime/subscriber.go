package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cashdrop/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handlers receive dispatched change events. A nil handler is skipped.
// Handler panics are recovered and logged, never propagated: a throwing
// handler must not tear down the subscription or its surroundings.
type Handlers struct {
	OnInsert   func(new *model.Order)
	OnUpdate   func(new, old *model.Order)
	OnDelete   func(old *model.Order)
	OnDegraded func(err error)
}

// Subscriber maintains one long-lived consumer per (role, scope)
// combination. On broker errors it reconnects with linear backoff
// (attempt * base delay) up to maxAttempts, then gives up and reports the
// degraded state via OnDegraded. Every reconnect fully tears down and
// recreates the connection and queue.
type Subscriber struct {
	url      string
	scope    Scope
	handlers Handlers

	baseDelay   time.Duration
	maxAttempts int

	// lastVersion guards against out-of-order delivery: an UPDATE carrying
	// a version at or below the last applied one for that order is stale
	// and discarded.
	lastVersion map[string]int64

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

func NewSubscriber(url string, scope Scope, handlers Handlers) *Subscriber {
	return &Subscriber{
		url:         url,
		scope:       scope,
		handlers:    handlers,
		baseDelay:   time.Second,
		maxAttempts: 5,
		lastVersion: make(map[string]int64),
	}
}

// Run consumes until the context is cancelled, Close is called, or the
// reconnect budget is exhausted.
func (s *Subscriber) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()

	attempt := 0
	for {
		connected, err := s.consumeOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			attempt = 0
		}
		attempt++
		if attempt > s.maxAttempts {
			slog.Error("realtime subscription degraded", "scope", s.scope.Kind, "error", err)
			if s.handlers.OnDegraded != nil {
				s.handlers.OnDegraded(err)
			}
			return
		}
		slog.Warn("realtime channel dropped, reconnecting",
			"scope", s.scope.Kind, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * s.baseDelay):
		}
	}
}

// Close tears the subscription down. Idempotent; safe to call on scope
// change or teardown regardless of Run's state.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
}

// consumeOnce builds a fresh connection, binds a server-named exclusive
// queue for the scope, and consumes until the delivery channel closes.
// Reports whether the subscription was established at all.
func (s *Subscriber) consumeOnce(ctx context.Context) (bool, error) {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return false, fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return false, fmt.Errorf("open channel: %w", err)
	}
	defer channel.Close()

	err = channel.ExchangeDeclare(
		ordersExchange, "topic",
		true, false, false, false, nil,
	)
	if err != nil {
		return false, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := channel.QueueDeclare(
		"",    // name (server generated)
		false, // durable
		false, // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return false, fmt.Errorf("declare queue: %w", err)
	}

	err = channel.QueueBind(q.Name, s.scope.BindingKey(), ordersExchange, false, nil)
	if err != nil {
		return false, fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := channel.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return false, fmt.Errorf("start consume: %w", err)
	}

	slog.Info("realtime subscription started", "scope", s.scope.Kind, "binding", s.scope.BindingKey())

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case d, ok := <-deliveries:
			if !ok {
				return true, fmt.Errorf("delivery channel closed")
			}
			var ev ChangeEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				slog.Error("malformed change event", "error", err)
				continue
			}
			s.dispatch(ev)
		}
	}
}

// dispatch applies the client-side scope filter and the staleness check,
// then invokes the role-appropriate handler.
func (s *Subscriber) dispatch(ev ChangeEvent) {
	if !s.scope.Matches(ev) {
		return
	}
	if s.stale(ev) {
		slog.Debug("discarding stale change event", "order_id", ev.row().ID, "version", ev.row().Version)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("change handler panicked", "scope", s.scope.Kind, "panic", r)
		}
	}()

	switch ev.Type {
	case ChangeInsert:
		if s.handlers.OnInsert != nil {
			s.handlers.OnInsert(ev.New)
		}
	case ChangeUpdate:
		if s.handlers.OnUpdate != nil {
			s.handlers.OnUpdate(ev.New, ev.Old)
		}
	case ChangeDelete:
		if s.handlers.OnDelete != nil {
			s.handlers.OnDelete(ev.Old)
		}
	}
}

// stale records and compares per-order versions. The feed is at-least-once
// with no cross-event ordering guarantee, so arrival order is untrusted.
func (s *Subscriber) stale(ev ChangeEvent) bool {
	o := ev.row()
	if o == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case ChangeDelete:
		delete(s.lastVersion, o.ID)
		return false
	default:
		if last, ok := s.lastVersion[o.ID]; ok && o.Version <= last {
			return true
		}
		s.lastVersion[o.ID] = o.Version
		return false
	}
}
