package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ordersExchange        = "orders.changes"
	notificationsExchange = "notifications.fanout"
	notificationsQueue    = "notifications_queue"
)

// Broker owns the publishing side: one connection, one channel, the
// exchange topology declared up front.
type Broker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func Connect(url string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &Broker{conn: conn, channel: channel}, nil
}

func declareTopology(channel *amqp.Channel) error {
	err := channel.ExchangeDeclare(
		ordersExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare orders exchange: %w", err)
	}

	err = channel.ExchangeDeclare(
		notificationsExchange, // name
		"fanout",              // type
		true,                  // durable
		false,                 // auto-deleted
		false,                 // internal
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare notifications exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		notificationsQueue, // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		return fmt.Errorf("declare notifications queue: %w", err)
	}

	err = channel.QueueBind(
		notificationsQueue,    // queue name
		"",                    // routing key
		notificationsExchange, // exchange
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("bind notifications queue: %w", err)
	}

	return nil
}

func (b *Broker) Close() {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}

// PublishChange fans an order change out to the orders topic exchange.
func (b *Broker) PublishChange(ev ChangeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	return b.publish(ordersExchange, ev.RoutingKey(), body)
}

// PublishNotification enqueues a push-notification dispatch keyed by the
// order-event id. Best effort from the emitter's perspective.
func (b *Broker) PublishNotification(eventID string) error {
	body, err := json.Marshal(map[string]string{"event_id": eventID})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return b.publish(notificationsExchange, "", body)
}

func (b *Broker) publish(exchange, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return b.channel.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		})
}
