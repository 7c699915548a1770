// Package events connects the engine to the storefront event bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/stocklink/bomsync/internal/bom"
)

const (
	ExchangeName = "storefront"
	ExchangeType = "topic"
	RoutingKey   = "order.created"
	QueueName    = "bomsync.order-deduction"
)

// Consumer subscribes to order-created events and feeds them to the
// deduction listener. Redelivery and ordering guarantees belong to the
// broker; malformed payloads are logged and dropped.
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	listener *bom.DeductionListener
}

// Connect dials the broker and declares the exchange, with a short retry
// loop for container startup.
func Connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Printf("Failed to connect to event bus (attempt %d): %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to event bus: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName, // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}

// NewConsumer creates a consumer over an open channel.
func NewConsumer(conn *amqp.Connection, ch *amqp.Channel, listener *bom.DeductionListener) *Consumer {
	return &Consumer{conn: conn, ch: ch, listener: listener}
}

// Start declares and binds the deduction queue and consumes it until the
// context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	q, err := c.ch.QueueDeclare(
		QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("could not declare queue: %w", err)
	}

	if err := c.ch.QueueBind(q.Name, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("could not bind queue: %w", err)
	}

	msgs, err := c.ch.Consume(
		q.Name,
		"",    // consumer tag
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("could not start consume: %w", err)
	}

	go func() {
		log.Println("📡 Event consumer started")
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				var ev bom.OrderEvent
				if err := json.Unmarshal(d.Body, &ev); err != nil {
					log.Printf("Error unmarshaling order event: %v", err)
					continue
				}
				if err := c.listener.HandleOrderCreated(ctx, ev); err != nil {
					log.Printf("Error handling order event: %v", err)
				}
			}
		}
	}()

	return nil
}

// Close shuts the channel and connection down.
func (c *Consumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
