package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/cardioai-backend/internal/queue"
)

// AMQPPublisher hands messages to the mailer worker via a durable queue.
// Each Send dials, publishes one persistent message and closes; reset mails
// are rare enough that a long-lived channel is not worth its reconnect logic.
type AMQPPublisher struct {
	URL   string
	Queue string
	Now   func() time.Time
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	if queue == "" {
		queue = q.DefaultMailQueue
	}
	return &AMQPPublisher{URL: url, Queue: queue, Now: time.Now}
}

func (p *AMQPPublisher) Send(ctx context.Context, m Message) error {
	if err := m.validate(); err != nil {
		return err
	}
	pub, err := p.publishing(m)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) publishing(m Message) (amqp.Publishing, error) {
	now := p.Now().UTC()
	body, err := json.Marshal(q.NewMailRequested(m.To, m.Subject, m.HTML, now))
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("rabbitmq: marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    now,
		Body:         body,
	}, nil
}
