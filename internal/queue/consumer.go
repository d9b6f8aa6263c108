package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MailHandler delivers one decoded event.  Returning an error rejects the
// message without requeue.
type MailHandler func(ctx context.Context, ev MailRequestedEvent) error

// MailConsumer reads MailRequestedEvents from a durable queue.
type MailConsumer struct {
	URL      string
	Queue    string
	Handle   MailHandler
	Logger   *slog.Logger
	Prefetch int

	// HandleTimeout bounds one Handle call so a stalled delivery cannot
	// stop the loop.  Zero means DefaultHandleTimeout.
	HandleTimeout time.Duration
}

const DefaultHandleTimeout = time.Minute

// Run connects to RabbitMQ, declares the queue and consumes until ctx is
// cancelled.  Broker failures are retried with exponential backoff capped at
// 30s; only ctx cancellation makes Run return.
func (mc *MailConsumer) Run(ctx context.Context) error {
	if mc.Queue == "" {
		mc.Queue = DefaultMailQueue
	}
	if mc.Logger == nil {
		mc.Logger = slog.Default()
	}
	if mc.Prefetch <= 0 {
		mc.Prefetch = 50
	}
	if mc.HandleTimeout <= 0 {
		mc.HandleTimeout = DefaultHandleTimeout
	}

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(mc.URL)
		if err != nil {
			mc.Logger.Warn("mail-consumer: failed to dial broker", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = mc.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mc.Logger.Warn("mail-consumer: consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (mc *MailConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(mc.Prefetch, 0, false); err != nil {
		mc.Logger.Warn("mail-consumer: set QoS failed", "err", err)
	}

	if _, err := ch.QueueDeclare(mc.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(mc.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	return mc.drain(ctx, msgs)
}

// drain handles deliveries one at a time until ctx ends or msgs closes.
func (mc *MailConsumer) drain(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := mc.process(ctx, d.Body); err != nil {
				mc.Logger.Error("mail-consumer: handle message failed", "err", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (mc *MailConsumer) process(ctx context.Context, body []byte) error {
	ev, err := DecodeMailRequested(body)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	timeout := mc.HandleTimeout
	if timeout <= 0 {
		timeout = DefaultHandleTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := mc.Handle(hctx, ev); err != nil {
		return fmt.Errorf("deliver to %s: %w", ev.To, err)
	}
	mc.Logger.Info("mail-consumer: delivered", "to", ev.To, "subject", ev.Subject)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
