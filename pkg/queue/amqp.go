// Package queue publishes and consumes ingest jobs over AMQP. A job is
// just a source name; redelivery is harmless because loads are
// idempotent, so the queue settles for at-least-once delivery.
package queue

import (
	"context"
	"fmt"

	"github.com/oarkflow/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/citypulse/ingest/pkg/contracts"
)

type AMQP struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	name    string
	logger  *log.Logger
}

var _ contracts.Queue = (*AMQP)(nil)

// Dial connects to the broker and declares the durable job queue.
func Dial(url, name string, logger *log.Logger) (*AMQP, error) {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue: connecting to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: opening channel: %w", err)
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("queue: declaring %q: %w", name, err)
	}
	return &AMQP{conn: conn, channel: ch, name: name, logger: logger}, nil
}

// Enqueue publishes one job with persistent delivery.
func (q *AMQP) Enqueue(ctx context.Context, job string) error {
	err := q.channel.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		Body:         []byte(job),
	})
	if err != nil {
		return fmt.Errorf("queue: publishing %q: %w", job, err)
	}
	q.logger.Info().Str("job", job).Msg("job enqueued")
	return nil
}

// Consume delivers jobs to handle until ctx is cancelled. A handler
// error leaves the message unacked so the broker redelivers it.
func (q *AMQP) Consume(ctx context.Context, handle func(ctx context.Context, job string) error) error {
	if err := q.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("queue: setting prefetch: %w", err)
	}
	deliveries, err := q.channel.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue: consuming %q: %w", q.name, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("queue: delivery channel closed")
			}
			job := string(d.Body)
			if err := handle(ctx, job); err != nil {
				q.logger.Error().Err(err).Str("job", job).Msg("job failed, returning to queue")
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}
}

func (q *AMQP) Close() error {
	if err := q.channel.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
