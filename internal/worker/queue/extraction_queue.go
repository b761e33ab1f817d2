package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/RubachokBoss/evalmate/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Request is one extraction request taken off the queue. Exactly one of Ack or Requeue must be called.
type Request struct {
	Body        []byte
	Redelivered bool
	QueuedAt    time.Time
	Ack         func() error
	Requeue     func() error
}

// ExtractionQueue is the worker side of the extraction queue.
type ExtractionQueue interface {
	Requests(ctx context.Context) (<-chan Request, error)
	Backlog() (int, error)
	Close() error
}

type extractionQueue struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	tag      string
	prefetch int
	logger   zerolog.Logger
}

// NewExtractionQueue declares the same exchange, queue and binding as the API publisher,
// so the worker may start first. prefetch caps unacked requests held by this worker.
func NewExtractionQueue(cfg config.RabbitMQConfig, prefetch int, logger zerolog.Logger) (ExtractionQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(channel, cfg); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	if prefetch < 1 {
		prefetch = 1
	}

	return &extractionQueue{
		conn:     conn,
		channel:  channel,
		queue:    cfg.QueueName,
		tag:      cfg.ConsumerTag,
		prefetch: prefetch,
		logger:   logger.With().Str("queue", cfg.QueueName).Logger(),
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare extraction queue: %w", err)
	}
	if err := ch.QueueBind(cfg.QueueName, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind extraction queue: %w", err)
	}
	return nil
}

func (q *extractionQueue) Requests(ctx context.Context) (<-chan Request, error) {
	if err := q.channel.Qos(q.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := q.channel.Consume(q.queue, q.tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume extraction queue: %w", err)
	}

	out := make(chan Request)
	go q.forward(ctx, deliveries, out)

	q.logger.Info().
		Str("consumer_tag", q.tag).
		Int("prefetch", q.prefetch).
		Msg("Listening for extraction requests")

	return out, nil
}

func (q *extractionQueue) forward(ctx context.Context, deliveries <-chan amqp.Delivery, out chan<- Request) {
	defer close(out)

	for {
		var d amqp.Delivery
		select {
		case <-ctx.Done():
			return
		case next, ok := <-deliveries:
			if !ok {
				q.logger.Warn().Msg("Broker closed the delivery channel")
				return
			}
			d = next
		}

		req := Request{
			Body:        d.Body,
			Redelivered: d.Redelivered,
			QueuedAt:    d.Timestamp,
			Ack:         func() error { return d.Ack(false) },
			Requeue:     func() error { return d.Nack(false, true) },
		}

		select {
		case out <- req:
		case <-ctx.Done():
			// никто не заберёт, вернуть в очередь
			if err := d.Nack(false, true); err != nil {
				q.logger.Error().Err(err).Msg("Failed to requeue extraction request")
			}
			return
		}
	}
}

// Backlog is the number of requests waiting in the queue, not counting unacked ones.
func (q *extractionQueue) Backlog() (int, error) {
	state, err := q.channel.QueueDeclarePassive(q.queue, true, false, false, false, nil)
	if err != nil {
		return 0, err
	}
	return state.Messages, nil
}

func (q *extractionQueue) Close() error {
	if err := q.channel.Cancel(q.tag, false); err != nil {
		q.logger.Error().Err(err).Msg("Failed to cancel consumer")
	}
	if err := q.channel.Close(); err != nil {
		q.logger.Error().Err(err).Msg("Failed to close channel")
	}
	if err := q.conn.Close(); err != nil {
		return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
	}
	return nil
}
