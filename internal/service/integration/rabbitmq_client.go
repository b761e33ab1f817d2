package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	RoutingKeySubmissionRecorded = "submission.recorded"
	RoutingKeyFeedbackFinalized  = "feedback.finalized"
)

type RabbitMQClient interface {
	PublishExtractionRequested(ctx context.Context, event *models.ExtractionRequestedEvent) error
	PublishSubmissionRecorded(ctx context.Context, event *models.SubmissionRecordedEvent) error
	PublishFeedbackFinalized(ctx context.Context, event *models.FeedbackFinalizedEvent) error
	Close() error
}

type rabbitMQClient struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	exchange   string
	routingKey string
	queueName  string
	logger     zerolog.Logger
}

// NewRabbitMQClient declares the exchange and the extraction queue bound to routingKey.
// Domain events go to the same exchange under their own routing keys.
func NewRabbitMQClient(url, exchange, routingKey, queueName string, logger zerolog.Logger) (RabbitMQClient, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(queue.Name, routingKey, exchange, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	logger.Info().
		Str("exchange", exchange).
		Str("queue", queue.Name).
		Str("routing_key", routingKey).
		Msg("Connected to RabbitMQ")

	return &rabbitMQClient{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
		queueName:  queue.Name,
		logger:     logger,
	}, nil
}

func (c *rabbitMQClient) publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		publishCtx,
		c.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (c *rabbitMQClient) PublishExtractionRequested(ctx context.Context, event *models.ExtractionRequestedEvent) error {
	if err := c.publish(ctx, c.routingKey, event); err != nil {
		return err
	}

	c.logger.Info().
		Str("job_id", event.JobID).
		Str("title", event.Title).
		Str("student", event.Student).
		Msg("Extraction requested event published")
	return nil
}

func (c *rabbitMQClient) PublishSubmissionRecorded(ctx context.Context, event *models.SubmissionRecordedEvent) error {
	if err := c.publish(ctx, RoutingKeySubmissionRecorded, event); err != nil {
		return err
	}

	c.logger.Debug().Str("title", event.Title).Str("student", event.Student).Msg("Submission recorded event published")
	return nil
}

func (c *rabbitMQClient) PublishFeedbackFinalized(ctx context.Context, event *models.FeedbackFinalizedEvent) error {
	if err := c.publish(ctx, RoutingKeyFeedbackFinalized, event); err != nil {
		return err
	}

	c.logger.Debug().Str("title", event.Title).Str("student", event.Student).Msg("Feedback finalized event published")
	return nil
}

func (c *rabbitMQClient) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	return nil
}

// LogPublisher stands in for RabbitMQ when no broker is configured; events are only logged.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishSubmissionRecorded(_ context.Context, event *models.SubmissionRecordedEvent) error {
	p.logger.Debug().Str("event", RoutingKeySubmissionRecorded).Str("title", event.Title).Str("student", event.Student).Msg("Event")
	return nil
}

func (p *LogPublisher) PublishFeedbackFinalized(_ context.Context, event *models.FeedbackFinalizedEvent) error {
	p.logger.Debug().Str("event", RoutingKeyFeedbackFinalized).Str("title", event.Title).Str("student", event.Student).Msg("Event")
	return nil
}
