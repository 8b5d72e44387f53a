package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// Consume delivers messages from queueName to handle one at a time until
// ctx ends or the channel closes. Failed messages go through HandleFailure.
func Consume(ctx context.Context, ch *amqp091.Channel, queueName string, handle Handler) error {
	msgs, err := ch.Consume(
		queueName,
		queueName+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", queueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping consumer", "queue", queueName)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				log.Info("Message channel closed", "queue", queueName)
				return nil
			}
			Dispatch(ctx, ch, msg, queueName, handle)
		}
	}
}

// Dispatch runs handle on msg and acknowledges it, or hands it to
// HandleFailure when handle fails.
func Dispatch(ctx context.Context, pub Publisher, msg amqp091.Delivery, queueName string, handle Handler) {
	start := time.Now()
	if err := handle(ctx, msg.Body); err != nil {
		log.Error("Error processing message", "queue", queueName, "err", err)
		HandleFailure(ctx, pub, msg, queueName)
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", "err", err)
	}
	log.Info("Message processed", "queue", queueName, "duration", time.Since(start).Round(time.Millisecond))
}

// retries reads the x-retries header. Brokers may hand integers back in
// any width.
func retries(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// HandleFailure republishes msg to <queue>_retry with an incremented
// x-retries header, or to <queue>_dlq once MaxRetries is reached. The
// message is requeued if neither publish succeeds.
func HandleFailure(ctx context.Context, pub Publisher, msg amqp091.Delivery, queueName string) {
	n := retries(msg.Headers)

	if n >= MaxRetries {
		dlqName := queueName + "_dlq"
		log.Warn("Sending message to DLQ", "dlq", dlqName, "retries", n)
		err := pub.PublishWithContext(ctx, "", dlqName, false, false, amqp091.Publishing{
			ContentType: msg.ContentType,
			Body:        msg.Body,
			Headers:     msg.Headers,
		})
		if err != nil {
			log.Error("Failed to publish to DLQ", "dlq", dlqName, "err", err)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(n + 1)

	err := pub.PublishWithContext(ctx, "", retryName, false, false, amqp091.Publishing{
		ContentType: msg.ContentType,
		Body:        msg.Body,
		Headers:     headers,
	})
	if err != nil {
		log.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

// Subscribe binds a private queue to topic on Exchange and delivers every
// message to handle. Handler errors are logged; topic messages are not
// retried.
func Subscribe(ctx context.Context, ch *amqp091.Channel, topic string, handle Handler) error {
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare subscription queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, topic, Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s: %w", topic, err)
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	log.Info("Subscribed", "topic", topic)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := handle(ctx, msg.Body); err != nil {
				log.Error("Failed to handle topic message", "topic", topic, "err", err)
			}
		}
	}
}
