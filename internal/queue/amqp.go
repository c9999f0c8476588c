package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQP publishes and consumes dispatch jobs on a durable RabbitMQ queue.
type AMQP struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queueName string
	log       *zap.SugaredLogger
}

func NewAMQP(url, queueName string, log *zap.SugaredLogger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	return &AMQP{conn: conn, ch: ch, queueName: queueName, log: log}, nil
}

func (q *AMQP) Publish(_ context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.ch.Publish(
		"",
		q.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (q *AMQP) Consume(ctx context.Context, handler func(context.Context, Job) error) error {
	msgs, err := q.ch.Consume(
		q.queueName,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("broker channel closed")
			}
			var job Job
			if err := json.Unmarshal(d.Body, &job); err != nil {
				q.log.Warnw("invalid job payload, dropping", "error", err)
				d.Ack(false)
				continue
			}
			if err := handler(ctx, job); err != nil {
				// one redelivery attempt; a second failure drops the job so a
				// poisoned campaign cannot wedge the queue
				requeue := !d.Redelivered
				q.log.Errorw("dispatch job failed", "campaign_id", job.CampaignID,
					"requeue", requeue, "error", err)
				d.Nack(false, requeue)
				continue
			}
			d.Ack(false)
		}
	}
}

func (q *AMQP) Close() error {
	q.ch.Close()
	return q.conn.Close()
}

var _ Queue = (*AMQP)(nil)
