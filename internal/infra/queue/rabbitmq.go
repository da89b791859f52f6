package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"brand-radar/internal/domain"
	"brand-radar/internal/infra/metrics"
)

// RabbitScoreQueue реализует очередь расчётов баллов через AMQP.
// Задачи публикуются персистентными в долговечную очередь, подтверждение
// с ошибкой возвращает задачу брокеру.
type RabbitScoreQueue struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

var _ domain.ScoreQueue = (*RabbitScoreQueue)(nil)

// NewRabbitScoreQueue подключается к брокеру и объявляет очередь.
func NewRabbitScoreQueue(amqpURL, queue string) (*RabbitScoreQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}

	start := time.Now()
	conn, err := amqp.Dial(amqpURL)
	metrics.ObserveNetworkRequest("rabbitmq", "dial", queue, start, err)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := channel.Qos(1, 0, false); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &RabbitScoreQueue{conn: conn, channel: channel, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitScoreQueue) Enqueue(ctx context.Context, job domain.ScoreJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	start := time.Now()
	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.RequestedAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди.
func (q *RabbitScoreQueue) Receive(ctx context.Context) (domain.ScoreJob, domain.ScoreAckFunc, error) {
	if q.deliveries == nil {
		deliveries, err := q.channel.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.ScoreJob{}, nil, fmt.Errorf("consume %s: %w", q.queue, err)
		}
		q.deliveries = deliveries
	}

	select {
	case <-ctx.Done():
		return domain.ScoreJob{}, nil, ctx.Err()
	case delivery, ok := <-q.deliveries:
		if !ok {
			return domain.ScoreJob{}, nil, errors.New("amqp: канал доставки закрыт")
		}
		var job domain.ScoreJob
		if err := json.Unmarshal(delivery.Body, &job); err != nil {
			// Нечитаемая задача не вернётся в очередь.
			_ = delivery.Nack(false, false)
			return domain.ScoreJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return delivery.Ack(false)
			}
			return delivery.Nack(false, true)
		}
		return job, ack, nil
	}
}

// Close закрывает канал и подключение к брокеру.
func (q *RabbitScoreQueue) Close() error {
	if err := q.channel.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
