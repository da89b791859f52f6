package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"brand-radar/internal/domain"
)

// RedisScoreQueue реализует очередь расчётов баллов на базе Redis lists.
// Доставка at-most-once: подтверждение с ошибкой возвращает задачу в очередь.
type RedisScoreQueue struct {
	client     *redis.Client
	key        string
	ownsClient bool
}

var _ domain.ScoreQueue = (*RedisScoreQueue)(nil)

// NewRedisScoreQueue создаёт очередь по указанному ключу.
func NewRedisScoreQueue(client *redis.Client, key string) *RedisScoreQueue {
	return &RedisScoreQueue{client: client, key: key}
}

// Close освобождает клиент Redis, если очередь создала его сама.
func (q *RedisScoreQueue) Close() error {
	if q.ownsClient {
		return q.client.Close()
	}
	return nil
}

// Enqueue публикует задачу в очередь.
func (q *RedisScoreQueue) Enqueue(ctx context.Context, job domain.ScoreJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди.
func (q *RedisScoreQueue) Receive(ctx context.Context) (domain.ScoreJob, domain.ScoreAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ScoreJob{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ScoreJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ScoreJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.ScoreJob{}, nil, errors.New("redis queue: unexpected response")
		}
		var job domain.ScoreJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.ScoreJob{}, nil, fmt.Errorf("decode job: %w", err)
		}

		payload := res[1]
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.client.LPush(context.Background(), q.key, payload).Err()
		}
		return job, ack, nil
	}
}
