package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"brand-radar/internal/domain"
)

// Поддерживаемые драйверы очереди расчётов.
const (
	DriverRabbit = "rabbitmq"
	DriverRedis  = "redis"
)

// ScoreQueue объединяет доменную очередь с освобождением соединений.
type ScoreQueue interface {
	domain.ScoreQueue
	Close() error
}

// NewScoreQueue выбирает реализацию очереди по драйверу. Пустой драйвер
// означает автовыбор: RabbitMQ при заданном адресе, иначе Redis.
func NewScoreQueue(driver, rabbitURL, redisAddr, key string) (ScoreQueue, error) {
	if driver == "" {
		if rabbitURL != "" {
			driver = DriverRabbit
		} else {
			driver = DriverRedis
		}
	}

	switch driver {
	case DriverRabbit:
		if rabbitURL == "" {
			return nil, fmt.Errorf("queue: не указан адрес RabbitMQ (RABBITMQ_URL)")
		}
		return NewRabbitScoreQueue(rabbitURL, key)
	case DriverRedis:
		if redisAddr == "" {
			return nil, fmt.Errorf("queue: не указан адрес Redis (REDIS_ADDR)")
		}
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		q := NewRedisScoreQueue(client, key)
		q.ownsClient = true
		return q, nil
	default:
		return nil, fmt.Errorf("queue: неизвестный драйвер %q", driver)
	}
}
