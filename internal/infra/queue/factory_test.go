package queue

import "testing"

func TestNewScoreQueueAutoSelectsRedis(t *testing.T) {
	q, err := NewScoreQueue("", "", "localhost:6379", "score_jobs")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	defer q.Close()
	if _, ok := q.(*RedisScoreQueue); !ok {
		t.Fatalf("без RABBITMQ_URL должна выбираться очередь Redis, получили %T", q)
	}
}

func TestNewScoreQueueExplicitRedisDriver(t *testing.T) {
	q, err := NewScoreQueue(DriverRedis, "amqp://ignored", "localhost:6379", "score_jobs")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	defer q.Close()
	if _, ok := q.(*RedisScoreQueue); !ok {
		t.Fatalf("явный драйвер redis должен игнорировать адрес RabbitMQ, получили %T", q)
	}
}

func TestNewScoreQueueRejectsBadConfig(t *testing.T) {
	if _, err := NewScoreQueue(DriverRabbit, "", "localhost:6379", "score_jobs"); err == nil {
		t.Fatal("драйвер rabbitmq без адреса должен давать ошибку")
	}
	if _, err := NewScoreQueue(DriverRedis, "", "", "score_jobs"); err == nil {
		t.Fatal("драйвер redis без адреса должен давать ошибку")
	}
	if _, err := NewScoreQueue("kafka", "amqp://x", "localhost:6379", "score_jobs"); err == nil {
		t.Fatal("неизвестный драйвер должен давать ошибку")
	}
}
