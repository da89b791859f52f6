package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"brand-radar/internal/domain"
	"brand-radar/internal/infra/metrics"
)

// freeCache имитирует свободный ключ: функция выполняется.
type freeCache struct{}

func (freeCache) Once(_ string, _ time.Duration, fn func() error) error { return fn() }

// claimedCache имитирует занятый ключ: функция не выполняется.
type claimedCache struct{}

func (claimedCache) Once(string, time.Duration, func() error) error { return nil }

type captureQueue struct {
	jobs []domain.ScoreJob
}

func (q *captureQueue) Enqueue(_ context.Context, job domain.ScoreJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *captureQueue) Receive(context.Context) (domain.ScoreJob, domain.ScoreAckFunc, error) {
	return domain.ScoreJob{}, nil, errors.New("очередь пуста")
}

func scheduledJobsCount(t *testing.T) float64 {
	t.Helper()
	return testutil.ToFloat64(metrics.ScoreJobsTotal.WithLabelValues(string(domain.ScoreCauseScheduled)))
}

func TestEnqueueDailyJobEnqueuesWhenKeyIsFree(t *testing.T) {
	queue := &captureQueue{}
	date := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	before := scheduledJobsCount(t)
	if err := enqueueDailyJob(context.Background(), freeCache{}, queue, date); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("ожидали одну задачу в очереди, получили %d", len(queue.jobs))
	}
	if !queue.jobs[0].Date.Equal(date) || queue.jobs[0].Cause != domain.ScoreCauseScheduled {
		t.Fatalf("задача должна нести дату и причину scheduled, получили %+v", queue.jobs[0])
	}
	if got := scheduledJobsCount(t) - before; got != 1 {
		t.Fatalf("счётчик должен вырасти на 1, получили %v", got)
	}
}

func TestEnqueueDailyJobSkipsWhenKeyIsClaimed(t *testing.T) {
	queue := &captureQueue{}
	date := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	before := scheduledJobsCount(t)
	if err := enqueueDailyJob(context.Background(), claimedCache{}, queue, date); err != nil {
		t.Fatalf("занятый ключ не ошибка: %v", err)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("другая реплика уже поставила день, очередь должна остаться пустой, получили %d", len(queue.jobs))
	}
	if got := scheduledJobsCount(t) - before; got != 0 {
		t.Fatalf("счётчик не должен расти без постановки, получили прирост %v", got)
	}
}
