package domain

import (
	"context"
	"time"
)

// ScoreJobCause описывает источник запроса на расчёт баллов.
type ScoreJobCause string

const (
	// ScoreCauseManual — расчёт запрошен вручную через API.
	ScoreCauseManual ScoreJobCause = "manual"
	// ScoreCauseScheduled — расчёт запланирован по расписанию.
	ScoreCauseScheduled ScoreJobCause = "scheduled"
)

// ScoreJob содержит информацию о задаче расчёта баллов видимости за день.
type ScoreJob struct {
	ID          string        `json:"job_id,omitempty"`
	Date        time.Time     `json:"date"`
	Platform    Platform      `json:"platform,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
	Cause       ScoreJobCause `json:"cause"`
}

// ScoreAckFunc подтверждает успешную обработку или запрашивает повтор доставки задачи.
type ScoreAckFunc func(success bool) error

// ScoreQueue описывает очередь задач на расчёт баллов видимости.
type ScoreQueue interface {
	Enqueue(ctx context.Context, job ScoreJob) error
	Receive(ctx context.Context) (ScoreJob, ScoreAckFunc, error)
}
