package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"brand-radar/internal/domain"
)

// Пороги направления тренда: изменение ровно на ±5% считается стабильным.
const trendThreshold = 5.0

const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// Trend сравнивает средний балл окна с предыдущим окном той же длины.
type Trend struct {
	scores domain.ScoreRepo
}

// NewTrend создаёт движок трендов.
func NewTrend(scores domain.ScoreRepo) *Trend {
	return &Trend{scores: scores}
}

// Compute возвращает направление и процент изменения балла бренда
// для окна [start, end) относительно предыдущего окна [start-len, start).
func (t *Trend) Compute(ctx context.Context, brandNormalized string, start, end time.Time) (domain.TrendInfo, error) {
	length := end.Sub(start)
	prevStart := start.Add(-length)

	currentAvg, err := t.scores.AvgScore(ctx, brandNormalized, start, end)
	if err != nil {
		return domain.TrendInfo{}, fmt.Errorf("средний балл текущего окна: %w", err)
	}
	prevAvg, err := t.scores.AvgScore(ctx, brandNormalized, prevStart, start)
	if err != nil {
		return domain.TrendInfo{}, fmt.Errorf("средний балл предыдущего окна: %w", err)
	}

	change := ChangePercent(currentAvg, prevAvg)
	return domain.TrendInfo{
		Direction: Direction(change),
		Change:    math.Round(change*10) / 10,
	}, nil
}

// ChangePercent считает процент изменения между периодами.
// При нулевом предыдущем значении: 100, если текущее положительно, иначе 0.
func ChangePercent(current, previous float64) float64 {
	if previous > 0 {
		return (current - previous) / previous * 100
	}
	if current > 0 {
		return 100
	}
	return 0
}

// Direction переводит процент изменения в направление тренда.
func Direction(change float64) string {
	switch {
	case change > trendThreshold:
		return TrendUp
	case change < -trendThreshold:
		return TrendDown
	default:
		return TrendStable
	}
}
