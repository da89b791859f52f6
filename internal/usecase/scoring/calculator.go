package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"brand-radar/internal/domain"
	"brand-radar/internal/infra/metrics"
)

// Веса компонентов итогового балла.
const (
	weightFrequency = 0.4
	weightPosition  = 0.3
	weightSentiment = 0.2
	weightType      = 0.1
)

// Множители типов упоминаний для type_score.
var typeMultipliers = map[domain.MentionType]float64{
	domain.MentionRecommendation: 1.5,
	domain.MentionDirect:         1.0,
	domain.MentionComparison:     0.8,
	domain.MentionIndirect:       0.6,
	domain.MentionNegative:       0.3,
}

const (
	typeMultiplierMin = 0.3
	typeMultiplierMax = 1.5
)

// Calculator считает баллы видимости брендов за день.
//
// Формула: score = 100 * (0.4*frequency + 0.3*position + 0.2*sentiment + 0.1*type),
// каждый компонент лежит в [0, 1], итог ограничен [0, 100].
type Calculator struct {
	mentions      domain.MentionRepo
	conversations domain.ConversationRepo
	brands        domain.BrandRepo
	scores        domain.ScoreRepo
}

// NewCalculator создаёт калькулятор видимости.
func NewCalculator(mentions domain.MentionRepo, conversations domain.ConversationRepo, brands domain.BrandRepo, scores domain.ScoreRepo) *Calculator {
	return &Calculator{mentions: mentions, conversations: conversations, brands: brands, scores: scores}
}

// CalculateDailyScores считает и сохраняет баллы всех брендов с упоминаниями
// за указанный день. Повторный запуск за тот же день перезаписывает строки.
func (c *Calculator) CalculateDailyScores(ctx context.Context, date time.Time, platform domain.Platform) ([]domain.VisibilityScore, error) {
	began := time.Now()
	defer func() {
		metrics.ScoreBatchSeconds.Observe(time.Since(began).Seconds())
	}()

	day := date.UTC().Truncate(24 * time.Hour)
	start := day
	end := day.Add(24 * time.Hour)

	stats, err := c.mentions.MentionStatsByBrand(ctx, start, end, platform)
	if err != nil {
		return nil, fmt.Errorf("агрегаты упоминаний: %w", err)
	}
	if len(stats) == 0 {
		return nil, nil
	}

	totalConversations, err := c.conversations.CountConversations(ctx, start, end, platform)
	if err != nil {
		return nil, fmt.Errorf("количество диалогов: %w", err)
	}
	if totalConversations < 1 {
		totalConversations = 1
	}

	var saved []domain.VisibilityScore
	for _, stat := range stats {
		displayName, err := c.brands.BrandDisplayName(ctx, stat.BrandNormalized)
		if err != nil || displayName == "" {
			displayName = stat.BrandNormalized
		}

		typeCounts, err := c.mentions.MentionTypeCounts(ctx, stat.BrandNormalized, start, end, platform)
		if err != nil {
			return nil, fmt.Errorf("типы упоминаний %s: %w", stat.BrandNormalized, err)
		}

		frequency := FrequencyScore(stat.MentionCount, totalConversations)
		position := PositionScore(stat.AvgPosition)
		sentiment := SentimentScore(stat.AvgSentiment)
		typeScore := TypeScore(typeCounts)

		final := 100 * (frequency*weightFrequency +
			position*weightPosition +
			sentiment*weightSentiment +
			typeScore*weightType)
		final = clamp(final, 0, 100)

		score := domain.VisibilityScore{
			BrandName:         displayName,
			BrandNormalized:   stat.BrandNormalized,
			Date:              day,
			Platform:          platform,
			Score:             round2(final),
			MentionCount:      stat.MentionCount,
			AvgPosition:       round2(stat.AvgPosition),
			AvgSentiment:      round2(stat.AvgSentiment),
			FrequencyScore:    round2(frequency * 100),
			PositionScore:     round2(position * 100),
			SentimentScore:    round2(sentiment * 100),
			TypeScore:         round2(typeScore * 100),
			ConversationCount: totalConversations,
		}
		stored, err := c.scores.UpsertScore(ctx, score)
		if err != nil {
			return nil, fmt.Errorf("сохранение балла %s: %w", stat.BrandNormalized, err)
		}
		saved = append(saved, stored)
	}
	metrics.ScoreBatchBrands.Observe(float64(len(saved)))
	return saved, nil
}

// FrequencyScore растёт с частотой упоминаний и насыщается к 1.
// При rate=1 (упоминание в каждом диалоге) балл равен 1.
func FrequencyScore(mentionCount, totalConversations int) float64 {
	if totalConversations <= 0 {
		return 0
	}
	rate := float64(mentionCount) / float64(totalConversations)
	score := math.Log1p(rate*10) / math.Log1p(10)
	if score > 1 {
		score = 1
	}
	return score
}

// PositionScore убывает с удалением упоминания от начала ответа.
// Позиция 0 даёт 1.0, 500 — около 0.37, далёкие позиции ограничены снизу 0.1.
func PositionScore(avgPosition float64) float64 {
	score := math.Exp(-avgPosition / 500)
	if score < 0.1 {
		return 0.1
	}
	return score
}

// SentimentScore линейно переводит среднюю тональность из [-1, 1] в [0, 1].
func SentimentScore(avgSentiment float64) float64 {
	return (avgSentiment + 1) / 2
}

// TypeScore нормализует средневзвешенный множитель типов упоминаний в [0, 1].
// Пустое распределение даёт нейтральные 0.5.
func TypeScore(typeCounts map[domain.MentionType]int) float64 {
	total := 0
	weighted := 0.0
	for mentionType, count := range typeCounts {
		multiplier, ok := typeMultipliers[mentionType]
		if !ok {
			multiplier = 1.0
		}
		weighted += multiplier * float64(count)
		total += count
	}
	if total == 0 {
		return 0.5
	}
	avg := weighted / float64(total)
	return clamp((avg-typeMultiplierMin)/(typeMultiplierMax-typeMultiplierMin), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
