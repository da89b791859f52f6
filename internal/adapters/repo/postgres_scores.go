package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"brand-radar/internal/domain"
	"brand-radar/internal/infra/metrics"
)

// UpsertScore реализует domain.ScoreRepo. Повторный расчёт за тот же день
// перезаписывает строку по ключу (бренд, дата, площадка).
func (p *Postgres) UpsertScore(ctx context.Context, score domain.VisibilityScore) (domain.VisibilityScore, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO visibility_scores (brand_name, brand_normalized, date, platform, score, mention_count, avg_position, avg_sentiment, frequency_score, position_score, sentiment_score, type_score, conversation_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
ON CONFLICT (brand_normalized, date, platform) DO UPDATE SET
    brand_name = EXCLUDED.brand_name,
    score = EXCLUDED.score,
    mention_count = EXCLUDED.mention_count,
    avg_position = EXCLUDED.avg_position,
    avg_sentiment = EXCLUDED.avg_sentiment,
    frequency_score = EXCLUDED.frequency_score,
    position_score = EXCLUDED.position_score,
    sentiment_score = EXCLUDED.sentiment_score,
    type_score = EXCLUDED.type_score,
    conversation_count = EXCLUDED.conversation_count,
    created_at = now()
RETURNING id, created_at
`, score.BrandName, score.BrandNormalized, score.Date, string(score.Platform), score.Score, score.MentionCount, score.AvgPosition, score.AvgSentiment, score.FrequencyScore, score.PositionScore, score.SentimentScore, score.TypeScore, score.ConversationCount)
	err := row.Scan(&score.ID, &score.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "scores_upsert", "visibility_scores", began, err)
	if err != nil {
		return domain.VisibilityScore{}, err
	}
	return score, nil
}

// ListScores реализует domain.ScoreRepo. Строки отсортированы по дате.
func (p *Postgres) ListScores(ctx context.Context, brandNormalized string, start, end time.Time, platform domain.Platform) ([]domain.VisibilityScore, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, brand_name, brand_normalized, date, platform, score, mention_count, avg_position, avg_sentiment, frequency_score, position_score, sentiment_score, type_score, conversation_count, created_at
FROM visibility_scores
WHERE brand_normalized = $1
  AND date >= $2 AND date < $3
  AND ($4 = '' OR platform = $4)
ORDER BY date
`, brandNormalized, start, end, string(platform))
	metrics.ObserveNetworkRequest("postgres", "scores_list", "visibility_scores", began, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScores(rows)
}

// LatestScore реализует domain.ScoreRepo. Отсутствие балла не считается ошибкой.
func (p *Postgres) LatestScore(ctx context.Context, brandNormalized string, start, end time.Time) (*domain.VisibilityScore, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, brand_name, brand_normalized, date, platform, score, mention_count, avg_position, avg_sentiment, frequency_score, position_score, sentiment_score, type_score, conversation_count, created_at
FROM visibility_scores
WHERE brand_normalized = $1
  AND date >= $2 AND date < $3
ORDER BY date DESC
LIMIT 1
`, brandNormalized, start, end)
	score, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "scores_latest", "visibility_scores", began, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("postgres", "scores_latest", "visibility_scores", began, err)
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// LatestScoresPerBrand реализует domain.ScoreRepo. Для каждого бренда
// берётся последний балл окна.
func (p *Postgres) LatestScoresPerBrand(ctx context.Context, start, end time.Time, limit int) ([]domain.VisibilityScore, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT DISTINCT ON (brand_normalized)
    id, brand_name, brand_normalized, date, platform, score, mention_count, avg_position, avg_sentiment, frequency_score, position_score, sentiment_score, type_score, conversation_count, created_at
FROM visibility_scores
WHERE date >= $1 AND date < $2
ORDER BY brand_normalized, date DESC
LIMIT $3
`, start, end, limit)
	metrics.ObserveNetworkRequest("postgres", "scores_latest_per_brand", "visibility_scores", began, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScores(rows)
}

// AvgScore реализует domain.ScoreRepo. Окно без баллов даёт ноль.
func (p *Postgres) AvgScore(ctx context.Context, brandNormalized string, start, end time.Time) (float64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	var avg float64
	err := p.pool.QueryRow(ctx, `
SELECT coalesce(avg(score), 0)
FROM visibility_scores
WHERE brand_normalized = $1
  AND date >= $2 AND date < $3
`, brandNormalized, start, end).Scan(&avg)
	metrics.ObserveNetworkRequest("postgres", "scores_avg", "visibility_scores", began, err)
	return avg, err
}

func scanScore(row pgx.Row) (domain.VisibilityScore, error) {
	var s domain.VisibilityScore
	var platform string
	err := row.Scan(&s.ID, &s.BrandName, &s.BrandNormalized, &s.Date, &platform, &s.Score, &s.MentionCount, &s.AvgPosition, &s.AvgSentiment, &s.FrequencyScore, &s.PositionScore, &s.SentimentScore, &s.TypeScore, &s.ConversationCount, &s.CreatedAt)
	s.Platform = domain.Platform(platform)
	return s, err
}

func scanScores(rows pgx.Rows) ([]domain.VisibilityScore, error) {
	var scores []domain.VisibilityScore
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}
