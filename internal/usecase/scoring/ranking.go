package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"brand-radar/internal/domain"
)

// Балл за одно упоминание для брендов без рассчитанного балла видимости.
const fallbackPerMention = 5.0

// Ranking строит рейтинг бренда среди конкурентов по баллам видимости.
type Ranking struct {
	scores   domain.ScoreRepo
	mentions domain.MentionRepo
	brands   domain.BrandRepo
	trend    *Trend
}

// NewRanking создаёт движок рейтингов.
func NewRanking(scores domain.ScoreRepo, mentions domain.MentionRepo, brands domain.BrandRepo, trend *Trend) *Ranking {
	return &Ranking{scores: scores, mentions: mentions, brands: brands, trend: trend}
}

type rankedBrand struct {
	normalized   string
	displayName  string
	score        float64
	mentionCount int
	rank         int
	trend        domain.TrendInfo
}

// Build возвращает позицию бренда и список конкурентов за окно [Start, End).
// Без явного списка конкурентов берутся самые упоминаемые бренды периода.
func (r *Ranking) Build(ctx context.Context, q domain.RankingQuery) (domain.RankingResult, error) {
	target := domain.NormalizeBrandName(q.Brand)

	candidates, err := r.candidates(ctx, q, target)
	if err != nil {
		return domain.RankingResult{}, err
	}

	ranked := make([]rankedBrand, 0, len(candidates))
	for _, normalized := range candidates {
		item, err := r.rankBrand(ctx, normalized, q.Start, q.End)
		if err != nil {
			return domain.RankingResult{}, err
		}
		ranked = append(ranked, item)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	assignRanks(ranked)

	result := domain.RankingResult{
		Brand:       q.Brand,
		TotalBrands: len(ranked),
		Period:      fmt.Sprintf("%s / %s", q.Start.Format("2006-01-02"), q.End.Format("2006-01-02")),
	}
	for _, item := range ranked {
		if item.normalized == target {
			result.BrandRank = item.rank
			result.BrandScore = item.score
			continue
		}
		change := item.trend.Change
		result.Rankings = append(result.Rankings, domain.RankingItem{
			BrandName:    item.displayName,
			Score:        item.score,
			Rank:         item.rank,
			MentionCount: item.mentionCount,
			Trend:        item.trend.Direction,
			Change:       &change,
		})
	}
	return result, nil
}

// Leaderboard возвращает последние баллы брендов за окно, уже ранжированные.
func (r *Ranking) Leaderboard(ctx context.Context, start, end time.Time, limit int) ([]domain.RankingItem, error) {
	scores, err := r.scores.LatestScoresPerBrand(ctx, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("баллы брендов: %w", err)
	}

	ranked := make([]rankedBrand, 0, len(scores))
	for _, score := range scores {
		info, err := r.trend.Compute(ctx, score.BrandNormalized, start, end)
		if err != nil {
			return nil, fmt.Errorf("тренд %s: %w", score.BrandNormalized, err)
		}
		ranked = append(ranked, rankedBrand{
			normalized:   score.BrandNormalized,
			displayName:  score.BrandName,
			score:        score.Score,
			mentionCount: score.MentionCount,
			trend:        info,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	assignRanks(ranked)

	items := make([]domain.RankingItem, 0, len(ranked))
	for _, item := range ranked {
		change := item.trend.Change
		items = append(items, domain.RankingItem{
			BrandName:    item.displayName,
			Score:        item.score,
			Rank:         item.rank,
			MentionCount: item.mentionCount,
			Trend:        item.trend.Direction,
			Change:       &change,
		})
	}
	return items, nil
}

func (r *Ranking) candidates(ctx context.Context, q domain.RankingQuery, target string) ([]string, error) {
	seen := map[string]bool{target: true}
	candidates := []string{target}

	if len(q.Competitors) > 0 {
		for _, name := range q.Competitors {
			normalized := domain.NormalizeBrandName(name)
			if normalized == "" || seen[normalized] {
				continue
			}
			seen[normalized] = true
			candidates = append(candidates, normalized)
		}
		return candidates, nil
	}

	top, err := r.mentions.TopBrandsByMentions(ctx, q.Start, q.End, q.Limit+1)
	if err != nil {
		return nil, fmt.Errorf("самые упоминаемые бренды: %w", err)
	}
	for _, normalized := range top {
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		candidates = append(candidates, normalized)
		if len(candidates) > q.Limit {
			break
		}
	}
	return candidates, nil
}

func (r *Ranking) rankBrand(ctx context.Context, normalized string, start, end time.Time) (rankedBrand, error) {
	item := rankedBrand{normalized: normalized, displayName: normalized}

	if name, err := r.brands.BrandDisplayName(ctx, normalized); err == nil && name != "" {
		item.displayName = name
	}

	latest, err := r.scores.LatestScore(ctx, normalized, start, end)
	if err != nil {
		return rankedBrand{}, fmt.Errorf("последний балл %s: %w", normalized, err)
	}
	if latest != nil {
		item.score = latest.Score
		item.mentionCount = latest.MentionCount
		if latest.BrandName != "" {
			item.displayName = latest.BrandName
		}
	} else {
		// Балла ещё нет: грубая оценка по числу упоминаний.
		count, _, err := r.mentions.CountMentions(ctx, normalized, start, end)
		if err != nil {
			return rankedBrand{}, fmt.Errorf("упоминания %s: %w", normalized, err)
		}
		item.mentionCount = count
		item.score = fallbackPerMention * float64(count)
		if item.score > 100 {
			item.score = 100
		}
	}

	info, err := r.trend.Compute(ctx, normalized, start, end)
	if err != nil {
		return rankedBrand{}, fmt.Errorf("тренд %s: %w", normalized, err)
	}
	item.trend = info
	return item, nil
}

// assignRanks раздаёт места по позиции после сортировки. Равные баллы получают
// соседние места: порядок среди них определяет стабильная сортировка.
func assignRanks(ranked []rankedBrand) {
	for i := range ranked {
		ranked[i].rank = i + 1
	}
}
