package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"brand-radar/internal/domain"
	"brand-radar/internal/infra/metrics"
)

// StoreCitations реализует domain.CitationRepo. Цитирования без диалога
// записываются с пустой ссылкой на него.
func (p *Postgres) StoreCitations(ctx context.Context, citations []domain.Citation) ([]domain.Citation, error) {
	if len(citations) == 0 {
		return nil, nil
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	stored, err := p.storeCitationsTx(ctx, citations)
	metrics.ObserveNetworkRequest("postgres", "citations_store", "citations", began, err)
	return stored, err
}

func (p *Postgres) storeCitationsTx(ctx context.Context, citations []domain.Citation) ([]domain.Citation, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	stored := make([]domain.Citation, 0, len(citations))
	for _, citation := range citations {
		row := tx.QueryRow(ctx, `
INSERT INTO citations (conversation_id, message_id, source_url, source_domain, source_name, citation_type, authority_score, confidence, context, position, created_at)
VALUES (nullif($1, ''), nullif($2, 0), $3, $4, $5, $6, $7, $8, $9, $10, now())
RETURNING id, created_at
`, citation.ConversationID, citation.MessageID, citation.SourceURL, citation.SourceDomain, citation.SourceName, string(citation.Type), citation.AuthorityScore, citation.Confidence, citation.Context, citation.Position)
		if err := row.Scan(&citation.ID, &citation.CreatedAt); err != nil {
			return nil, fmt.Errorf("запись цитирования: %w", err)
		}
		stored = append(stored, citation)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

// CountCitations реализует domain.CitationRepo. Нулевое время означает
// подсчёт за всю историю.
func (p *Postgres) CountCitations(ctx context.Context, since time.Time) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	var count int
	err := p.pool.QueryRow(ctx, `
SELECT count(*)
FROM citations
WHERE $1::timestamptz IS NULL OR created_at >= $1
`, nullableTime(since)).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "citations_count", "citations", began, err)
	return count, err
}

// CitationTypeCounts реализует domain.CitationRepo.
func (p *Postgres) CitationTypeCounts(ctx context.Context, since time.Time) (map[domain.CitationType]int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT citation_type, count(*)
FROM citations
WHERE $1::timestamptz IS NULL OR created_at >= $1
GROUP BY citation_type
`, nullableTime(since))
	metrics.ObserveNetworkRequest("postgres", "citation_type_counts", "citations", began, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.CitationType]int)
	for rows.Next() {
		var citationType string
		var count int
		if err := rows.Scan(&citationType, &count); err != nil {
			return nil, err
		}
		counts[domain.CitationType(citationType)] = count
	}
	return counts, rows.Err()
}

// ListCitationsByDomain реализует domain.CitationRepo. Свежие цитирования идут первыми.
func (p *Postgres) ListCitationsByDomain(ctx context.Context, sourceDomain string, limit int) ([]domain.Citation, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, coalesce(conversation_id, ''), coalesce(message_id, 0), source_url, source_domain, source_name, citation_type, authority_score, confidence, context, position, created_at
FROM citations
WHERE source_domain = $1
ORDER BY created_at DESC
LIMIT $2
`, sourceDomain, limit)
	metrics.ObserveNetworkRequest("postgres", "citations_by_domain", "citations", began, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var citations []domain.Citation
	for rows.Next() {
		var c domain.Citation
		var citationType string
		if err := rows.Scan(&c.ID, &c.ConversationID, &c.MessageID, &c.SourceURL, &c.SourceDomain, &c.SourceName, &citationType, &c.AuthorityScore, &c.Confidence, &c.Context, &c.Position, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Type = domain.CitationType(citationType)
		citations = append(citations, c)
	}
	return citations, rows.Err()
}

// RecordCitation реализует domain.SourceRepo. Первая встреча домена создаёт
// агрегат с категорией и авторитетностью из src, повторные только наращивают счётчик.
func (p *Postgres) RecordCitation(ctx context.Context, src domain.CitationSource, at time.Time) (domain.CitationSource, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO citation_sources (domain, normalized_domain, display_name, source_type, authority_score, citation_count, avg_sentiment, is_active, is_verified, first_cited_at, last_cited_at)
VALUES ($1, $2, $3, $4, $5, 1, $6, $7, false, $8, $8)
ON CONFLICT (normalized_domain) DO UPDATE SET
    citation_count = citation_sources.citation_count + 1,
    last_cited_at = EXCLUDED.last_cited_at
RETURNING id, domain, normalized_domain, display_name, source_type, authority_score, citation_count, avg_sentiment, is_active, is_verified, first_cited_at, last_cited_at
`, src.Domain, src.NormalizedDomain, src.DisplayName, string(src.SourceType), src.AuthorityScore, src.AvgSentiment, src.IsActive, at)
	stored, err := scanSource(row)
	metrics.ObserveNetworkRequest("postgres", "sources_record", "citation_sources", began, err)
	if err != nil {
		return domain.CitationSource{}, err
	}
	return stored, nil
}

// SourceByDomain реализует domain.SourceRepo. Неизвестный домен даёт nil без ошибки.
func (p *Postgres) SourceByDomain(ctx context.Context, normalizedDomain string) (*domain.CitationSource, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, domain, normalized_domain, display_name, source_type, authority_score, citation_count, avg_sentiment, is_active, is_verified, first_cited_at, last_cited_at
FROM citation_sources
WHERE normalized_domain = $1
`, normalizedDomain)
	src, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "sources_by_domain", "citation_sources", began, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("postgres", "sources_by_domain", "citation_sources", began, err)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// ListSources реализует domain.SourceRepo. Пустая категория означает все категории.
func (p *Postgres) ListSources(ctx context.Context, sourceType domain.SourceType, limit int) ([]domain.CitationSource, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, domain, normalized_domain, display_name, source_type, authority_score, citation_count, avg_sentiment, is_active, is_verified, first_cited_at, last_cited_at
FROM citation_sources
WHERE is_active AND ($1 = '' OR source_type = $1)
ORDER BY citation_count DESC
LIMIT $2
`, string(sourceType), limit)
	metrics.ObserveNetworkRequest("postgres", "sources_list", "citation_sources", began, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []domain.CitationSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// SourceTypeCitationCounts реализует domain.SourceRepo: цитирования по категориям.
func (p *Postgres) SourceTypeCitationCounts(ctx context.Context) (map[domain.SourceType]int, error) {
	return p.sourceTypeCounts(ctx, `
SELECT source_type, coalesce(sum(citation_count), 0)
FROM citation_sources
GROUP BY source_type
`, "source_type_citation_counts")
}

// SourceTypeCounts реализует domain.SourceRepo: домены по категориям.
func (p *Postgres) SourceTypeCounts(ctx context.Context) (map[domain.SourceType]int, error) {
	return p.sourceTypeCounts(ctx, `
SELECT source_type, count(*)
FROM citation_sources
GROUP BY source_type
`, "source_type_counts")
}

func (p *Postgres) sourceTypeCounts(ctx context.Context, query, operation string) (map[domain.SourceType]int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	rows, err := p.pool.Query(ctx, query)
	metrics.ObserveNetworkRequest("postgres", operation, "citation_sources", began, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.SourceType]int)
	for rows.Next() {
		var sourceType string
		var count int
		if err := rows.Scan(&sourceType, &count); err != nil {
			return nil, err
		}
		counts[domain.SourceType(sourceType)] = count
	}
	return counts, rows.Err()
}

// CountSources реализует domain.SourceRepo.
func (p *Postgres) CountSources(ctx context.Context) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	var count int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM citation_sources WHERE is_active`).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "sources_count", "citation_sources", began, err)
	return count, err
}

// AvgAuthorityScore реализует domain.SourceRepo.
func (p *Postgres) AvgAuthorityScore(ctx context.Context) (float64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	var avg float64
	err := p.pool.QueryRow(ctx, `SELECT coalesce(avg(authority_score), 0) FROM citation_sources WHERE is_active`).Scan(&avg)
	metrics.ObserveNetworkRequest("postgres", "sources_avg_authority", "citation_sources", began, err)
	return avg, err
}

// CreateAnalysis реализует domain.AnalysisRepo.
func (p *Postgres) CreateAnalysis(ctx context.Context, analysis domain.WebsiteAnalysis) (domain.WebsiteAnalysis, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO website_analyses (url, domain, depth, status, progress, started_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, analysis.URL, analysis.Domain, analysis.Depth, string(analysis.Status), analysis.Progress, analysis.StartedAt)
	err := row.Scan(&analysis.ID)
	metrics.ObserveNetworkRequest("postgres", "analyses_create", "website_analyses", began, err)
	if err != nil {
		return domain.WebsiteAnalysis{}, err
	}
	return analysis, nil
}

// FinishAnalysis реализует domain.AnalysisRepo. Контексты и рекомендации
// хранятся в jsonb-колонках.
func (p *Postgres) FinishAnalysis(ctx context.Context, analysis domain.WebsiteAnalysis) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	contexts, err := json.Marshal(analysis.Contexts)
	if err != nil {
		return fmt.Errorf("сериализация контекстов: %w", err)
	}
	recommendations, err := json.Marshal(analysis.Recommendations)
	if err != nil {
		return fmt.Errorf("сериализация рекомендаций: %w", err)
	}

	began := time.Now()
	_, err = p.pool.Exec(ctx, `
UPDATE website_analyses SET
    status = $2,
    progress = $3,
    citation_count = $4,
    avg_sentiment = $5,
    contexts = $6,
    recommendations = $7,
    pages_analyzed = $8,
    error_message = $9,
    completed_at = $10
WHERE id = $1
`, analysis.ID, string(analysis.Status), analysis.Progress, analysis.CitationCount, analysis.AvgSentiment, contexts, recommendations, analysis.PagesAnalyzed, analysis.ErrorMessage, analysis.CompletedAt)
	metrics.ObserveNetworkRequest("postgres", "analyses_finish", "website_analyses", began, err)
	return err
}

// LatestCompletedAnalysis реализует domain.AnalysisRepo.
func (p *Postgres) LatestCompletedAnalysis(ctx context.Context, analysisDomain string, since time.Time) (*domain.WebsiteAnalysis, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, url, domain, depth, status, progress, citation_count, avg_sentiment, coalesce(contexts, '[]'), coalesce(recommendations, '[]'), pages_analyzed, coalesce(error_message, ''), started_at, completed_at
FROM website_analyses
WHERE domain = $1 AND status = 'completed' AND completed_at >= $2
ORDER BY completed_at DESC
LIMIT 1
`, analysisDomain, since)
	analysis, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "analyses_latest", "website_analyses", began, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("postgres", "analyses_latest", "website_analyses", began, err)
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// AnalysisByID реализует domain.AnalysisRepo. Неизвестный идентификатор даёт nil.
func (p *Postgres) AnalysisByID(ctx context.Context, id int64) (*domain.WebsiteAnalysis, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, url, domain, depth, status, progress, citation_count, avg_sentiment, coalesce(contexts, '[]'), coalesce(recommendations, '[]'), pages_analyzed, coalesce(error_message, ''), started_at, completed_at
FROM website_analyses
WHERE id = $1
`, id)
	analysis, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "analyses_by_id", "website_analyses", began, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("postgres", "analyses_by_id", "website_analyses", began, err)
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// CountAnalyses реализует domain.AnalysisRepo.
func (p *Postgres) CountAnalyses(ctx context.Context) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	var count int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM website_analyses`).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "analyses_count", "website_analyses", began, err)
	return count, err
}

func scanSource(row pgx.Row) (domain.CitationSource, error) {
	var src domain.CitationSource
	var sourceType string
	err := row.Scan(&src.ID, &src.Domain, &src.NormalizedDomain, &src.DisplayName, &sourceType, &src.AuthorityScore, &src.CitationCount, &src.AvgSentiment, &src.IsActive, &src.IsVerified, &src.FirstCitedAt, &src.LastCitedAt)
	src.SourceType = domain.SourceType(sourceType)
	return src, err
}

func scanAnalysis(row pgx.Row) (domain.WebsiteAnalysis, error) {
	var analysis domain.WebsiteAnalysis
	var status string
	var contexts, recommendations []byte
	err := row.Scan(&analysis.ID, &analysis.URL, &analysis.Domain, &analysis.Depth, &status, &analysis.Progress, &analysis.CitationCount, &analysis.AvgSentiment, &contexts, &recommendations, &analysis.PagesAnalyzed, &analysis.ErrorMessage, &analysis.StartedAt, &analysis.CompletedAt)
	if err != nil {
		return domain.WebsiteAnalysis{}, err
	}
	analysis.Status = domain.AnalysisStatus(status)
	if err := json.Unmarshal(contexts, &analysis.Contexts); err != nil {
		return domain.WebsiteAnalysis{}, fmt.Errorf("разбор контекстов: %w", err)
	}
	if err := json.Unmarshal(recommendations, &analysis.Recommendations); err != nil {
		return domain.WebsiteAnalysis{}, fmt.Errorf("разбор рекомендаций: %w", err)
	}
	return analysis, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
