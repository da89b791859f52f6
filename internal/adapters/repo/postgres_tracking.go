package repo

import (
	"context"
	"fmt"
	"time"

	"brand-radar/internal/domain"
	"brand-radar/internal/infra/metrics"
)

// StoreConversation реализует domain.ConversationRepo. Диалог, сообщения,
// упоминания и цитирования записываются одной транзакцией.
func (p *Postgres) StoreConversation(ctx context.Context, conv domain.Conversation, mentions []domain.BrandMention, citations []domain.Citation) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.storeConversationTx(ctx, conv, mentions, citations)
	metrics.ObserveNetworkRequest("postgres", "conversation_store", "conversations", start, err)
	return err
}

func (p *Postgres) storeConversationTx(ctx context.Context, conv domain.Conversation, mentions []domain.BrandMention, citations []domain.Citation) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO conversations (id, session_id, platform, initial_query, language, region, user_agent, captured_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
`, conv.ID, conv.SessionID, string(conv.Platform), conv.InitialQuery, conv.Language, conv.Region, conv.UserAgent, conv.CapturedAt)
	if err != nil {
		return fmt.Errorf("запись диалога: %w", err)
	}

	// Порядковый номер сообщения заменяется на ключ БД для связанных записей.
	messageIDs := make(map[int64]int64, len(conv.Messages))
	for _, msg := range conv.Messages {
		var id int64
		err := tx.QueryRow(ctx, `
INSERT INTO messages (conversation_id, role, content, sequence, sent_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`, conv.ID, string(msg.Role), msg.Content, msg.Sequence, msg.Timestamp).Scan(&id)
		if err != nil {
			return fmt.Errorf("запись сообщения %d: %w", msg.Sequence, err)
		}
		messageIDs[int64(msg.Sequence)] = id
	}

	for _, mention := range mentions {
		_, err := tx.Exec(ctx, `
INSERT INTO brand_mentions (conversation_id, message_id, brand_name, brand_normalized, mention_type, position, sentiment, confidence, context, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
`, conv.ID, messageIDs[mention.MessageID], mention.BrandName, mention.BrandNormalized, string(mention.Type), mention.Position, mention.Sentiment, mention.Confidence, mention.Context)
		if err != nil {
			return fmt.Errorf("запись упоминания %s: %w", mention.BrandNormalized, err)
		}
	}

	for _, citation := range citations {
		_, err := tx.Exec(ctx, `
INSERT INTO citations (conversation_id, message_id, source_url, source_domain, source_name, citation_type, authority_score, confidence, context, position, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
`, conv.ID, messageIDs[citation.MessageID], citation.SourceURL, citation.SourceDomain, citation.SourceName, string(citation.Type), citation.AuthorityScore, citation.Confidence, citation.Context, citation.Position)
		if err != nil {
			return fmt.Errorf("запись цитирования: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// CountConversations реализует domain.ConversationRepo. Пустая площадка
// означает все площадки.
func (p *Postgres) CountConversations(ctx context.Context, start, end time.Time, platform domain.Platform) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	var count int
	err := p.pool.QueryRow(ctx, `
SELECT count(*)
FROM conversations
WHERE captured_at >= $1 AND captured_at < $2
  AND ($3 = '' OR platform = $3)
`, start, end, string(platform)).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "conversations_count", "conversations", began, err)
	return count, err
}

// MentionStatsByBrand реализует domain.MentionRepo. Окно считается по времени
// захвата диалога, а не по времени записи упоминания.
func (p *Postgres) MentionStatsByBrand(ctx context.Context, start, end time.Time, platform domain.Platform) ([]domain.MentionStats, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT m.brand_normalized, count(*), coalesce(avg(m.position), 0), coalesce(avg(m.sentiment), 0)
FROM brand_mentions m
JOIN conversations c ON c.id = m.conversation_id
WHERE c.captured_at >= $1 AND c.captured_at < $2
  AND ($3 = '' OR c.platform = $3)
GROUP BY m.brand_normalized
`, start, end, string(platform))
	metrics.ObserveNetworkRequest("postgres", "mention_stats", "brand_mentions", began, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.MentionStats
	for rows.Next() {
		var s domain.MentionStats
		if err := rows.Scan(&s.BrandNormalized, &s.MentionCount, &s.AvgPosition, &s.AvgSentiment); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// MentionTypeCounts реализует domain.MentionRepo.
func (p *Postgres) MentionTypeCounts(ctx context.Context, brandNormalized string, start, end time.Time, platform domain.Platform) (map[domain.MentionType]int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT m.mention_type, count(*)
FROM brand_mentions m
JOIN conversations c ON c.id = m.conversation_id
WHERE m.brand_normalized = $1
  AND c.captured_at >= $2 AND c.captured_at < $3
  AND ($4 = '' OR c.platform = $4)
GROUP BY m.mention_type
`, brandNormalized, start, end, string(platform))
	metrics.ObserveNetworkRequest("postgres", "mention_type_counts", "brand_mentions", began, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.MentionType]int)
	for rows.Next() {
		var mentionType string
		var count int
		if err := rows.Scan(&mentionType, &count); err != nil {
			return nil, err
		}
		counts[domain.MentionType(mentionType)] = count
	}
	return counts, rows.Err()
}

// CountMentions реализует domain.MentionRepo. Возвращает число упоминаний
// бренда за окно и их среднюю тональность.
func (p *Postgres) CountMentions(ctx context.Context, brandNormalized string, start, end time.Time) (int, float64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	var count int
	var avgSentiment float64
	err := p.pool.QueryRow(ctx, `
SELECT count(*), coalesce(avg(m.sentiment), 0)
FROM brand_mentions m
JOIN conversations c ON c.id = m.conversation_id
WHERE m.brand_normalized = $1
  AND c.captured_at >= $2 AND c.captured_at < $3
`, brandNormalized, start, end).Scan(&count, &avgSentiment)
	metrics.ObserveNetworkRequest("postgres", "mentions_count", "brand_mentions", began, err)
	return count, avgSentiment, err
}

// TopBrandsByMentions реализует domain.MentionRepo.
func (p *Postgres) TopBrandsByMentions(ctx context.Context, start, end time.Time, limit int) ([]string, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	began := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT m.brand_normalized
FROM brand_mentions m
JOIN conversations c ON c.id = m.conversation_id
WHERE c.captured_at >= $1 AND c.captured_at < $2
GROUP BY m.brand_normalized
ORDER BY count(*) DESC
LIMIT $3
`, start, end, limit)
	metrics.ObserveNetworkRequest("postgres", "top_brands", "brand_mentions", began, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brands []string
	for rows.Next() {
		var normalized string
		if err := rows.Scan(&normalized); err != nil {
			return nil, err
		}
		brands = append(brands, normalized)
	}
	return brands, rows.Err()
}
