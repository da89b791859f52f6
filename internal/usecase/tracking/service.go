package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"brand-radar/internal/domain"
	"brand-radar/internal/infra/metrics"
)

// ErrBrandNameRequired возвращается при регистрации бренда без имени.
var ErrBrandNameRequired = errors.New("имя бренда не может быть пустым")

const initialQueryLimit = 500

// MessageUpload описывает одно сообщение загружаемого диалога.
type MessageUpload struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ConversationUpload описывает один диалог в пакете загрузки.
type ConversationUpload struct {
	SessionID  string          `json:"session_id,omitempty"`
	Platform   string          `json:"platform"`
	Language   string          `json:"language,omitempty"`
	Region     string          `json:"region,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	CapturedAt time.Time       `json:"captured_at"`
	Messages   []MessageUpload `json:"messages"`
}

// Service реализует приём диалогов и выдачу аналитики видимости брендов.
type Service struct {
	brands        domain.BrandRepo
	conversations domain.ConversationRepo
	mentions      domain.MentionRepo
	scores        domain.ScoreRepo
	stats         domain.StatsRepo
	sources       domain.SourceRepo
	extractor     domain.MentionExtractor
	citations     domain.CitationExtractor
	classifier    domain.SourceClassifier
	sentiment     domain.SentimentAnalyzer
	queue         domain.ScoreQueue
}

// NewService создаёт сервис отслеживания.
func NewService(brands domain.BrandRepo, conversations domain.ConversationRepo, mentions domain.MentionRepo, scores domain.ScoreRepo, stats domain.StatsRepo, sources domain.SourceRepo, extractor domain.MentionExtractor, citations domain.CitationExtractor, classifier domain.SourceClassifier, sentiment domain.SentimentAnalyzer, queue domain.ScoreQueue) *Service {
	return &Service{
		brands:        brands,
		conversations: conversations,
		mentions:      mentions,
		scores:        scores,
		stats:         stats,
		sources:       sources,
		extractor:     extractor,
		citations:     citations,
		classifier:    classifier,
		sentiment:     sentiment,
		queue:         queue,
	}
}

// UploadConversations обрабатывает пакет диалогов. Ошибка одного диалога
// не прерывает пакет: диалог пропускается, а описание ошибки попадает в итог.
func (s *Service) UploadConversations(ctx context.Context, uploads []ConversationUpload) (domain.UploadResult, error) {
	result := domain.UploadResult{Received: len(uploads), Errors: []string{}}

	brands, err := s.brands.ListBrands(ctx, true)
	if err != nil {
		return result, fmt.Errorf("список брендов: %w", err)
	}

	for i, upload := range uploads {
		conv, mentions, citations := s.prepareConversation(upload, brands)
		if err := s.conversations.StoreConversation(ctx, conv, mentions, citations); err != nil {
			metrics.ConversationErrors.Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("диалог %d: %v", i, err))
			continue
		}
		metrics.ConversationsIngested.WithLabelValues(string(conv.Platform)).Inc()
		for _, mention := range mentions {
			metrics.MentionsExtracted.WithLabelValues(string(mention.Type)).Inc()
		}
		for _, citation := range citations {
			metrics.CitationsExtracted.WithLabelValues(string(citation.Type)).Inc()
		}
		s.recordSources(ctx, citations, conv.CapturedAt)
		result.Processed++
		result.BrandMentionsFound += len(mentions)
	}
	return result, nil
}

// recordSources обновляет агрегаты доменов-источников по цитированиям диалога.
// Ошибка агрегата не отменяет уже записанный диалог и только логируется метрикой.
func (s *Service) recordSources(ctx context.Context, citations []domain.Citation, at time.Time) {
	for _, citation := range citations {
		if citation.SourceDomain == "" {
			continue
		}
		sourceType, authority := s.classifier.Classify(citation.SourceDomain)
		src := domain.CitationSource{
			Domain:           citation.SourceDomain,
			NormalizedDomain: domain.NormalizeDomain(citation.SourceDomain),
			SourceType:       sourceType,
			AuthorityScore:   authority,
		}
		if _, err := s.sources.RecordCitation(ctx, src, at); err != nil {
			metrics.ConversationErrors.Inc()
		}
	}
}

// prepareConversation нормализует загруженный диалог и извлекает из ответов
// ассистента упоминания брендов и цитирования.
func (s *Service) prepareConversation(upload ConversationUpload, brands []domain.Brand) (domain.Conversation, []domain.BrandMention, []domain.Citation) {
	capturedAt := upload.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	conv := domain.Conversation{
		ID:         uuid.NewString(),
		SessionID:  upload.SessionID,
		Platform:   domain.ParsePlatform(upload.Platform),
		Language:   upload.Language,
		Region:     upload.Region,
		UserAgent:  upload.UserAgent,
		CapturedAt: capturedAt,
	}
	if conv.SessionID == "" {
		conv.SessionID = uuid.NewString()
	}

	var mentions []domain.BrandMention
	var citations []domain.Citation
	for i, raw := range upload.Messages {
		// До записи в БД идентификатором сообщения служит его порядковый номер:
		// хранилище заменит его на собственный ключ.
		msg := domain.Message{
			ID:             int64(i),
			ConversationID: conv.ID,
			Role:           domain.ParseMessageRole(raw.Role),
			Content:        raw.Content,
			Sequence:       i,
			Timestamp:      capturedAt,
		}
		if raw.Timestamp != nil {
			msg.Timestamp = *raw.Timestamp
		}

		if conv.InitialQuery == "" && msg.Role == domain.RoleUser {
			conv.InitialQuery = truncate(msg.Content, initialQueryLimit)
		}

		if msg.Role == domain.RoleAssistant {
			found := s.extractor.Extract(msg, brands)
			for j := range found {
				found[j].ConversationID = conv.ID
				found[j].Sentiment = s.sentiment.Score(found[j].Context)
			}
			mentions = append(mentions, found...)

			cited := s.citations.Extract(msg)
			for j := range cited {
				cited[j].ConversationID = conv.ID
			}
			citations = append(citations, cited...)
		}

		conv.Messages = append(conv.Messages, msg)
	}
	return conv, mentions, citations
}

// RegisterBrand добавляет бренд в реестр отслеживания.
func (s *Service) RegisterBrand(ctx context.Context, brand domain.Brand) (domain.Brand, error) {
	brand.Name = strings.TrimSpace(brand.Name)
	if brand.Name == "" {
		return domain.Brand{}, ErrBrandNameRequired
	}
	brand.NormalizedName = domain.NormalizeBrandName(brand.Name)
	brand.IsActive = true
	stored, err := s.brands.RegisterBrand(ctx, brand)
	if err != nil {
		return domain.Brand{}, fmt.Errorf("сохранение бренда: %w", err)
	}
	return stored, nil
}

// ListBrands возвращает бренды реестра.
func (s *Service) ListBrands(ctx context.Context, onlyActive bool) ([]domain.Brand, error) {
	brands, err := s.brands.ListBrands(ctx, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("список брендов: %w", err)
	}
	return brands, nil
}

// RequestScoreCalculation ставит в очередь расчёт баллов за указанный день.
func (s *Service) RequestScoreCalculation(ctx context.Context, date time.Time, platform domain.Platform, cause domain.ScoreJobCause) (domain.ScoreJob, error) {
	job := domain.ScoreJob{
		ID:          uuid.NewString(),
		Date:        date.UTC().Truncate(24 * time.Hour),
		Platform:    platform,
		RequestedAt: time.Now().UTC(),
		Cause:       cause,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return domain.ScoreJob{}, fmt.Errorf("постановка расчёта в очередь: %w", err)
	}
	metrics.ScoreJobsTotal.WithLabelValues(string(cause)).Inc()
	return job, nil
}

// GetVisibility возвращает динамику видимости бренда за период.
func (s *Service) GetVisibility(ctx context.Context, q domain.VisibilityQuery) (domain.VisibilityResult, error) {
	normalized := domain.NormalizeBrandName(q.Brand)
	result := domain.VisibilityResult{
		Brand:      q.Brand,
		PeriodDays: int(q.End.Sub(q.Start).Hours() / 24),
		Trend:      []domain.VisibilityTrendItem{},
	}

	scores, err := s.scores.ListScores(ctx, normalized, q.Start, q.End, q.Platform)
	if err != nil {
		return result, fmt.Errorf("баллы видимости: %w", err)
	}

	totalMentions := 0
	sumSentiment := 0.0
	for _, score := range scores {
		result.Trend = append(result.Trend, domain.VisibilityTrendItem{
			Date:         score.Date.Format("2006-01-02"),
			Score:        score.Score,
			MentionCount: score.MentionCount,
			Sentiment:    score.AvgSentiment,
		})
		totalMentions += score.MentionCount
		sumSentiment += score.AvgSentiment
	}
	result.TotalMentions = totalMentions
	if len(scores) > 0 {
		result.AvgSentiment = sumSentiment / float64(len(scores))
		result.CurrentScore = scores[len(scores)-1].Score
		if len(scores) > 1 {
			prev := scores[len(scores)-2].Score
			result.PreviousScore = &prev
			change := changeBetween(result.CurrentScore, prev)
			result.ChangePercent = &change
		}
		return result, nil
	}

	// Балл ещё не рассчитан: грубая оценка по числу упоминаний за период.
	count, avgSentiment, err := s.mentions.CountMentions(ctx, normalized, q.Start, q.End)
	if err != nil {
		return result, fmt.Errorf("упоминания бренда: %w", err)
	}
	result.TotalMentions = count
	result.AvgSentiment = avgSentiment
	result.CurrentScore = float64(count) * 5
	if result.CurrentScore > 100 {
		result.CurrentScore = 100
	}
	return result, nil
}

// Stats возвращает сводную статистику по накопленным данным.
func (s *Service) Stats(ctx context.Context) (domain.TrackingStats, error) {
	conversations, messages, mentions, err := s.stats.TrackingTotals(ctx)
	if err != nil {
		return domain.TrackingStats{}, fmt.Errorf("сводные счётчики: %w", err)
	}

	brands, err := s.brands.ListBrands(ctx, true)
	if err != nil {
		return domain.TrackingStats{}, fmt.Errorf("список брендов: %w", err)
	}

	platforms, err := s.stats.PlatformBreakdown(ctx)
	if err != nil {
		return domain.TrackingStats{}, fmt.Errorf("распределение по площадкам: %w", err)
	}
	byPlatform := make(map[string]int, len(platforms))
	for platform, count := range platforms {
		byPlatform[string(platform)] = count
	}

	earliest, latest, err := s.stats.CaptureDateRange(ctx)
	if err != nil {
		return domain.TrackingStats{}, fmt.Errorf("диапазон дат: %w", err)
	}
	dateRange := map[string]string{}
	if earliest != nil {
		dateRange["earliest"] = earliest.Format(time.RFC3339)
	}
	if latest != nil {
		dateRange["latest"] = latest.Format(time.RFC3339)
	}

	return domain.TrackingStats{
		TotalConversations: conversations,
		TotalMessages:      messages,
		TotalBrandMentions: mentions,
		TotalBrandsTracked: len(brands),
		Platforms:          byPlatform,
		DateRange:          dateRange,
	}, nil
}

func changeBetween(current, previous float64) float64 {
	if previous > 0 {
		return (current - previous) / previous * 100
	}
	if current > 0 {
		return 100
	}
	return 0
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
