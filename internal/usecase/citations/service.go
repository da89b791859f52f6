package citations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"brand-radar/internal/domain"
	"brand-radar/internal/infra/metrics"
)

// ErrEmptyText возвращается при извлечении цитирований из пустого текста.
var ErrEmptyText = errors.New("текст для извлечения цитирований пуст")

// ErrBadWebsiteURL возвращается если из адреса сайта не удалось выделить домен.
var ErrBadWebsiteURL = errors.New("не удалось выделить домен из адреса сайта")

// ErrAnalysisNotFound возвращается если анализ с указанным идентификатором не найден.
var ErrAnalysisNotFound = errors.New("анализ не найден")

// Повторный анализ того же домена в течение суток отдаёт сохранённый результат.
const analysisReuseWindow = 24 * time.Hour

const (
	topDomainsLimit   = 10
	recentCitationDay = 7
)

// DomainFromURL выделяет нормализованный домен из адреса страницы.
type DomainFromURL func(rawURL string) string

// Service реализует извлечение цитирований и аналитику по источникам.
type Service struct {
	extractor  domain.CitationExtractor
	classifier domain.SourceClassifier
	citations  domain.CitationRepo
	sources    domain.SourceRepo
	analyses   domain.AnalysisRepo
	domainOf   DomainFromURL
}

// NewService создаёт сервис цитирований.
func NewService(extractor domain.CitationExtractor, classifier domain.SourceClassifier, citations domain.CitationRepo, sources domain.SourceRepo, analyses domain.AnalysisRepo, domainOf DomainFromURL) *Service {
	return &Service{
		extractor:  extractor,
		classifier: classifier,
		citations:  citations,
		sources:    sources,
		analyses:   analyses,
		domainOf:   domainOf,
	}
}

// ExtractFromText извлекает цитирования из произвольного текста ответа,
// сохраняет их и обновляет агрегаты доменов-источников.
func (s *Service) ExtractFromText(ctx context.Context, text, conversationID string) (domain.ExtractResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.ExtractResult{}, ErrEmptyText
	}

	found := s.extractor.Extract(domain.Message{ConversationID: conversationID, Content: text})
	for i := range found {
		found[i].ConversationID = conversationID
	}

	stored, err := s.citations.StoreCitations(ctx, found)
	if err != nil {
		return domain.ExtractResult{}, fmt.Errorf("сохранение цитирований: %w", err)
	}

	now := time.Now().UTC()
	updated := 0
	for _, citation := range stored {
		metrics.CitationsExtracted.WithLabelValues(string(citation.Type)).Inc()
		if citation.SourceDomain == "" {
			continue
		}
		sourceType, authority := s.classifier.Classify(citation.SourceDomain)
		_, err := s.sources.RecordCitation(ctx, domain.CitationSource{
			Domain:           citation.SourceDomain,
			NormalizedDomain: domain.NormalizeDomain(citation.SourceDomain),
			SourceType:       sourceType,
			AuthorityScore:   authority,
			IsActive:         true,
		}, now)
		if err != nil {
			return domain.ExtractResult{}, fmt.Errorf("обновление источника %s: %w", citation.SourceDomain, err)
		}
		updated++
	}

	return domain.ExtractResult{
		CitationsFound: len(stored),
		Citations:      stored,
		SourcesUpdated: updated,
	}, nil
}

// Discover возвращает обзор источников, которые цитируют ИИ-ассистенты.
func (s *Service) Discover(ctx context.Context, days int, sourceType domain.SourceType, limit int) (domain.CitationDiscoveryResult, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	totalCitations, err := s.citations.CountCitations(ctx, since)
	if err != nil {
		return domain.CitationDiscoveryResult{}, fmt.Errorf("количество цитирований: %w", err)
	}
	totalSources, err := s.sources.CountSources(ctx)
	if err != nil {
		return domain.CitationDiscoveryResult{}, fmt.Errorf("количество источников: %w", err)
	}
	sources, err := s.sources.ListSources(ctx, sourceType, limit)
	if err != nil {
		return domain.CitationDiscoveryResult{}, fmt.Errorf("список источников: %w", err)
	}
	typeCounts, err := s.citations.CitationTypeCounts(ctx, since)
	if err != nil {
		return domain.CitationDiscoveryResult{}, fmt.Errorf("типы цитирований: %w", err)
	}
	sourceTypeCounts, err := s.sources.SourceTypeCitationCounts(ctx)
	if err != nil {
		return domain.CitationDiscoveryResult{}, fmt.Errorf("типы источников: %w", err)
	}

	result := domain.CitationDiscoveryResult{
		TotalCitations: totalCitations,
		TotalSources:   totalSources,
		Sources:        make([]domain.SourceItem, 0, len(sources)),
		TopDomains:     []domain.DomainCount{},
		ByType:         make(map[string]int, len(typeCounts)),
		BySourceType:   make(map[string]int, len(sourceTypeCounts)),
		Period:         fmt.Sprintf("%dd", days),
	}
	for _, src := range sources {
		result.Sources = append(result.Sources, sourceItem(src))
	}
	for citationType, count := range typeCounts {
		result.ByType[string(citationType)] = count
	}
	for srcType, count := range sourceTypeCounts {
		result.BySourceType[string(srcType)] = count
	}

	top := make([]domain.CitationSource, len(sources))
	copy(top, sources)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].CitationCount > top[j].CitationCount
	})
	for i, src := range top {
		if i == topDomainsLimit {
			break
		}
		result.TopDomains = append(result.TopDomains, domain.DomainCount{
			Domain: src.NormalizedDomain,
			Count:  src.CitationCount,
		})
	}
	return result, nil
}

// AnalyzeWebsite оценивает, как сайт цитируется ИИ-ассистентами.
// Завершённый анализ того же домена моложе суток переиспользуется, если не задан force.
func (s *Service) AnalyzeWebsite(ctx context.Context, rawURL string, force bool) (domain.WebsiteAnalysisResult, error) {
	began := time.Now()
	host := s.domainOf(rawURL)
	if host == "" {
		return domain.WebsiteAnalysisResult{}, ErrBadWebsiteURL
	}

	if !force {
		cached, err := s.analyses.LatestCompletedAnalysis(ctx, host, time.Now().UTC().Add(-analysisReuseWindow))
		if err != nil {
			return domain.WebsiteAnalysisResult{}, fmt.Errorf("поиск недавнего анализа: %w", err)
		}
		if cached != nil {
			return analysisResult(*cached), nil
		}
	}

	analysis, err := s.analyses.CreateAnalysis(ctx, domain.WebsiteAnalysis{
		URL:       rawURL,
		Domain:    host,
		Status:    domain.AnalysisProcessing,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.WebsiteAnalysisResult{}, fmt.Errorf("создание анализа: %w", err)
	}

	cited, err := s.citations.ListCitationsByDomain(ctx, host, 100)
	if err != nil {
		analysis.Status = domain.AnalysisFailed
		analysis.ErrorMessage = err.Error()
		_ = s.analyses.FinishAnalysis(ctx, analysis)
		return domain.WebsiteAnalysisResult{}, fmt.Errorf("цитирования домена: %w", err)
	}

	source, err := s.sources.SourceByDomain(ctx, host)
	if err != nil {
		analysis.Status = domain.AnalysisFailed
		analysis.ErrorMessage = err.Error()
		_ = s.analyses.FinishAnalysis(ctx, analysis)
		return domain.WebsiteAnalysisResult{}, fmt.Errorf("агрегат домена: %w", err)
	}

	avgSentiment := 0.0
	if source != nil {
		avgSentiment = source.AvgSentiment
	}
	authority := 0.0
	if source != nil {
		authority = source.AuthorityScore
	} else {
		_, authority = s.classifier.Classify(host)
	}

	analysis.Status = domain.AnalysisCompleted
	analysis.Progress = 100
	analysis.CitationCount = len(cited)
	analysis.AvgSentiment = avgSentiment
	analysis.Contexts = contextsFromCitations(cited)
	analysis.Recommendations = buildRecommendations(len(cited), avgSentiment, authority)
	analysis.PagesAnalyzed = 1
	completedAt := time.Now().UTC()
	analysis.CompletedAt = &completedAt

	if err := s.analyses.FinishAnalysis(ctx, analysis); err != nil {
		return domain.WebsiteAnalysisResult{}, fmt.Errorf("завершение анализа: %w", err)
	}
	metrics.WebsiteAnalysisSeconds.Observe(time.Since(began).Seconds())
	return analysisResult(analysis), nil
}

// Analysis возвращает сохранённый анализ по идентификатору.
func (s *Service) Analysis(ctx context.Context, id int64) (domain.WebsiteAnalysisResult, error) {
	analysis, err := s.analyses.AnalysisByID(ctx, id)
	if err != nil {
		return domain.WebsiteAnalysisResult{}, fmt.Errorf("чтение анализа: %w", err)
	}
	if analysis == nil {
		return domain.WebsiteAnalysisResult{}, ErrAnalysisNotFound
	}
	return analysisResult(*analysis), nil
}

// Stats возвращает сводную статистику по цитированиям.
func (s *Service) Stats(ctx context.Context) (domain.CitationStats, error) {
	totalCitations, err := s.citations.CountCitations(ctx, time.Time{})
	if err != nil {
		return domain.CitationStats{}, fmt.Errorf("количество цитирований: %w", err)
	}
	totalSources, err := s.sources.CountSources(ctx)
	if err != nil {
		return domain.CitationStats{}, fmt.Errorf("количество источников: %w", err)
	}
	totalAnalyses, err := s.analyses.CountAnalyses(ctx)
	if err != nil {
		return domain.CitationStats{}, fmt.Errorf("количество анализов: %w", err)
	}
	sourceTypes, err := s.sources.SourceTypeCounts(ctx)
	if err != nil {
		return domain.CitationStats{}, fmt.Errorf("типы источников: %w", err)
	}
	citationTypes, err := s.citations.CitationTypeCounts(ctx, time.Time{})
	if err != nil {
		return domain.CitationStats{}, fmt.Errorf("типы цитирований: %w", err)
	}
	avgAuthority, err := s.sources.AvgAuthorityScore(ctx)
	if err != nil {
		return domain.CitationStats{}, fmt.Errorf("средняя авторитетность: %w", err)
	}
	recent, err := s.citations.CountCitations(ctx, time.Now().UTC().AddDate(0, 0, -recentCitationDay))
	if err != nil {
		return domain.CitationStats{}, fmt.Errorf("недавние цитирования: %w", err)
	}

	stats := domain.CitationStats{
		TotalCitations:    totalCitations,
		TotalSources:      totalSources,
		TotalAnalyses:     totalAnalyses,
		TopSourceTypes:    make(map[string]int, len(sourceTypes)),
		TopCitationTypes:  make(map[string]int, len(citationTypes)),
		AvgAuthorityScore: avgAuthority,
		RecentCitations:   recent,
	}
	for srcType, count := range sourceTypes {
		stats.TopSourceTypes[string(srcType)] = count
	}
	for citationType, count := range citationTypes {
		stats.TopCitationTypes[string(citationType)] = count
	}
	return stats, nil
}

func sourceItem(src domain.CitationSource) domain.SourceItem {
	return domain.SourceItem{
		ID:             src.ID,
		Domain:         src.NormalizedDomain,
		DisplayName:    src.DisplayName,
		SourceType:     string(src.SourceType),
		AuthorityScore: src.AuthorityScore,
		CitationCount:  src.CitationCount,
		AvgSentiment:   src.AvgSentiment,
		FirstCitedAt:   src.FirstCitedAt,
		LastCitedAt:    src.LastCitedAt,
		IsVerified:     src.IsVerified,
	}
}

func analysisResult(analysis domain.WebsiteAnalysis) domain.WebsiteAnalysisResult {
	contexts := analysis.Contexts
	if contexts == nil {
		contexts = []domain.CitationContext{}
	}
	recommendations := analysis.Recommendations
	if recommendations == nil {
		recommendations = []domain.Recommendation{}
	}
	return domain.WebsiteAnalysisResult{
		ID:              analysis.ID,
		URL:             analysis.URL,
		Domain:          analysis.Domain,
		Status:          string(analysis.Status),
		Progress:        analysis.Progress,
		CitationCount:   analysis.CitationCount,
		AvgSentiment:    analysis.AvgSentiment,
		Contexts:        contexts,
		Recommendations: recommendations,
		PagesAnalyzed:   analysis.PagesAnalyzed,
		StartedAt:       analysis.StartedAt,
		CompletedAt:     analysis.CompletedAt,
		ErrorMessage:    analysis.ErrorMessage,
	}
}

func contextsFromCitations(cited []domain.Citation) []domain.CitationContext {
	contexts := make([]domain.CitationContext, 0, len(cited))
	for _, citation := range cited {
		contexts = append(contexts, domain.CitationContext{
			ResponseSnippet: citation.Context,
			CitationType:    string(citation.Type),
			Timestamp:       citation.CreatedAt,
		})
	}
	return contexts
}

// buildRecommendations подбирает рекомендации по улучшению видимости сайта
// исходя из числа цитирований, тональности и авторитетности домена.
func buildRecommendations(citationCount int, avgSentiment, authority float64) []domain.Recommendation {
	var recs []domain.Recommendation

	if citationCount == 0 {
		recs = append(recs, domain.Recommendation{
			Category:    "content",
			Title:       "Сайт пока не цитируется ассистентами",
			Description: "Опубликуйте экспертные материалы с фактами и данными, на которые удобно ссылаться: исследования, статистику, руководства.",
			Priority:    "high",
			Impact:      "high",
			Effort:      "high",
		})
	} else if citationCount < 5 {
		recs = append(recs, domain.Recommendation{
			Category:    "content",
			Title:       "Цитирований мало",
			Description: "Расширьте покрытие тем: чаще цитируются страницы с чёткой структурой, определениями и ответами на конкретные вопросы.",
			Priority:    "medium",
			Impact:      "high",
			Effort:      "medium",
		})
	}

	if avgSentiment < 0 {
		recs = append(recs, domain.Recommendation{
			Category:    "reputation",
			Title:       "Негативный контекст цитирований",
			Description: "Ассистенты упоминают сайт в отрицательном ключе. Проверьте упоминаемые страницы и обновите устаревшие или спорные материалы.",
			Priority:    "high",
			Impact:      "medium",
			Effort:      "medium",
		})
	}

	if authority < 60 {
		recs = append(recs, domain.Recommendation{
			Category:    "authority",
			Title:       "Низкая авторитетность домена",
			Description: "Получайте ссылки и упоминания с отраслевых и новостных площадок: авторитетность домена влияет на частоту цитирования.",
			Priority:    "medium",
			Impact:      "medium",
			Effort:      "high",
		})
	}

	recs = append(recs, domain.Recommendation{
		Category:    "technical",
		Title:       "Структурированные данные",
		Description: "Добавьте разметку schema.org и содержательные заголовки: структурированный контент проще извлекать и цитировать.",
		Priority:    "low",
		Impact:      "medium",
		Effort:      "low",
	})
	return recs
}
