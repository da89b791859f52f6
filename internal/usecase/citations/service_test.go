package citations

import (
	"context"
	"errors"
	"testing"
	"time"

	"brand-radar/internal/adapters/authority"
	"brand-radar/internal/adapters/extractor"
	"brand-radar/internal/domain"
)

type stubCitationRepo struct {
	stored     []domain.Citation
	byDomain   []domain.Citation
	total      int
	recent     int
	typeCounts map[domain.CitationType]int
}

func (s *stubCitationRepo) StoreCitations(_ context.Context, citations []domain.Citation) ([]domain.Citation, error) {
	s.stored = append(s.stored, citations...)
	return citations, nil
}

func (s *stubCitationRepo) CountCitations(_ context.Context, since time.Time) (int, error) {
	if since.IsZero() {
		return s.total, nil
	}
	return s.recent, nil
}

func (s *stubCitationRepo) CitationTypeCounts(context.Context, time.Time) (map[domain.CitationType]int, error) {
	return s.typeCounts, nil
}

func (s *stubCitationRepo) ListCitationsByDomain(context.Context, string, int) ([]domain.Citation, error) {
	return s.byDomain, nil
}

type recordedCitation struct {
	src domain.CitationSource
	at  time.Time
}

type stubSourceRepo struct {
	recorded   []recordedCitation
	byDomain   map[string]*domain.CitationSource
	listed     []domain.CitationSource
	total      int
	avg        float64
	typeCounts map[domain.SourceType]int
}

func (s *stubSourceRepo) RecordCitation(_ context.Context, src domain.CitationSource, at time.Time) (domain.CitationSource, error) {
	s.recorded = append(s.recorded, recordedCitation{src: src, at: at})
	return src, nil
}

func (s *stubSourceRepo) SourceByDomain(_ context.Context, normalizedDomain string) (*domain.CitationSource, error) {
	return s.byDomain[normalizedDomain], nil
}

func (s *stubSourceRepo) ListSources(context.Context, domain.SourceType, int) ([]domain.CitationSource, error) {
	return s.listed, nil
}

func (s *stubSourceRepo) SourceTypeCitationCounts(context.Context) (map[domain.SourceType]int, error) {
	return s.typeCounts, nil
}

func (s *stubSourceRepo) SourceTypeCounts(context.Context) (map[domain.SourceType]int, error) {
	return s.typeCounts, nil
}

func (s *stubSourceRepo) CountSources(context.Context) (int, error) { return s.total, nil }

func (s *stubSourceRepo) AvgAuthorityScore(context.Context) (float64, error) { return s.avg, nil }

type stubAnalysisRepo struct {
	created  []domain.WebsiteAnalysis
	finished []domain.WebsiteAnalysis
	latest   *domain.WebsiteAnalysis
	byID     map[int64]*domain.WebsiteAnalysis
	total    int
}

func (s *stubAnalysisRepo) CreateAnalysis(_ context.Context, analysis domain.WebsiteAnalysis) (domain.WebsiteAnalysis, error) {
	analysis.ID = int64(len(s.created) + 1)
	s.created = append(s.created, analysis)
	return analysis, nil
}

func (s *stubAnalysisRepo) FinishAnalysis(_ context.Context, analysis domain.WebsiteAnalysis) error {
	s.finished = append(s.finished, analysis)
	return nil
}

func (s *stubAnalysisRepo) LatestCompletedAnalysis(context.Context, string, time.Time) (*domain.WebsiteAnalysis, error) {
	return s.latest, nil
}

func (s *stubAnalysisRepo) AnalysisByID(_ context.Context, id int64) (*domain.WebsiteAnalysis, error) {
	return s.byID[id], nil
}

func (s *stubAnalysisRepo) CountAnalyses(context.Context) (int, error) { return s.total, nil }

func newTestService(citations *stubCitationRepo, sources *stubSourceRepo, analyses *stubAnalysisRepo) *Service {
	classifier := authority.New()
	return NewService(
		extractor.NewCitations(classifier),
		classifier,
		citations,
		sources,
		analyses,
		extractor.DomainFromURL,
	)
}

func TestExtractFromTextStoresCitationsAndSources(t *testing.T) {
	citations := &stubCitationRepo{}
	sources := &stubSourceRepo{}
	svc := newTestService(citations, sources, &stubAnalysisRepo{})

	text := "See https://docs.github.com/rest for details. More data from statista.com as well."
	result, err := svc.ExtractFromText(context.Background(), text, "conv-1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.CitationsFound != 2 {
		t.Fatalf("ожидали два цитирования, получили %d", result.CitationsFound)
	}
	if result.SourcesUpdated != 2 {
		t.Fatalf("оба цитирования несут домен, ожидали два обновления источников, получили %d", result.SourcesUpdated)
	}
	for _, citation := range citations.stored {
		if citation.ConversationID != "conv-1" {
			t.Fatalf("цитирование должно ссылаться на диалог, получили %+v", citation)
		}
	}
	// Агрегат github.com получает категорию и авторитетность из классификатора.
	var github *recordedCitation
	for i := range sources.recorded {
		if sources.recorded[i].src.NormalizedDomain == "docs.github.com" {
			github = &sources.recorded[i]
		}
	}
	if github == nil {
		t.Fatalf("ожидали агрегат docs.github.com, получили %+v", sources.recorded)
	}
	if github.src.SourceType != domain.SourceDocs {
		t.Fatalf("docs-домен должен классифицироваться как docs, получили %q", github.src.SourceType)
	}
}

func TestExtractFromTextRejectsEmptyInput(t *testing.T) {
	svc := newTestService(&stubCitationRepo{}, &stubSourceRepo{}, &stubAnalysisRepo{})
	if _, err := svc.ExtractFromText(context.Background(), "   ", ""); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("пустой текст должен давать ErrEmptyText, получили %v", err)
	}
}

func TestDiscoverBuildsOverview(t *testing.T) {
	now := time.Now().UTC()
	citations := &stubCitationRepo{
		recent:     42,
		typeCounts: map[domain.CitationType]int{domain.CitationURL: 30, domain.CitationNamed: 12},
	}
	sources := &stubSourceRepo{
		total: 3,
		listed: []domain.CitationSource{
			{NormalizedDomain: "example.com", SourceType: domain.SourceWebsite, CitationCount: 5, FirstCitedAt: now, LastCitedAt: now},
			{NormalizedDomain: "nature.com", SourceType: domain.SourceAcademic, CitationCount: 20, FirstCitedAt: now, LastCitedAt: now},
		},
		typeCounts: map[domain.SourceType]int{domain.SourceAcademic: 20, domain.SourceWebsite: 5},
	}
	svc := newTestService(citations, sources, &stubAnalysisRepo{})

	result, err := svc.Discover(context.Background(), 0, "", 50)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Period != "30d" {
		t.Fatalf("нулевой период должен сводиться к 30 дням, получили %q", result.Period)
	}
	if result.TotalCitations != 42 || result.TotalSources != 3 {
		t.Fatalf("счётчики не совпали: %+v", result)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("ожидали два источника, получили %d", len(result.Sources))
	}
	// Топ доменов отсортирован по числу цитирований.
	if result.TopDomains[0].Domain != "nature.com" || result.TopDomains[0].Count != 20 {
		t.Fatalf("первым должен идти nature.com, получили %+v", result.TopDomains)
	}
	if result.ByType["url"] != 30 || result.BySourceType["academic"] != 20 {
		t.Fatalf("распределения не совпали: %+v", result)
	}
}

func TestAnalyzeWebsiteBuildsReport(t *testing.T) {
	citations := &stubCitationRepo{
		byDomain: []domain.Citation{
			{Type: domain.CitationURL, Context: "as shown on example.com"},
			{Type: domain.CitationDomain, Context: "according to example.com"},
		},
	}
	sources := &stubSourceRepo{
		byDomain: map[string]*domain.CitationSource{
			"example.com": {NormalizedDomain: "example.com", AuthorityScore: 50, AvgSentiment: 0.4, CitationCount: 2},
		},
	}
	analyses := &stubAnalysisRepo{}
	svc := newTestService(citations, sources, analyses)

	result, err := svc.AnalyzeWebsite(context.Background(), "https://www.example.com/page", false)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Domain != "example.com" {
		t.Fatalf("домен должен нормализоваться без www, получили %q", result.Domain)
	}
	if result.Status != string(domain.AnalysisCompleted) || result.Progress != 100 {
		t.Fatalf("анализ должен завершиться, получили %+v", result)
	}
	if result.CitationCount != 2 || len(result.Contexts) != 2 {
		t.Fatalf("ожидали два контекста цитирования, получили %+v", result)
	}
	if len(analyses.finished) != 1 {
		t.Fatalf("результат должен сохраняться, получили %d записей", len(analyses.finished))
	}
	// Мало цитирований и авторитетность ниже 60: ждём рекомендации content и authority.
	categories := map[string]bool{}
	for _, rec := range result.Recommendations {
		categories[rec.Category] = true
	}
	if !categories["content"] || !categories["authority"] || !categories["technical"] {
		t.Fatalf("набор рекомендаций не совпал: %+v", result.Recommendations)
	}
	if categories["reputation"] {
		t.Fatal("положительная тональность не должна давать рекомендацию reputation")
	}
}

func TestAnalyzeWebsiteReusesRecentAnalysis(t *testing.T) {
	completed := time.Now().UTC().Add(-time.Hour)
	analyses := &stubAnalysisRepo{
		latest: &domain.WebsiteAnalysis{
			ID:          7,
			Domain:      "example.com",
			Status:      domain.AnalysisCompleted,
			Progress:    100,
			CompletedAt: &completed,
		},
	}
	svc := newTestService(&stubCitationRepo{}, &stubSourceRepo{}, analyses)

	result, err := svc.AnalyzeWebsite(context.Background(), "https://example.com", false)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.ID != 7 {
		t.Fatalf("ожидали переиспользование анализа 7, получили %+v", result)
	}
	if len(analyses.created) != 0 {
		t.Fatalf("свежий анализ не должен создаваться, получили %d", len(analyses.created))
	}

	// force запускает новый анализ даже при свежем результате.
	if _, err := svc.AnalyzeWebsite(context.Background(), "https://example.com", true); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(analyses.created) != 1 {
		t.Fatalf("force должен создавать новый анализ, получили %d", len(analyses.created))
	}
}

func TestAnalyzeWebsiteRejectsBadURL(t *testing.T) {
	svc := newTestService(&stubCitationRepo{}, &stubSourceRepo{}, &stubAnalysisRepo{})
	if _, err := svc.AnalyzeWebsite(context.Background(), "not a url", false); !errors.Is(err, ErrBadWebsiteURL) {
		t.Fatalf("ожидали ErrBadWebsiteURL, получили %v", err)
	}
}

func TestAnalysisByID(t *testing.T) {
	analyses := &stubAnalysisRepo{byID: map[int64]*domain.WebsiteAnalysis{
		3: {ID: 3, Domain: "example.com", Status: domain.AnalysisCompleted},
	}}
	svc := newTestService(&stubCitationRepo{}, &stubSourceRepo{}, analyses)

	result, err := svc.Analysis(context.Background(), 3)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.ID != 3 {
		t.Fatalf("ожидали анализ 3, получили %+v", result)
	}

	if _, err := svc.Analysis(context.Background(), 99); !errors.Is(err, ErrAnalysisNotFound) {
		t.Fatalf("ожидали ErrAnalysisNotFound, получили %v", err)
	}
}

func TestStatsAggregatesCounters(t *testing.T) {
	citations := &stubCitationRepo{
		total:      120,
		recent:     15,
		typeCounts: map[domain.CitationType]int{domain.CitationURL: 100},
	}
	sources := &stubSourceRepo{
		total:      12,
		avg:        61.5,
		typeCounts: map[domain.SourceType]int{domain.SourceNews: 7},
	}
	analyses := &stubAnalysisRepo{total: 4}
	svc := newTestService(citations, sources, analyses)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if stats.TotalCitations != 120 || stats.TotalSources != 12 || stats.TotalAnalyses != 4 {
		t.Fatalf("счётчики не совпали: %+v", stats)
	}
	if stats.AvgAuthorityScore != 61.5 || stats.RecentCitations != 15 {
		t.Fatalf("сводка не совпала: %+v", stats)
	}
	if stats.TopSourceTypes["news"] != 7 || stats.TopCitationTypes["url"] != 100 {
		t.Fatalf("распределения не совпали: %+v", stats)
	}
}
