package tracking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"brand-radar/internal/adapters/authority"
	"brand-radar/internal/adapters/extractor"
	"brand-radar/internal/adapters/sentiment"
	"brand-radar/internal/domain"
)

type storedConversation struct {
	conv      domain.Conversation
	mentions  []domain.BrandMention
	citations []domain.Citation
}

type stubConversations struct {
	stored  []storedConversation
	failOn  int
	failErr error
}

func (s *stubConversations) StoreConversation(_ context.Context, conv domain.Conversation, mentions []domain.BrandMention, citations []domain.Citation) error {
	if s.failErr != nil && len(s.stored) == s.failOn {
		s.failErr, s.failOn = nil, -1
		return errors.New("обрыв соединения")
	}
	s.stored = append(s.stored, storedConversation{conv: conv, mentions: mentions, citations: citations})
	return nil
}

func (s *stubConversations) CountConversations(context.Context, time.Time, time.Time, domain.Platform) (int, error) {
	return len(s.stored), nil
}

type stubBrands struct {
	brands []domain.Brand
	saved  []domain.Brand
}

func (s *stubBrands) RegisterBrand(_ context.Context, brand domain.Brand) (domain.Brand, error) {
	brand.ID = int64(len(s.saved) + 1)
	s.saved = append(s.saved, brand)
	return brand, nil
}

func (s *stubBrands) ListBrands(context.Context, bool) ([]domain.Brand, error) {
	return s.brands, nil
}

func (s *stubBrands) BrandDisplayName(context.Context, string) (string, error) { return "", nil }

type stubMentions struct {
	count        int
	avgSentiment float64
}

func (s *stubMentions) MentionStatsByBrand(context.Context, time.Time, time.Time, domain.Platform) ([]domain.MentionStats, error) {
	return nil, nil
}

func (s *stubMentions) MentionTypeCounts(context.Context, string, time.Time, time.Time, domain.Platform) (map[domain.MentionType]int, error) {
	return nil, nil
}

func (s *stubMentions) CountMentions(context.Context, string, time.Time, time.Time) (int, float64, error) {
	return s.count, s.avgSentiment, nil
}

func (s *stubMentions) TopBrandsByMentions(context.Context, time.Time, time.Time, int) ([]string, error) {
	return nil, nil
}

type stubScores struct {
	listed []domain.VisibilityScore
}

func (s *stubScores) UpsertScore(_ context.Context, score domain.VisibilityScore) (domain.VisibilityScore, error) {
	return score, nil
}

func (s *stubScores) ListScores(context.Context, string, time.Time, time.Time, domain.Platform) ([]domain.VisibilityScore, error) {
	return s.listed, nil
}

func (s *stubScores) LatestScore(context.Context, string, time.Time, time.Time) (*domain.VisibilityScore, error) {
	return nil, nil
}

func (s *stubScores) LatestScoresPerBrand(context.Context, time.Time, time.Time, int) ([]domain.VisibilityScore, error) {
	return nil, nil
}

func (s *stubScores) AvgScore(context.Context, string, time.Time, time.Time) (float64, error) {
	return 0, nil
}

type stubStats struct {
	conversations, messages, mentions int
	platforms                         map[domain.Platform]int
	earliest, latest                  *time.Time
}

func (s *stubStats) TrackingTotals(context.Context) (int, int, int, error) {
	return s.conversations, s.messages, s.mentions, nil
}

func (s *stubStats) PlatformBreakdown(context.Context) (map[domain.Platform]int, error) {
	return s.platforms, nil
}

func (s *stubStats) CaptureDateRange(context.Context) (*time.Time, *time.Time, error) {
	return s.earliest, s.latest, nil
}

type stubSources struct {
	recorded []domain.CitationSource
}

func (s *stubSources) RecordCitation(_ context.Context, src domain.CitationSource, _ time.Time) (domain.CitationSource, error) {
	s.recorded = append(s.recorded, src)
	return src, nil
}

func (s *stubSources) SourceByDomain(context.Context, string) (*domain.CitationSource, error) {
	return nil, nil
}

func (s *stubSources) ListSources(context.Context, domain.SourceType, int) ([]domain.CitationSource, error) {
	return nil, nil
}

func (s *stubSources) SourceTypeCitationCounts(context.Context) (map[domain.SourceType]int, error) {
	return nil, nil
}

func (s *stubSources) SourceTypeCounts(context.Context) (map[domain.SourceType]int, error) {
	return nil, nil
}

func (s *stubSources) CountSources(context.Context) (int, error) { return 0, nil }

func (s *stubSources) AvgAuthorityScore(context.Context) (float64, error) { return 0, nil }

type stubQueue struct {
	jobs []domain.ScoreJob
}

func (s *stubQueue) Enqueue(_ context.Context, job domain.ScoreJob) error {
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *stubQueue) Receive(context.Context) (domain.ScoreJob, domain.ScoreAckFunc, error) {
	return domain.ScoreJob{}, nil, errors.New("очередь пуста")
}

func newTestService(conversations *stubConversations, brands *stubBrands, mentions *stubMentions, scores *stubScores, stats *stubStats, sources *stubSources, queue *stubQueue) *Service {
	classifier := authority.New()
	return NewService(
		brands,
		conversations,
		mentions,
		scores,
		stats,
		sources,
		extractor.NewMentions(),
		extractor.NewCitations(classifier),
		classifier,
		sentiment.NewLexicon(),
		queue,
	)
}

func TestUploadConversationsExtractsMentionsAndCitations(t *testing.T) {
	conversations := &stubConversations{}
	brands := &stubBrands{brands: []domain.Brand{{Name: "Acme", NormalizedName: "acme"}}}
	sources := &stubSources{}
	svc := newTestService(conversations, brands, &stubMentions{}, &stubScores{}, &stubStats{}, sources, &stubQueue{})

	captured := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := svc.UploadConversations(context.Background(), []ConversationUpload{
		{
			Platform:   "chatgpt",
			CapturedAt: captured,
			Messages: []MessageUpload{
				{Role: "user", Content: "What CRM should I use?"},
				{Role: "assistant", Content: "I recommend Acme, it is excellent. See https://en.wikipedia.org/wiki/CRM for background."},
			},
		},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Received != 1 || result.Processed != 1 {
		t.Fatalf("ожидали один обработанный диалог, получили %+v", result)
	}
	if result.BrandMentionsFound != 1 {
		t.Fatalf("ожидали одно упоминание, получили %d", result.BrandMentionsFound)
	}

	stored := conversations.stored[0]
	if stored.conv.Platform != domain.PlatformChatGPT {
		t.Fatalf("ожидали площадку chatgpt, получили %q", stored.conv.Platform)
	}
	if stored.conv.InitialQuery != "What CRM should I use?" {
		t.Fatalf("исходный запрос берётся из первого сообщения пользователя, получили %q", stored.conv.InitialQuery)
	}
	if stored.conv.ID == "" {
		t.Fatal("диалог должен получить идентификатор")
	}

	mention := stored.mentions[0]
	if mention.Type != domain.MentionRecommendation {
		t.Fatalf("ожидали тип recommendation, получили %q", mention.Type)
	}
	if mention.Sentiment <= 0 {
		t.Fatalf("контекст с excellent должен давать положительную тональность, получили %v", mention.Sentiment)
	}
	if mention.ConversationID != stored.conv.ID {
		t.Fatal("упоминание должно ссылаться на диалог")
	}

	if len(stored.citations) != 1 {
		t.Fatalf("ожидали одно цитирование, получили %d", len(stored.citations))
	}
	if stored.citations[0].SourceDomain != "en.wikipedia.org" {
		t.Fatalf("ожидали домен en.wikipedia.org, получили %q", stored.citations[0].SourceDomain)
	}

	if len(sources.recorded) != 1 {
		t.Fatalf("ожидали одно обновление агрегата источника, получили %d", len(sources.recorded))
	}
	src := sources.recorded[0]
	if src.NormalizedDomain != "en.wikipedia.org" || src.AuthorityScore != 60 {
		t.Fatalf("агрегат источника должен получить категорию и авторитетность, получили %+v", src)
	}
}

func TestUploadConversationsContinuesAfterFailure(t *testing.T) {
	conversations := &stubConversations{failOn: 0, failErr: errors.New("обрыв")}
	brands := &stubBrands{}
	svc := newTestService(conversations, brands, &stubMentions{}, &stubScores{}, &stubStats{}, &stubSources{}, &stubQueue{})

	result, err := svc.UploadConversations(context.Background(), []ConversationUpload{
		{Platform: "claude", CapturedAt: time.Now()},
		{Platform: "claude", CapturedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("ошибка одного диалога не должна ронять пакет: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("ожидали один обработанный диалог, получили %d", result.Processed)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "диалог 0") {
		t.Fatalf("ожидали ошибку по первому диалогу, получили %v", result.Errors)
	}
}

func TestUploadConversationsLenientParsing(t *testing.T) {
	conversations := &stubConversations{}
	svc := newTestService(conversations, &stubBrands{}, &stubMentions{}, &stubScores{}, &stubStats{}, &stubSources{}, &stubQueue{})

	long := strings.Repeat("q", 600)
	_, err := svc.UploadConversations(context.Background(), []ConversationUpload{
		{
			Platform: "midjourney",
			Messages: []MessageUpload{
				{Role: "operator", Content: long},
			},
		},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	stored := conversations.stored[0]
	if stored.conv.Platform != domain.PlatformOther {
		t.Fatalf("неизвестная площадка сводится к other, получили %q", stored.conv.Platform)
	}
	if stored.conv.Messages[0].Role != domain.RoleUser {
		t.Fatalf("неизвестная роль сводится к user, получили %q", stored.conv.Messages[0].Role)
	}
	if len(stored.conv.InitialQuery) != initialQueryLimit {
		t.Fatalf("исходный запрос должен усекаться до %d символов, получили %d", initialQueryLimit, len(stored.conv.InitialQuery))
	}
	if stored.conv.CapturedAt.IsZero() || stored.conv.Messages[0].Timestamp.IsZero() {
		t.Fatal("пустые даты должны заполняться текущим временем")
	}
}

func TestRegisterBrandNormalizesName(t *testing.T) {
	brands := &stubBrands{}
	svc := newTestService(&stubConversations{}, brands, &stubMentions{}, &stubScores{}, &stubStats{}, &stubSources{}, &stubQueue{})

	stored, err := svc.RegisterBrand(context.Background(), domain.Brand{Name: "  Acme, Inc. "})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if stored.Name != "Acme, Inc." || stored.NormalizedName != "acmeinc" {
		t.Fatalf("ожидали нормализацию имени, получили %+v", stored)
	}
	if !stored.IsActive {
		t.Fatal("новый бренд должен быть активным")
	}

	if _, err := svc.RegisterBrand(context.Background(), domain.Brand{Name: "   "}); !errors.Is(err, ErrBrandNameRequired) {
		t.Fatalf("пустое имя должно давать ErrBrandNameRequired, получили %v", err)
	}
}

func TestGetVisibilityFromScores(t *testing.T) {
	scores := &stubScores{listed: []domain.VisibilityScore{
		{Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Score: 50, MentionCount: 4, AvgSentiment: 0.2},
		{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Score: 60, MentionCount: 6, AvgSentiment: 0.4},
	}}
	svc := newTestService(&stubConversations{}, &stubBrands{}, &stubMentions{}, scores, &stubStats{}, &stubSources{}, &stubQueue{})

	end := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	result, err := svc.GetVisibility(context.Background(), domain.VisibilityQuery{
		Brand: "Acme",
		Start: end.AddDate(0, 0, -30),
		End:   end,
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.CurrentScore != 60 {
		t.Fatalf("текущий балл берётся из последней точки, получили %v", result.CurrentScore)
	}
	if result.PreviousScore == nil || *result.PreviousScore != 50 {
		t.Fatalf("ожидали предыдущий балл 50, получили %v", result.PreviousScore)
	}
	if result.ChangePercent == nil || *result.ChangePercent != 20 {
		t.Fatalf("ожидали изменение 20%%, получили %v", result.ChangePercent)
	}
	if result.TotalMentions != 10 {
		t.Fatalf("ожидали 10 упоминаний, получили %d", result.TotalMentions)
	}
	if len(result.Trend) != 2 || result.Trend[0].Date != "2026-03-01" {
		t.Fatalf("ожидали две точки тренда, получили %+v", result.Trend)
	}
	if result.PeriodDays != 30 {
		t.Fatalf("ожидали период 30 дней, получили %d", result.PeriodDays)
	}
}

func TestGetVisibilityFallbackWithoutScores(t *testing.T) {
	mentions := &stubMentions{count: 7, avgSentiment: 0.3}
	svc := newTestService(&stubConversations{}, &stubBrands{}, mentions, &stubScores{}, &stubStats{}, &stubSources{}, &stubQueue{})

	end := time.Now().UTC()
	result, err := svc.GetVisibility(context.Background(), domain.VisibilityQuery{
		Brand: "Acme",
		Start: end.AddDate(0, 0, -7),
		End:   end,
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Без рассчитанных баллов оценка по упоминаниям: 7*5=35.
	if result.CurrentScore != 35 {
		t.Fatalf("ожидали резервный балл 35, получили %v", result.CurrentScore)
	}
	if result.TotalMentions != 7 || result.AvgSentiment != 0.3 {
		t.Fatalf("ожидали счётчики из репозитория упоминаний, получили %+v", result)
	}
	if result.PreviousScore != nil || result.ChangePercent != nil {
		t.Fatal("без истории не должно быть сравнения с прошлым")
	}
}

func TestRequestScoreCalculation(t *testing.T) {
	queue := &stubQueue{}
	svc := newTestService(&stubConversations{}, &stubBrands{}, &stubMentions{}, &stubScores{}, &stubStats{}, &stubSources{}, queue)

	job, err := svc.RequestScoreCalculation(context.Background(), time.Date(2026, 3, 1, 18, 45, 0, 0, time.UTC), domain.PlatformChatGPT, domain.ScoreCauseManual)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("ожидали одно задание в очереди, получили %d", len(queue.jobs))
	}
	if !job.Date.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("дата задания усекается до суток, получили %v", job.Date)
	}
	if job.Cause != domain.ScoreCauseManual || job.ID == "" {
		t.Fatalf("задание должно нести причину и идентификатор, получили %+v", job)
	}
}

func TestStats(t *testing.T) {
	earliest := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	stats := &stubStats{
		conversations: 12,
		messages:      40,
		mentions:      9,
		platforms:     map[domain.Platform]int{domain.PlatformChatGPT: 8, domain.PlatformClaude: 4},
		earliest:      &earliest,
		latest:        &latest,
	}
	brands := &stubBrands{brands: []domain.Brand{{Name: "Acme"}, {Name: "Globex"}}}
	svc := newTestService(&stubConversations{}, brands, &stubMentions{}, &stubScores{}, stats, &stubSources{}, &stubQueue{})

	got, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.TotalConversations != 12 || got.TotalMessages != 40 || got.TotalBrandMentions != 9 {
		t.Fatalf("сводные счётчики не совпали: %+v", got)
	}
	if got.TotalBrandsTracked != 2 {
		t.Fatalf("ожидали два бренда, получили %d", got.TotalBrandsTracked)
	}
	if got.Platforms["chatgpt"] != 8 {
		t.Fatalf("распределение по площадкам не совпало: %+v", got.Platforms)
	}
	if got.DateRange["earliest"] != earliest.Format(time.RFC3339) {
		t.Fatalf("диапазон дат не совпал: %+v", got.DateRange)
	}
}
