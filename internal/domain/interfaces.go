package domain

import (
	"context"
	"time"
)

// MentionExtractor ищет упоминания брендов в одном сообщении ассистента.
type MentionExtractor interface {
	Extract(message Message, brands []Brand) []BrandMention
}

// CitationExtractor ищет цитирования внешних источников в одном сообщении.
type CitationExtractor interface {
	Extract(message Message) []Citation
}

// SourceClassifier определяет категорию и авторитетность домена-источника.
type SourceClassifier interface {
	Classify(domain string) (SourceType, float64)
}

// SentimentAnalyzer оценивает тональность фрагмента текста.
// Контракт: вход — контекст упоминания, выход — значение в диапазоне [-1, 1].
type SentimentAnalyzer interface {
	Score(text string) float64
}

// BrandRepo управляет реестром брендов.
type BrandRepo interface {
	RegisterBrand(ctx context.Context, brand Brand) (Brand, error)
	ListBrands(ctx context.Context, onlyActive bool) ([]Brand, error)
	BrandDisplayName(ctx context.Context, normalized string) (string, error)
}

// ConversationRepo сохраняет диалоги вместе с извлечёнными записями.
type ConversationRepo interface {
	// StoreConversation записывает диалог, его сообщения, упоминания и цитирования
	// одной транзакцией. Ошибка откатывает только этот диалог.
	// MessageID упоминаний и цитирований на входе содержит порядковый номер
	// сообщения и заменяется ключом БД при записи.
	StoreConversation(ctx context.Context, conv Conversation, mentions []BrandMention, citations []Citation) error
	CountConversations(ctx context.Context, start, end time.Time, platform Platform) (int, error)
}

// MentionRepo читает агрегаты по упоминаниям брендов.
type MentionRepo interface {
	MentionStatsByBrand(ctx context.Context, start, end time.Time, platform Platform) ([]MentionStats, error)
	MentionTypeCounts(ctx context.Context, brandNormalized string, start, end time.Time, platform Platform) (map[MentionType]int, error)
	CountMentions(ctx context.Context, brandNormalized string, start, end time.Time) (int, float64, error)
	TopBrandsByMentions(ctx context.Context, start, end time.Time, limit int) ([]string, error)
}

// ScoreRepo управляет рассчитанными баллами видимости.
type ScoreRepo interface {
	// UpsertScore записывает балл за день. Повторный расчёт за тот же
	// (бренд, дата, площадка) перезаписывает строку, а не добавляет новую.
	UpsertScore(ctx context.Context, score VisibilityScore) (VisibilityScore, error)
	ListScores(ctx context.Context, brandNormalized string, start, end time.Time, platform Platform) ([]VisibilityScore, error)
	LatestScore(ctx context.Context, brandNormalized string, start, end time.Time) (*VisibilityScore, error)
	LatestScoresPerBrand(ctx context.Context, start, end time.Time, limit int) ([]VisibilityScore, error)
	AvgScore(ctx context.Context, brandNormalized string, start, end time.Time) (float64, error)
}

// CitationRepo управляет записями цитирований.
type CitationRepo interface {
	StoreCitations(ctx context.Context, citations []Citation) ([]Citation, error)
	CountCitations(ctx context.Context, since time.Time) (int, error)
	CitationTypeCounts(ctx context.Context, since time.Time) (map[CitationType]int, error)
	ListCitationsByDomain(ctx context.Context, domain string, limit int) ([]Citation, error)
}

// SourceRepo управляет агрегатами доменов-источников.
type SourceRepo interface {
	// RecordCitation создаёт агрегат домена либо увеличивает счётчик цитирований.
	// Категория и авторитетность берутся из src только при первой встрече домена.
	RecordCitation(ctx context.Context, src CitationSource, at time.Time) (CitationSource, error)
	SourceByDomain(ctx context.Context, normalizedDomain string) (*CitationSource, error)
	ListSources(ctx context.Context, sourceType SourceType, limit int) ([]CitationSource, error)
	SourceTypeCitationCounts(ctx context.Context) (map[SourceType]int, error)
	SourceTypeCounts(ctx context.Context) (map[SourceType]int, error)
	CountSources(ctx context.Context) (int, error)
	AvgAuthorityScore(ctx context.Context) (float64, error)
}

// AnalysisRepo хранит результаты анализа сайтов.
type AnalysisRepo interface {
	CreateAnalysis(ctx context.Context, analysis WebsiteAnalysis) (WebsiteAnalysis, error)
	FinishAnalysis(ctx context.Context, analysis WebsiteAnalysis) error
	LatestCompletedAnalysis(ctx context.Context, domain string, since time.Time) (*WebsiteAnalysis, error)
	AnalysisByID(ctx context.Context, id int64) (*WebsiteAnalysis, error)
	CountAnalyses(ctx context.Context) (int, error)
}

// StatsRepo читает сводные счётчики по накопленным данным.
type StatsRepo interface {
	TrackingTotals(ctx context.Context) (conversations, messages, mentions int, err error)
	PlatformBreakdown(ctx context.Context) (map[Platform]int, error)
	CaptureDateRange(ctx context.Context) (earliest, latest *time.Time, err error)
}

// Cache дедуплицирует действия по TTL-ключу.
type Cache interface {
	// Once выполняет fn, только если ключ ещё не занят. Ошибка fn
	// освобождает ключ для повторной попытки.
	Once(key string, ttl time.Duration, fn func() error) error
}
