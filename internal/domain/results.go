package domain

import "time"

// UploadResult содержит итоги обработки пакета диалогов.
type UploadResult struct {
	Received           int      `json:"received"`
	Processed          int      `json:"processed"`
	BrandMentionsFound int      `json:"brand_mentions_found"`
	Errors             []string `json:"errors"`
}

// VisibilityQuery описывает параметры запроса видимости бренда.
type VisibilityQuery struct {
	Brand    string
	Start    time.Time
	End      time.Time
	Platform Platform
}

// VisibilityTrendItem описывает одну точку тренда видимости.
type VisibilityTrendItem struct {
	Date         string  `json:"date"`
	Score        float64 `json:"score"`
	MentionCount int     `json:"mention_count"`
	Sentiment    float64 `json:"sentiment"`
}

// VisibilityResult содержит данные о видимости бренда за период.
type VisibilityResult struct {
	Brand         string                `json:"brand"`
	CurrentScore  float64               `json:"current_score"`
	PreviousScore *float64              `json:"previous_score,omitempty"`
	ChangePercent *float64              `json:"change_percent,omitempty"`
	Trend         []VisibilityTrendItem `json:"trend"`
	TotalMentions int                   `json:"total_mentions"`
	AvgSentiment  float64               `json:"avg_sentiment"`
	PeriodDays    int                   `json:"period_days"`
}

// RankingQuery описывает параметры запроса рейтинга бренда.
type RankingQuery struct {
	Brand       string
	Competitors []string
	Start       time.Time
	End         time.Time
	Limit       int
}

// RankingItem описывает позицию бренда в рейтинге.
type RankingItem struct {
	BrandName    string   `json:"brand_name"`
	Score        float64  `json:"score"`
	Rank         int      `json:"rank"`
	MentionCount int      `json:"mention_count"`
	Trend        string   `json:"trend"`
	Change       *float64 `json:"change,omitempty"`
}

// RankingResult содержит рейтинг бренда и его конкурентов.
type RankingResult struct {
	Brand       string        `json:"brand"`
	BrandRank   int           `json:"brand_rank"`
	BrandScore  float64       `json:"brand_score"`
	Rankings    []RankingItem `json:"rankings"`
	TotalBrands int           `json:"total_brands"`
	Period      string        `json:"period"`
}

// TrendInfo содержит направление и величину изменения балла между периодами.
type TrendInfo struct {
	Direction string  `json:"direction"`
	Change    float64 `json:"change"`
}

// TrackingStats содержит сводную статистику по накопленным данным.
type TrackingStats struct {
	TotalConversations int               `json:"total_conversations"`
	TotalMessages      int               `json:"total_messages"`
	TotalBrandMentions int               `json:"total_brand_mentions"`
	TotalBrandsTracked int               `json:"total_brands_tracked"`
	Platforms          map[string]int    `json:"platforms"`
	DateRange          map[string]string `json:"date_range"`
}

// ExtractResult содержит итоги разового извлечения цитирований из текста.
type ExtractResult struct {
	CitationsFound int        `json:"citations_found"`
	Citations      []Citation `json:"citations"`
	SourcesUpdated int        `json:"sources_updated"`
}

// SourceItem описывает домен-источник в выдаче обзора цитирований.
type SourceItem struct {
	ID             int64     `json:"id"`
	Domain         string    `json:"domain"`
	DisplayName    string    `json:"display_name,omitempty"`
	SourceType     string    `json:"source_type"`
	AuthorityScore float64   `json:"authority_score"`
	CitationCount  int       `json:"citation_count"`
	AvgSentiment   float64   `json:"avg_sentiment"`
	FirstCitedAt   time.Time `json:"first_cited_at"`
	LastCitedAt    time.Time `json:"last_cited_at"`
	IsVerified     bool      `json:"is_verified"`
}

// DomainCount содержит количество цитирований домена.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// CitationDiscoveryResult содержит обзор источников, цитируемых ассистентами.
type CitationDiscoveryResult struct {
	TotalCitations int            `json:"total_citations"`
	TotalSources   int            `json:"total_sources"`
	Sources        []SourceItem   `json:"sources"`
	TopDomains     []DomainCount  `json:"top_domains"`
	ByType         map[string]int `json:"by_type"`
	BySourceType   map[string]int `json:"by_source_type"`
	Period         string         `json:"period"`
}

// WebsiteAnalysisResult содержит результат анализа сайта.
type WebsiteAnalysisResult struct {
	ID              int64             `json:"id"`
	URL             string            `json:"url"`
	Domain          string            `json:"domain"`
	Status          string            `json:"status"`
	Progress        int               `json:"progress"`
	CitationCount   int               `json:"citation_count"`
	AvgSentiment    float64           `json:"avg_sentiment"`
	Contexts        []CitationContext `json:"citation_contexts"`
	Recommendations []Recommendation  `json:"recommendations"`
	PagesAnalyzed   int               `json:"pages_analyzed"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
}

// CitationStats содержит сводную статистику по цитированиям.
type CitationStats struct {
	TotalCitations    int            `json:"total_citations"`
	TotalSources      int            `json:"total_sources"`
	TotalAnalyses     int            `json:"total_analyses"`
	TopSourceTypes    map[string]int `json:"top_source_types"`
	TopCitationTypes  map[string]int `json:"top_citation_types"`
	AvgAuthorityScore float64        `json:"avg_authority_score"`
	RecentCitations   int            `json:"recent_citations_count"`
}
