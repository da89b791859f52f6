package domain

import "time"

// Brand описывает отслеживаемый бренд.
type Brand struct {
	ID             int64
	Name           string
	NormalizedName string
	Category       string
	Description    string
	Website        string
	Aliases        []string
	IsCompetitor   bool
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CandidateNames возвращает список имён для поиска: имя бренда и алиасы по порядку.
func (b Brand) CandidateNames() []string {
	names := make([]string, 0, len(b.Aliases)+1)
	names = append(names, b.Name)
	names = append(names, b.Aliases...)
	return names
}

// Conversation представляет загруженный диалог пользователя с ИИ-ассистентом.
type Conversation struct {
	ID           string
	SessionID    string
	Platform     Platform
	InitialQuery string
	Language     string
	Region       string
	UserAgent    string
	CapturedAt   time.Time
	CreatedAt    time.Time
	Messages     []Message
}

// Message представляет одно сообщение диалога.
type Message struct {
	ID             int64
	ConversationID string
	Role           MessageRole
	Content        string
	Sequence       int
	Timestamp      time.Time
}

// BrandMention описывает найденное упоминание бренда в ответе ассистента.
type BrandMention struct {
	ID              int64
	ConversationID  string
	MessageID       int64
	BrandName       string
	BrandNormalized string
	Type            MentionType
	Position        int
	Sentiment       float64
	Confidence      float64
	Context         string
	CreatedAt       time.Time
}

// Citation описывает ссылку на внешний источник в ответе ассистента.
type Citation struct {
	ID             int64
	ConversationID string
	MessageID      int64
	SourceURL      string
	SourceDomain   string
	SourceName     string
	Type           CitationType
	AuthorityScore float64
	Confidence     float64
	Context        string
	Position       int
	CreatedAt      time.Time
}

// CitationSource хранит агрегат по домену-источнику за всё время наблюдения.
type CitationSource struct {
	ID               int64
	Domain           string
	NormalizedDomain string
	DisplayName      string
	SourceType       SourceType
	AuthorityScore   float64
	CitationCount    int
	AvgSentiment     float64
	IsActive         bool
	IsVerified       bool
	FirstCitedAt     time.Time
	LastCitedAt      time.Time
}

// VisibilityScore хранит рассчитанный балл видимости бренда за день.
type VisibilityScore struct {
	ID                int64
	BrandName         string
	BrandNormalized   string
	Date              time.Time
	Platform          Platform
	Score             float64
	MentionCount      int
	AvgPosition       float64
	AvgSentiment      float64
	FrequencyScore    float64
	PositionScore     float64
	SentimentScore    float64
	TypeScore         float64
	ConversationCount int
	CreatedAt         time.Time
}

// MentionStats содержит агрегаты упоминаний бренда за период.
type MentionStats struct {
	BrandNormalized string
	MentionCount    int
	AvgPosition     float64
	AvgSentiment    float64
}

// WebsiteAnalysis хранит результат анализа сайта на предмет цитирования ИИ.
type WebsiteAnalysis struct {
	ID              int64
	URL             string
	Domain          string
	Depth           int
	Status          AnalysisStatus
	Progress        int
	CitationCount   int
	AvgSentiment    float64
	Contexts        []CitationContext
	Recommendations []Recommendation
	PagesAnalyzed   int
	ErrorMessage    string
	StartedAt       time.Time
	CompletedAt     *time.Time
}

// CitationContext описывает одно цитирование домена вместе с исходным запросом.
type CitationContext struct {
	Query           string    `json:"query"`
	ResponseSnippet string    `json:"response_snippet"`
	Sentiment       float64   `json:"sentiment"`
	CitationType    string    `json:"citation_type"`
	Platform        string    `json:"platform,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Recommendation описывает рекомендацию по улучшению видимости сайта.
type Recommendation struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Impact      string `json:"impact"`
	Effort      string `json:"effort"`
}
