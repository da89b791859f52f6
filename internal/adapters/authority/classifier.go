package authority

import (
	"strings"

	"brand-radar/internal/domain"
)

// Правила категоризации проверяются по порядку: суффиксы, затем наборы ключей.
var (
	newsKeywords = []string{
		"nytimes", "bbc", "reuters", "cnn", "washingtonpost",
		"theguardian", "forbes", "bloomberg", "wsj", "news",
	}
	academicKeywords = []string{
		"arxiv", "scholar", "pubmed", "researchgate", "jstor",
		"springer", "wiley", "nature.com", "science.org",
	}
	socialKeywords = []string{
		"twitter", "x.com", "facebook", "linkedin", "reddit",
		"instagram", "tiktok", "youtube",
	}
	docsKeywords = []string{
		"docs.", "documentation", "readme", "github.io",
		"developer.", "api.",
	}
	ecommerceKeywords = []string{
		"amazon", "ebay", "shopify", "etsy", "alibaba",
	}

	// Кураторский список доменов с повышенной авторитетностью.
	highAuthorityDomains = []string{
		"wikipedia.org", "github.com", "stackoverflow.com",
		"medium.com", "microsoft.com", "google.com", "apple.com",
	}
)

var baseScores = map[domain.SourceType]float64{
	domain.SourceGov:       90.0,
	domain.SourceEdu:       85.0,
	domain.SourceAcademic:  85.0,
	domain.SourceNews:      75.0,
	domain.SourceDocs:      70.0,
	domain.SourceWebsite:   50.0,
	domain.SourceEcommerce: 45.0,
	domain.SourceSocial:    40.0,
	domain.SourceUnknown:   30.0,
}

const (
	authorityBonus = 10.0
	maxAuthority   = 100.0
)

// Classifier категоризирует домены-источники и считает их авторитетность.
// Результат детерминирован: одному домену всегда соответствует одна оценка.
type Classifier struct{}

var _ domain.SourceClassifier = (*Classifier)(nil)

// New создаёт классификатор.
func New() *Classifier {
	return &Classifier{}
}

// Classify возвращает категорию домена и его авторитетность в диапазоне [0, 100].
func (c *Classifier) Classify(host string) (domain.SourceType, float64) {
	sourceType := ClassifyType(host)
	return sourceType, Score(host, sourceType)
}

// ClassifyType определяет категорию домена по первому сработавшему правилу.
func ClassifyType(host string) domain.SourceType {
	hostLower := strings.ToLower(host)

	switch {
	case strings.HasSuffix(hostLower, ".gov"):
		return domain.SourceGov
	case strings.HasSuffix(hostLower, ".edu"):
		return domain.SourceEdu
	case containsAny(hostLower, newsKeywords):
		return domain.SourceNews
	case containsAny(hostLower, academicKeywords):
		return domain.SourceAcademic
	case containsAny(hostLower, socialKeywords):
		return domain.SourceSocial
	case containsAny(hostLower, docsKeywords):
		return domain.SourceDocs
	case containsAny(hostLower, ecommerceKeywords):
		return domain.SourceEcommerce
	default:
		return domain.SourceWebsite
	}
}

// Score возвращает базовую оценку категории с бонусом за известные домены.
func Score(host string, sourceType domain.SourceType) float64 {
	score, ok := baseScores[sourceType]
	if !ok {
		score = baseScores[domain.SourceWebsite]
	}
	if containsAny(strings.ToLower(host), highAuthorityDomains) {
		score += authorityBonus
		if score > maxAuthority {
			score = maxAuthority
		}
	}
	return score
}

func containsAny(s string, keys []string) bool {
	for _, key := range keys {
		if strings.Contains(s, key) {
			return true
		}
	}
	return false
}
