package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"brand-radar/internal/domain"
)

const (
	urlConfidence    = 0.95
	domainConfidence = 0.85
	namedConfidence  = 0.7

	namedAuthorityScore = 50.0

	namedSourceMinLen = 3
	namedSourceMaxLen = 50
)

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	domainPattern = regexp.MustCompile(`(?i)(?:according to |source: |from |via |per |cited by )([a-zA-Z0-9][-a-zA-Z0-9]*(?:\.[a-zA-Z]{2,})+)`)
	namedPattern  = regexp.MustCompile(`(?m)(?:according to |source: |from |via )([A-Z][a-zA-Z\s]+?)(?:,|\.|;|$)`)
)

// Citations извлекает цитирования источников тремя независимыми проходами:
// прямые URL, упоминания доменов после вводных фраз и именованные источники.
type Citations struct {
	classifier domain.SourceClassifier
}

var _ domain.CitationExtractor = (*Citations)(nil)

// NewCitations создаёт экстрактор цитирований.
func NewCitations(classifier domain.SourceClassifier) *Citations {
	return &Citations{classifier: classifier}
}

// Extract возвращает все найденные цитирования. Совпадения разных проходов
// могут пересекаться и не дедуплицируются.
func (c *Citations) Extract(message domain.Message) []domain.Citation {
	text := message.Content
	var citations []domain.Citation

	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		rawURL := text[loc[0]:loc[1]]
		host := DomainFromURL(rawURL)
		if host == "" {
			continue
		}
		_, authority := c.classifier.Classify(host)
		citations = append(citations, domain.Citation{
			ConversationID: message.ConversationID,
			MessageID:      message.ID,
			SourceURL:      rawURL,
			SourceDomain:   host,
			Type:           domain.CitationURL,
			AuthorityScore: authority,
			Confidence:     urlConfidence,
			Context:        citationContext(text, loc[0], loc[1]),
			Position:       loc[0],
		})
	}

	for _, loc := range domainPattern.FindAllStringSubmatchIndex(text, -1) {
		host := domain.NormalizeDomain(text[loc[2]:loc[3]])
		_, authority := c.classifier.Classify(host)
		citations = append(citations, domain.Citation{
			ConversationID: message.ConversationID,
			MessageID:      message.ID,
			SourceDomain:   host,
			Type:           domain.CitationDomain,
			AuthorityScore: authority,
			Confidence:     domainConfidence,
			Context:        citationContext(text, loc[0], loc[1]),
			Position:       loc[0],
		})
	}

	for _, loc := range namedPattern.FindAllStringSubmatchIndex(text, -1) {
		name := strings.TrimSpace(text[loc[2]:loc[3]])
		if len(name) < namedSourceMinLen || len(name) > namedSourceMaxLen {
			continue
		}
		citations = append(citations, domain.Citation{
			ConversationID: message.ConversationID,
			MessageID:      message.ID,
			SourceName:     name,
			Type:           domain.CitationNamed,
			AuthorityScore: namedAuthorityScore,
			Confidence:     namedConfidence,
			Context:        citationContext(text, loc[0], loc[1]),
			Position:       loc[0],
		})
	}

	return citations
}

func citationContext(text string, start, end int) string {
	ctxStart, ctxEnd := window(text, start, end, contextWindow)
	return strings.TrimSpace(text[ctxStart:ctxEnd])
}

// DomainFromURL выделяет нормализованный домен из URL. Пустая строка означает,
// что домен извлечь не удалось.
func DomainFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return domain.NormalizeDomain(parsed.Hostname())
}
