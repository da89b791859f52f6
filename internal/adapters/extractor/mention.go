package extractor

import (
	"strings"
	"unicode/utf8"

	"brand-radar/internal/domain"
)

const (
	mentionConfidence = 0.8
	contextWindow     = 100
	classifyWindow    = 50
)

// Наборы ключевых слов проверяются по порядку: рекомендация, сравнение, негатив.
var (
	recommendCues = []string{
		"recommend", "suggest", "try", "consider", "best",
		"top pick", "great choice", "highly rated",
	}
	compareCues = []string{
		"compared to", "versus", "vs", "better than", "worse than",
		"similar to", "alternative to", "like",
	}
	negativeCues = []string{
		"not recommend", "avoid", "issue", "problem", "bad",
		"poor", "disappointing", "don't",
	}
)

// Mentions ищет упоминания брендов подстрочным поиском по ключевым словам.
type Mentions struct{}

var _ domain.MentionExtractor = (*Mentions)(nil)

// NewMentions создаёт экстрактор упоминаний.
func NewMentions() *Mentions {
	return &Mentions{}
}

// Extract возвращает не более одного упоминания на бренд: поиск идёт по имени
// и алиасам по порядку и останавливается на первом совпадении в сообщении.
func (m *Mentions) Extract(message domain.Message, brands []domain.Brand) []domain.BrandMention {
	contentLower := strings.ToLower(message.Content)

	var mentions []domain.BrandMention
	for _, brand := range brands {
		for _, name := range brand.CandidateNames() {
			pos := strings.Index(contentLower, strings.ToLower(name))
			if pos < 0 {
				continue
			}
			mentions = append(mentions, domain.BrandMention{
				ConversationID:  message.ConversationID,
				MessageID:       message.ID,
				BrandName:       brand.Name,
				BrandNormalized: brand.NormalizedName,
				Type:            classifyMention(message.Content, pos, name),
				Position:        pos,
				Context:         mentionContext(message.Content, pos, len(name)),
				Sentiment:       0.0,
				Confidence:      mentionConfidence,
			})
			break
		}
	}
	return mentions
}

func mentionContext(content string, pos, nameLen int) string {
	start, end := window(content, pos, pos+nameLen, contextWindow)
	return strings.TrimSpace(content[start:end])
}

func classifyMention(content string, pos int, name string) domain.MentionType {
	start, end := window(content, pos, pos+len(name), classifyWindow)
	w := strings.ToLower(content[start:end])

	for _, cue := range recommendCues {
		if strings.Contains(w, cue) {
			return domain.MentionRecommendation
		}
	}
	for _, cue := range compareCues {
		if strings.Contains(w, cue) {
			return domain.MentionComparison
		}
	}
	for _, cue := range negativeCues {
		if strings.Contains(w, cue) {
			return domain.MentionNegative
		}
	}
	return domain.MentionDirect
}

// window расширяет интервал [from, to) на radius байт в обе стороны и сдвигает
// границы к началу руны, чтобы не разрезать многобайтовые символы.
func window(content string, from, to, radius int) (int, int) {
	start := from - radius
	if start < 0 {
		start = 0
	}
	end := to + radius
	if end > len(content) {
		end = len(content)
	}
	return snapToRuneStart(content, start), snapToRuneStart(content, end)
}

func snapToRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
