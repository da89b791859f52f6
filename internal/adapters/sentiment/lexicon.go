package sentiment

import (
	"strings"

	"brand-radar/internal/domain"
)

// Словари тональности для оценки контекста упоминаний.
var (
	positiveWords = []string{
		"good", "great", "excellent", "love", "awesome", "fantastic",
		"helpful", "works", "solved", "success", "reliable", "recommended",
	}
	negativeWords = []string{
		"bad", "terrible", "awful", "hate", "broken", "error",
		"fail", "problem", "issue", "bug", "disappointing", "avoid",
	}
)

// Lexicon оценивает тональность текста по словарям положительных и
// отрицательных слов. Это отдельный этап обогащения: экстрактор упоминаний
// сам тональность не считает.
type Lexicon struct{}

var _ domain.SentimentAnalyzer = (*Lexicon)(nil)

// NewLexicon создаёт словарный анализатор тональности.
func NewLexicon() *Lexicon {
	return &Lexicon{}
}

// Score возвращает оценку в диапазоне [-1, 1]. Текст без маркеров даёт 0.
func (l *Lexicon) Score(text string) float64 {
	content := strings.ToLower(text)

	positive := 0
	for _, word := range positiveWords {
		positive += strings.Count(content, word)
	}
	negative := 0
	for _, word := range negativeWords {
		negative += strings.Count(content, word)
	}

	total := positive + negative
	if total == 0 {
		return 0.0
	}
	score := float64(positive-negative) / float64(total)
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}
