package domain

import "strings"

// Platform описывает площадку, на которой был записан диалог.
type Platform string

const (
	PlatformChatGPT    Platform = "chatgpt"
	PlatformClaude     Platform = "claude"
	PlatformGemini     Platform = "gemini"
	PlatformPerplexity Platform = "perplexity"
	PlatformCopilot    Platform = "copilot"
	PlatformOther      Platform = "other"
)

// ParsePlatform разбирает строку площадки. Неизвестные значения сводятся к PlatformOther.
func ParsePlatform(s string) Platform {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformChatGPT:
		return PlatformChatGPT
	case PlatformClaude:
		return PlatformClaude
	case PlatformGemini:
		return PlatformGemini
	case PlatformPerplexity:
		return PlatformPerplexity
	case PlatformCopilot:
		return PlatformCopilot
	default:
		return PlatformOther
	}
}

// MessageRole описывает роль автора сообщения.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ParseMessageRole разбирает роль сообщения. Неизвестные значения сводятся к RoleUser.
func ParseMessageRole(s string) MessageRole {
	switch MessageRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAssistant:
		return RoleAssistant
	case RoleSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}

// MentionType классифицирует характер упоминания бренда.
type MentionType string

const (
	MentionDirect         MentionType = "direct"
	MentionIndirect       MentionType = "indirect"
	MentionComparison     MentionType = "comparison"
	MentionRecommendation MentionType = "recommendation"
	MentionNegative       MentionType = "negative"
)

// CitationType классифицирует вид цитирования источника.
type CitationType string

const (
	CitationURL      CitationType = "url"
	CitationDomain   CitationType = "domain"
	CitationNamed    CitationType = "named"
	CitationImplicit CitationType = "implicit"
)

// SourceType категоризирует домен-источник.
type SourceType string

const (
	SourceGov       SourceType = "gov"
	SourceEdu       SourceType = "edu"
	SourceNews      SourceType = "news"
	SourceAcademic  SourceType = "academic"
	SourceSocial    SourceType = "social"
	SourceDocs      SourceType = "docs"
	SourceEcommerce SourceType = "ecommerce"
	SourceWebsite   SourceType = "website"
	SourceUnknown   SourceType = "unknown"
)

// AnalysisStatus описывает состояние анализа сайта.
type AnalysisStatus string

const (
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)
