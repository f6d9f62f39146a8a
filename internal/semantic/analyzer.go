package semantic

import (
	"regexp"
	"strings"
)

// Intent classifies what the user is trying to do with a query.
type Intent string

const (
	IntentQuestion Intent = "question"
	IntentSearch   Intent = "search"
	IntentCurrent  Intent = "current"
	IntentRanking  Intent = "ranking"
	IntentGeneral  Intent = "general"
)

// Category is a coarse topical bucket for a query.
type Category string

const (
	CategoryTech     Category = "tech"
	CategoryAI       Category = "ai"
	CategoryBusiness Category = "business"
	CategoryNews     Category = "news"
	CategoryGaming   Category = "gaming"
	CategoryGeneral  Category = "general"
)

// Tag is the derived semantic description of a query. It is immutable
// once computed and recomputed per query rather than cached on its own.
type Tag struct {
	Keywords []string `json:"keywords"`
	Intent   Intent   `json:"intent"`
	Category Category `json:"category"`
}

type intentRule struct {
	pattern *regexp.Regexp
	intent  Intent
}

var (
	// First match wins, checked in order.
	intentRules = []intentRule{
		{regexp.MustCompile(`^(who|what|when|where|why|how|is|are|can|does|do)\b|\?`), IntentQuestion},
		{regexp.MustCompile(`\b(search|find|look ?up|show me)\b`), IntentSearch},
		{regexp.MustCompile(`\b(latest|today|now|current|recent|breaking|live)\b`), IntentCurrent},
		{regexp.MustCompile(`\b(best|top|greatest|ranked|ranking|rated)\b`), IntentRanking},
	}

	categoryOrder = []Category{CategoryTech, CategoryAI, CategoryBusiness, CategoryNews, CategoryGaming}

	categoryKeywords = map[Category][]string{
		CategoryTech:     {"programming", "software", "code", "developer", "computer", "golang", "javascript", "python", "database", "linux", "cloud", "api"},
		CategoryAI:       {"artificial", "intelligence", "machine", "learning", "neural", "model", "llm", "gpt", "chatbot", "openai"},
		CategoryBusiness: {"market", "stock", "startup", "finance", "company", "revenue", "economy", "investment", "business"},
		CategoryNews:     {"news", "headline", "headlines", "politics", "election", "weather", "world"},
		CategoryGaming:   {"game", "games", "gaming", "esports", "console", "steam", "playstation", "xbox", "nintendo"},
	}
)

// Analyze derives keywords, intent, and category from a raw query.
// It is pure and deterministic; an empty query yields an empty keyword
// set with general intent and category.
func Analyze(query string) Tag {
	lowered := strings.ToLower(strings.TrimSpace(query))

	tag := Tag{
		Keywords: extractKeywords(lowered),
		Intent:   IntentGeneral,
		Category: CategoryGeneral,
	}

	for _, rule := range intentRules {
		if rule.pattern.MatchString(lowered) {
			tag.Intent = rule.intent
			break
		}
	}

	tag.Category = detectCategory(tag.Keywords)
	return tag
}

// extractKeywords lowercases, splits on whitespace, and discards tokens
// of length <= 2. Duplicate tokens are collapsed, original order kept.
func extractKeywords(lowered string) []string {
	seen := make(map[string]bool)
	keywords := make([]string, 0)

	for _, token := range strings.Fields(lowered) {
		if len(token) <= 2 || seen[token] {
			continue
		}
		seen[token] = true
		keywords = append(keywords, token)
	}

	return keywords
}

func detectCategory(keywords []string) Category {
	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		set[kw] = true
	}

	for _, cat := range categoryOrder {
		for _, kw := range categoryKeywords[cat] {
			if set[kw] {
				return cat
			}
		}
	}

	return CategoryGeneral
}
