package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_Keywords(t *testing.T) {
	tag := Analyze("Latest AI News about GPT models")

	assert.Equal(t, []string{"latest", "news", "about", "gpt", "models"}, tag.Keywords)
}

func TestAnalyze_DropsShortTokens(t *testing.T) {
	tag := Analyze("go vs js on io")

	assert.Empty(t, tag.Keywords)
}

func TestAnalyze_DeduplicatesKeywords(t *testing.T) {
	tag := Analyze("news news news today")

	assert.Equal(t, []string{"news", "today"}, tag.Keywords)
}

func TestAnalyze_Intent(t *testing.T) {
	cases := []struct {
		query  string
		intent Intent
	}{
		{"what is a goroutine", IntentQuestion},
		{"golang generics?", IntentQuestion},
		{"search for pizza places", IntentSearch},
		{"latest market headlines", IntentCurrent},
		{"top rated laptops", IntentRanking},
		{"quantum entanglement overview", IntentGeneral},
	}

	for _, tc := range cases {
		tag := Analyze(tc.query)
		assert.Equal(t, tc.intent, tag.Intent, "query: %s", tc.query)
	}
}

func TestAnalyze_IntentFirstMatchWins(t *testing.T) {
	// Matches both question and current rules; question is checked first.
	tag := Analyze("what is the latest golang release")

	assert.Equal(t, IntentQuestion, tag.Intent)
}

func TestAnalyze_Category(t *testing.T) {
	cases := []struct {
		query    string
		category Category
	}{
		{"golang programming tips", CategoryTech},
		{"machine learning pipelines", CategoryAI},
		{"startup revenue multiples", CategoryBusiness},
		{"election news roundup", CategoryNews},
		{"steam summer sale games", CategoryGaming},
		{"gardening in spring", CategoryGeneral},
	}

	for _, tc := range cases {
		tag := Analyze(tc.query)
		assert.Equal(t, tc.category, tag.Category, "query: %s", tc.query)
	}
}

func TestAnalyze_EmptyQuery(t *testing.T) {
	tag := Analyze("")

	assert.Empty(t, tag.Keywords)
	assert.Equal(t, IntentGeneral, tag.Intent)
	assert.Equal(t, CategoryGeneral, tag.Category)
}
