package sentiment_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmarkin/news-pulse/internal/models"
	"github.com/dmarkin/news-pulse/internal/sentiment"
)

func scored(id, category string, published time.Time, pos, neg float64) models.Article {
	return models.Article{
		ID:          id,
		Category:    category,
		PublishedAt: published,
		Sentiment: &models.SentimentScore{
			Positive: pos,
			Negative: neg,
			Neutral:  1 - pos - neg,
			Compound: pos - neg,
		},
	}
}

func TestAggregateScopes(t *testing.T) {
	tr, err := sentiment.NewTracker(0.05)
	require.NoError(t, err)

	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	articles := []models.Article{
		scored("a", "finance", day, 0.7, 0.1),
		scored("b", "finance", day, 0.1, 0.7),
		scored("c", "sports", day, 0.2, 0.2),
	}
	labels := map[string][]string{"a": {"rates"}, "b": {"rates"}}

	points := tr.Aggregate(articles, labels)

	byScope := make(map[string]models.SentimentPoint)
	for _, p := range points {
		byScope[p.Scope] = p
	}

	global := byScope[models.ScopeGlobal]
	require.Equal(t, 3, global.ArticleCount)
	require.Equal(t, 1, global.Positive)
	require.Equal(t, 1, global.Negative)
	require.Equal(t, 1, global.Neutral)

	finance := byScope[sentiment.ScopeCategory("finance")]
	require.Equal(t, 2, finance.ArticleCount)

	rates := byScope[sentiment.ScopeTopic("rates")]
	require.Equal(t, 2, rates.ArticleCount)
	require.Equal(t, "2026-03-10", rates.Date)
}

func TestAggregateSkipsUnscored(t *testing.T) {
	tr, err := sentiment.NewTracker(0.05)
	require.NoError(t, err)

	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	points := tr.Aggregate([]models.Article{
		{ID: "raw", PublishedAt: day},
	}, nil)
	require.Empty(t, points)
}

func TestAggregateDeterministicOrder(t *testing.T) {
	tr, err := sentiment.NewTracker(0.05)
	require.NoError(t, err)

	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	articles := []models.Article{
		scored("a", "finance", day, 0.7, 0.1),
		scored("b", "sports", day.Add(24*time.Hour), 0.1, 0.7),
	}

	first := tr.Aggregate(articles, nil)
	second := tr.Aggregate([]models.Article{articles[1], articles[0]}, nil)
	require.Equal(t, first, second)
}

func TestSummarizeOverallIsPerArticleMean(t *testing.T) {
	tr, err := sentiment.NewTracker(0.05)
	require.NoError(t, err)

	// Day one: 3 articles at 0.9 positive. Day two: 1 article at 0.1.
	// Per-article mean is (3*0.9 + 0.1) / 4 = 0.7; a mean of daily
	// means would give 0.5.
	points := []models.SentimentPoint{
		{Scope: "global", Date: "2026-03-09", ArticleCount: 3, SumPositive: 2.7, SumNegative: 0.15, SumNeutral: 0.15},
		{Scope: "global", Date: "2026-03-10", ArticleCount: 1, SumPositive: 0.1, SumNegative: 0.8, SumNeutral: 0.1},
	}

	got := tr.Summarize(points)
	require.Equal(t, 4, got.TotalArticles)
	require.InDelta(t, 0.7, got.Overall.Positive, 1e-9)
}

func TestSummarizeDirection(t *testing.T) {
	tr, err := sentiment.NewTracker(0.05)
	require.NoError(t, err)

	improving := []models.SentimentPoint{
		{Date: "2026-03-01", ArticleCount: 1, SumPositive: 0.1, SumNegative: 0.8},
		{Date: "2026-03-02", ArticleCount: 1, SumPositive: 0.5, SumNegative: 0.4},
		{Date: "2026-03-03", ArticleCount: 1, SumPositive: 0.8, SumNegative: 0.1},
	}
	require.Equal(t, models.SentimentImproving, tr.Summarize(improving).Direction)

	declining := []models.SentimentPoint{
		{Date: "2026-03-01", ArticleCount: 1, SumPositive: 0.8, SumNegative: 0.1},
		{Date: "2026-03-02", ArticleCount: 1, SumPositive: 0.5, SumNegative: 0.4},
		{Date: "2026-03-03", ArticleCount: 1, SumPositive: 0.1, SumNegative: 0.8},
	}
	require.Equal(t, models.SentimentDeclining, tr.Summarize(declining).Direction)

	flat := []models.SentimentPoint{
		{Date: "2026-03-01", ArticleCount: 1, SumPositive: 0.5, SumNegative: 0.4},
		{Date: "2026-03-02", ArticleCount: 1, SumPositive: 0.52, SumNegative: 0.4},
	}
	require.Equal(t, models.SentimentStable, tr.Summarize(flat).Direction)
}

func TestSummarizeEmptyWindow(t *testing.T) {
	tr, err := sentiment.NewTracker(0.05)
	require.NoError(t, err)

	got := tr.Summarize(nil)
	require.Equal(t, models.SentimentStable, got.Direction)
	require.Zero(t, got.TotalArticles)
}

func TestNewTrackerRejectsBadEpsilon(t *testing.T) {
	_, err := sentiment.NewTracker(0)
	require.Error(t, err)
}
