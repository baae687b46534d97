package analytics_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmarkin/news-pulse/internal/analytics"
	"github.com/dmarkin/news-pulse/internal/config"
	"github.com/dmarkin/news-pulse/internal/models"
	"github.com/dmarkin/news-pulse/internal/sentiment"
	"github.com/dmarkin/news-pulse/internal/store"
)

func testConfig() config.Analytics {
	return config.Analytics{
		SimilarityThreshold:   0.85,
		SimilarityMaxRunes:    1500,
		DedupBucketHours:      48,
		MergeStrategy:         models.PreferCredible,
		MinMentions:           5,
		RisingGrowthFloor:     0.25,
		ExplosiveGrowthFloor:  1.0,
		ExplosiveMentionFloor: 10,
		NoveltyLookbackDays:   7,
		SentimentWindowDays:   30,
		SentimentEpsilon:      0.05,
		BaselineWindowDays:    7,
		TopicRetentionDays:    30,
		TopicTopK:             5,
		TopicMinDocFreq:       2,
		WorkerPoolSize:        2,
	}
}

func newPipeline(t *testing.T, mem *store.Memory) *analytics.Pipeline {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	analyzer := sentiment.NewAnalyzer(nil, sentiment.NewLexicon(), log)
	p, err := analytics.New(testConfig(), mem, mem, mem, analyzer, log)
	require.NoError(t, err)
	return p
}

const sharedLede = "The Federal Reserve raised interest rates by a quarter point on Wednesday, citing persistent inflation pressures across the economy and signaling further increases ahead."

func seedNewsDay(t *testing.T, mem *store.Memory, now time.Time) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, mem.PutArticle(ctx, models.Article{
		ID:                "art-a",
		Title:             "Fed raises rates",
		Body:              sharedLede,
		SourceName:        "wire",
		SourceCredibility: 0.9,
		Category:          "finance",
		PublishedAt:       now.Add(-3 * time.Minute),
	}))
	require.NoError(t, mem.PutArticle(ctx, models.Article{
		ID:                "art-b",
		Title:             "Federal Reserve raises interest rates",
		Body:              "Officials confirmed the decision. " + sharedLede,
		SourceName:        "paper",
		SourceCredibility: 0.95,
		Category:          "finance",
		PublishedAt:       now.Add(-2 * time.Minute),
	}))
	require.NoError(t, mem.PutArticle(ctx, models.Article{
		ID:                "art-c",
		Title:             "Local team wins championship",
		Body:              "Fans celebrated downtown after a dramatic overtime final settled the season.",
		SourceName:        "local",
		SourceCredibility: 0.5,
		Category:          "sports",
		PublishedAt:       now.Add(-time.Minute),
	}))
}

func TestRunEndToEnd(t *testing.T) {
	mem := store.NewMemory()
	now := time.Now().UTC()
	seedNewsDay(t, mem, now)

	p := newPipeline(t, mem)
	ctx := context.Background()

	result, err := p.Run(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 3, result.Articles)
	require.Equal(t, 1, result.Clusters)

	clusters, err := mem.Clusters(ctx, now.Add(-48*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	require.Equal(t, []string{"art-a", "art-b"}, clusters[0].MemberIDs)
	require.Equal(t, "art-b", clusters[0].RepresentativeID) // higher credibility

	// Mention counting is per raw article: both cluster members count.
	records, err := mem.TopicRecords(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	var sawSharedTopic bool
	for _, r := range records {
		if r.MentionCount == 2 {
			sawSharedTopic = true
		}
	}
	require.True(t, sawSharedTopic, "expected a topic mentioned by both duplicate articles")

	// Everything is below min mentions, so nothing is trending.
	trending, err := p.Trending(ctx, 0, 10, 0)
	require.NoError(t, err)
	require.Empty(t, trending)

	// Earliest article has an empty lookback window: cold start.
	scoreA, err := mem.NoveltyScore(ctx, "art-a")
	require.NoError(t, err)
	require.Equal(t, 1.0, scoreA.Score)
	require.Equal(t, models.HighlyNovel, scoreA.Class)

	// The near-duplicate scores as recycled coverage.
	scoreB, err := mem.NoveltyScore(ctx, "art-b")
	require.NoError(t, err)
	require.Equal(t, models.Recycled, scoreB.Class)

	points, err := mem.SentimentPoints(ctx, models.ScopeGlobal, "", "")
	require.NoError(t, err)
	require.NotEmpty(t, points)
	total := 0
	for _, pt := range points {
		total += pt.ArticleCount
	}
	require.Equal(t, 3, total)
}

func TestRunIsIdempotent(t *testing.T) {
	mem := store.NewMemory()
	now := time.Now().UTC()
	seedNewsDay(t, mem, now)

	p := newPipeline(t, mem)
	ctx := context.Background()

	_, err := p.Run(ctx, now)
	require.NoError(t, err)
	first, err := mem.Clusters(ctx, now.Add(-48*time.Hour), now)
	require.NoError(t, err)
	firstTopics, err := mem.TopicRecords(ctx)
	require.NoError(t, err)

	_, err = p.Run(ctx, now)
	require.NoError(t, err)
	second, err := mem.Clusters(ctx, now.Add(-48*time.Hour), now)
	require.NoError(t, err)
	secondTopics, err := mem.TopicRecords(ctx)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, firstTopics, secondTopics)
}

func TestRunCancelledPersistsNothing(t *testing.T) {
	mem := store.NewMemory()
	now := time.Now().UTC()
	seedNewsDay(t, mem, now)

	p := newPipeline(t, mem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, now)
	require.Error(t, err)

	clusters, err := mem.Clusters(context.Background(), now.Add(-48*time.Hour), now)
	require.NoError(t, err)
	require.Empty(t, clusters)

	records, err := mem.TopicRecords(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestDeduplicateOverrides(t *testing.T) {
	mem := store.NewMemory()
	now := time.Now().UTC()
	seedNewsDay(t, mem, now)

	p := newPipeline(t, mem)
	ctx := context.Background()

	clusters, err := p.Deduplicate(ctx, now.Add(-48*time.Hour), now, 0, models.PreferComplete)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	require.Equal(t, models.PreferComplete, clusters[0].Strategy)
	require.Equal(t, "art-b", clusters[0].RepresentativeID) // longest text

	_, err = p.Deduplicate(ctx, now, now.Add(-time.Hour), 0, "")
	require.Error(t, err) // inverted bucket

	_, err = p.Deduplicate(ctx, now.Add(-time.Hour), now, 2.0, "")
	require.Error(t, err) // threshold out of range
}

func TestEvaluateNoveltyQuery(t *testing.T) {
	mem := store.NewMemory()
	now := time.Now().UTC()
	seedNewsDay(t, mem, now)

	p := newPipeline(t, mem)
	ctx := context.Background()

	score, err := p.EvaluateNovelty(ctx, "art-b", 7)
	require.NoError(t, err)
	require.Equal(t, "art-b", score.ArticleID)
	require.Equal(t, models.Recycled, score.Class)
	require.Equal(t, "art-a", score.MostSimilarID)

	stored, err := mem.NoveltyScore(ctx, "art-b")
	require.NoError(t, err)
	require.Equal(t, score.Class, stored.Class)

	_, err = p.EvaluateNovelty(ctx, "missing", 7)
	require.Error(t, err)
}

func TestSentimentTimelineQuery(t *testing.T) {
	mem := store.NewMemory()
	now := time.Now().UTC()
	seedNewsDay(t, mem, now)

	p := newPipeline(t, mem)
	ctx := context.Background()

	_, err := p.Run(ctx, now)
	require.NoError(t, err)

	summary, err := p.SentimentTimeline(ctx, "", 30)
	require.NoError(t, err)
	require.Equal(t, 3, summary.TotalArticles)
	require.InDelta(t, 1.0,
		summary.Overall.Positive+summary.Overall.Negative+summary.Overall.Neutral, 1e-9)

	// Unknown scope is empty data, not an error.
	empty, err := p.SentimentTimeline(ctx, "topic:nonexistent", 30)
	require.NoError(t, err)
	require.Zero(t, empty.TotalArticles)
	require.Equal(t, models.SentimentStable, empty.Direction)
}

func TestTopicTimelineUnknownTopicIsEmpty(t *testing.T) {
	mem := store.NewMemory()
	p := newPipeline(t, mem)

	got, err := p.TopicTimeline(context.Background(), "nonexistent", 7)
	require.NoError(t, err)
	require.Equal(t, "nonexistent", got.Label)
	require.Empty(t, got.Points)
	require.Zero(t, got.TotalMentions)
}
