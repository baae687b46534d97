package dedupe_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmarkin/news-pulse/internal/dedupe"
	"github.com/dmarkin/news-pulse/internal/models"
)

func article(id, text string, credibility float64, published time.Time) models.Article {
	return models.Article{
		ID:                id,
		Body:              text,
		NormalizedText:    text,
		SourceCredibility: credibility,
		PublishedAt:       published,
	}
}

// fixedScorer looks up similarity from a static table, 0 otherwise.
func fixedScorer(table map[string]float64) dedupe.Scorer {
	return func(a, b string) (float64, error) {
		if s, ok := table[a+"|"+b]; ok {
			return s, nil
		}
		if s, ok := table[b+"|"+a]; ok {
			return s, nil
		}
		return 0, nil
	}
}

func TestClusterGroupsAboveThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := article("a", "fed raises rates", 0.9, now)
	b := article("b", "federal reserve raises interest rates", 0.95, now.Add(time.Hour))
	c := article("c", "local team wins championship", 0.5, now)

	scorer := fixedScorer(map[string]float64{
		a.NormalizedText + "|" + b.NormalizedText: 0.9,
		a.NormalizedText + "|" + c.NormalizedText: 0.5,
		b.NormalizedText + "|" + c.NormalizedText: 0.5,
	})

	eng, err := dedupe.NewEngine(0.85, models.PreferCredible, scorer)
	require.NoError(t, err)

	clusters := eng.Cluster([]models.Article{a, b, c})
	require.Len(t, clusters, 1)
	require.Equal(t, []string{"a", "b"}, clusters[0].MemberIDs)
	require.Equal(t, "b", clusters[0].RepresentativeID) // higher credibility
}

func TestClusterIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	batch := []models.Article{
		article("x1", "alpha beta gamma delta epsilon", 0.5, now),
		article("x2", "alpha beta gamma delta epsilon zeta", 0.5, now),
		article("x3", "unrelated coverage of something else", 0.5, now),
	}

	eng, err := dedupe.NewEngine(0.85, models.PreferComplete, nil)
	require.NoError(t, err)

	first := eng.Cluster(batch)
	// Reversed input order must not change the result.
	reversed := []models.Article{batch[2], batch[1], batch[0]}
	second := eng.Cluster(reversed)

	require.Equal(t, first, second)
	require.Len(t, first, 1)
	require.Equal(t, "x2", first[0].RepresentativeID) // longest text
	require.NotEmpty(t, first[0].ID)
	require.Equal(t, first[0].ID, second[0].ID)
}

func TestClusterSingleLinkTransitivity(t *testing.T) {
	now := time.Now().UTC()
	a := article("a", "ta", 0.5, now)
	b := article("b", "tb", 0.5, now)
	c := article("c", "tc", 0.5, now)

	// a~b and b~c above threshold, a~c below: single-link joins all three.
	scorer := fixedScorer(map[string]float64{
		"ta|tb": 0.9,
		"tb|tc": 0.9,
		"ta|tc": 0.2,
	})

	eng, err := dedupe.NewEngine(0.85, models.PreferCredible, scorer)
	require.NoError(t, err)

	clusters := eng.Cluster([]models.Article{a, b, c})
	require.Len(t, clusters, 1)
	require.Equal(t, []string{"a", "b", "c"}, clusters[0].MemberIDs)
}

func TestClusterScorerErrorMeansNoMatch(t *testing.T) {
	now := time.Now().UTC()
	failing := dedupe.Scorer(func(a, b string) (float64, error) {
		return 0, errors.New("malformed text")
	})

	eng, err := dedupe.NewEngine(0.85, models.PreferCredible, failing)
	require.NoError(t, err)

	clusters := eng.Cluster([]models.Article{
		article("a", "same text", 0.5, now),
		article("b", "same text", 0.5, now),
	})
	require.Empty(t, clusters)
}

func TestClusterEmptyTextExcluded(t *testing.T) {
	now := time.Now().UTC()
	eng, err := dedupe.NewEngine(0.85, models.PreferCredible, nil)
	require.NoError(t, err)

	clusters := eng.Cluster([]models.Article{
		article("a", "", 0.5, now),
		article("b", "", 0.5, now),
	})
	require.Empty(t, clusters)
}

func TestClusterCombineStrategy(t *testing.T) {
	now := time.Now().UTC()
	a := article("a", "The fed raised rates. Markets reacted.", 0.9, now)
	a.SourceName = "wire"
	b := article("b", "The fed raised rates. Analysts were surprised.", 0.95, now)
	b.SourceName = "paper"

	scorer := fixedScorer(map[string]float64{
		a.NormalizedText + "|" + b.NormalizedText: 0.9,
	})

	eng, err := dedupe.NewEngine(0.85, models.Combine, scorer)
	require.NoError(t, err)

	clusters := eng.Cluster([]models.Article{a, b})
	require.Len(t, clusters, 1)

	got := clusters[0]
	require.True(t, got.Combined)
	require.Equal(t, 1, got.DuplicateCount)
	require.Equal(t, []string{"paper", "wire"}, got.Sources)
	require.Equal(t, "The fed raised rates. Markets reacted. Analysts were surprised.", got.CombinedBody)
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	_, err := dedupe.NewEngine(0, models.PreferCredible, nil)
	require.Error(t, err)

	_, err = dedupe.NewEngine(1.5, models.PreferCredible, nil)
	require.Error(t, err)

	_, err = dedupe.NewEngine(0.85, models.MergeStrategy("bogus"), nil)
	require.Error(t, err)
}
