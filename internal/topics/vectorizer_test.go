package topics_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmarkin/news-pulse/internal/models"
	"github.com/dmarkin/news-pulse/internal/topics"
)

func tokenized(id string, tokens ...string) models.Article {
	return models.Article{ID: id, Tokens: tokens}
}

func TestLabelsDropRareTerms(t *testing.T) {
	v, err := topics.NewVectorizer(5, 2)
	require.NoError(t, err)

	corpus := []models.Article{
		tokenized("a", "rates", "inflation", "unicorn"),
		tokenized("b", "rates", "inflation"),
		tokenized("c", "rates", "championship"),
	}

	labels := v.Labels(corpus)
	// "unicorn" and "championship" appear in a single document each.
	require.NotContains(t, labels["a"], "unicorn")
	require.NotContains(t, labels["c"], "championship")
	require.Contains(t, labels["a"], "rates")
	require.Contains(t, labels["b"], "inflation")
}

func TestLabelsTopKAndDeterminism(t *testing.T) {
	v, err := topics.NewVectorizer(2, 1)
	require.NoError(t, err)

	corpus := []models.Article{
		tokenized("a", "rates", "rates", "rates", "inflation", "inflation", "fed"),
		tokenized("b", "fed"),
	}

	first := v.Labels(corpus)
	second := v.Labels(corpus)
	require.Equal(t, first, second)
	require.Len(t, first["a"], 2)
	require.Equal(t, "rates", first["a"][0])
}

func TestLabelsSkipsEmptyArticles(t *testing.T) {
	v, err := topics.NewVectorizer(3, 1)
	require.NoError(t, err)

	labels := v.Labels([]models.Article{
		tokenized("a", "rates"),
		tokenized("empty"),
	})
	require.Contains(t, labels, "a")
	require.NotContains(t, labels, "empty")
}

func TestLabelsShortTermsIgnored(t *testing.T) {
	v, err := topics.NewVectorizer(3, 1)
	require.NoError(t, err)

	labels := v.Labels([]models.Article{
		tokenized("a", "ai", "gdp", "up"),
		tokenized("b", "gdp"),
	})
	require.Equal(t, []string{"gdp"}, labels["a"])
}

func TestNewVectorizerRejectsBadConfig(t *testing.T) {
	_, err := topics.NewVectorizer(0, 2)
	require.Error(t, err)

	_, err = topics.NewVectorizer(5, 0)
	require.Error(t, err)
}
