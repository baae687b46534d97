package novelty

import (
	"fmt"
	"time"

	"github.com/dmarkin/news-pulse/internal/models"
	"github.com/dmarkin/news-pulse/internal/processing"
)

// Scorer computes similarity between two normalized texts.
type Scorer func(a, b string) (float64, error)

// Evaluator scores how novel an article is against recent history.
type Evaluator struct {
	lookbackDays int
	scorer       Scorer
}

// NewEvaluator validates the lookback window and builds an evaluator.
func NewEvaluator(lookbackDays int, scorer Scorer) (*Evaluator, error) {
	if lookbackDays <= 0 {
		return nil, fmt.Errorf("lookback must be positive, got %d days", lookbackDays)
	}
	if scorer == nil {
		scorer = func(a, b string) (float64, error) { return processing.Ratio(a, b), nil }
	}
	return &Evaluator{lookbackDays: lookbackDays, scorer: scorer}, nil
}

// ScorerFunc exposes the configured scorer so callers can build a
// second evaluator with a different window over the same scoring.
func (e *Evaluator) ScorerFunc() Scorer { return e.scorer }

// Evaluate compares the candidate against every prior article in the
// lookback window and returns a NoveltyScore. An empty window means
// nothing to be similar to, so the article scores 1.0 and classifies
// highly_novel: that is the intended cold-start behavior, not a gap.
func (e *Evaluator) Evaluate(candidate models.Article, history []models.Article, now time.Time) models.NoveltyScore {
	cutoff := candidate.PublishedAt.AddDate(0, 0, -e.lookbackDays)

	maxSim := 0.0
	mostSimilar := ""

	if candidate.NormalizedText != "" {
		for _, prior := range history {
			if prior.ID == candidate.ID || prior.NormalizedText == "" {
				continue
			}
			if !prior.PublishedAt.Before(candidate.PublishedAt) || prior.PublishedAt.Before(cutoff) {
				continue
			}
			sim, err := e.scorer(candidate.NormalizedText, prior.NormalizedText)
			if err != nil {
				continue
			}
			if sim > maxSim || (sim == maxSim && mostSimilar != "" && prior.ID < mostSimilar) {
				maxSim = sim
				mostSimilar = prior.ID
			}
		}
	}

	score := 1 - maxSim
	if score < 0 {
		score = 0
	}
	class := Classify(score)

	return models.NoveltyScore{
		ArticleID:     candidate.ID,
		LookbackDays:  e.lookbackDays,
		MaxSimilarity: maxSim,
		Score:         score,
		Class:         class,
		MostSimilarID: mostSimilar,
		Reason:        reason(class, maxSim),
		EvaluatedAt:   now,
	}
}

// Classify buckets a novelty score; bounds follow the lower-inclusive
// convention used by the trend thresholds.
func Classify(score float64) models.NoveltyClass {
	switch {
	case score >= 0.8:
		return models.HighlyNovel
	case score >= 0.6:
		return models.ModeratelyNovel
	case score >= 0.4:
		return models.SomewhatNovel
	default:
		return models.Recycled
	}
}

func reason(class models.NoveltyClass, maxSim float64) string {
	switch class {
	case models.HighlyNovel:
		return "genuinely new information not covered in recent articles"
	case models.ModeratelyNovel:
		return "adds new perspective or details to an ongoing story"
	case models.SomewhatNovel:
		return "updates an existing story with some new information"
	default:
		return fmt.Sprintf("largely similar to previous coverage (%.0f%% similar)", maxSim*100)
	}
}
