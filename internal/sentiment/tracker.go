package sentiment

import (
	"fmt"
	"sort"

	"github.com/dmarkin/news-pulse/internal/models"
)

const dateLayout = "2006-01-02"

// Tracker aggregates per-article sentiment into daily timelines per
// scope and summarizes windows.
type Tracker struct {
	epsilon float64
}

// NewTracker builds a tracker. epsilon is the stable band for trend
// direction; zero or below is a configuration error.
func NewTracker(epsilon float64) (*Tracker, error) {
	if epsilon <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %v", epsilon)
	}
	return &Tracker{epsilon: epsilon}, nil
}

// ScopeCategory builds the scope key for a category timeline.
func ScopeCategory(category string) string { return "category:" + category }

// ScopeTopic builds the scope key for a topic timeline.
func ScopeTopic(label string) string { return "topic:" + label }

// Aggregate folds scored articles into SentimentPoints for the global
// scope, one scope per category, and one per topic label. Articles
// without a sentiment score are skipped. Output is sorted by scope then
// date, so identical input always aggregates identically.
func (t *Tracker) Aggregate(articles []models.Article, labels map[string][]string) []models.SentimentPoint {
	points := make(map[string]*models.SentimentPoint)

	accumulate := func(scope, date string, s models.SentimentScore) {
		key := scope + "|" + date
		p, ok := points[key]
		if !ok {
			p = &models.SentimentPoint{Scope: scope, Date: date}
			points[key] = p
		}
		switch dominant(s) {
		case "positive":
			p.Positive++
		case "negative":
			p.Negative++
		default:
			p.Neutral++
		}
		p.ArticleCount++
		p.SumPositive += s.Positive
		p.SumNegative += s.Negative
		p.SumNeutral += s.Neutral
	}

	for _, a := range articles {
		if a.Sentiment == nil {
			continue
		}
		date := a.PublishedAt.UTC().Format(dateLayout)
		accumulate(models.ScopeGlobal, date, *a.Sentiment)
		if a.Category != "" {
			accumulate(ScopeCategory(a.Category), date, *a.Sentiment)
		}
		for _, label := range labels[a.ID] {
			accumulate(ScopeTopic(label), date, *a.Sentiment)
		}
	}

	out := make([]models.SentimentPoint, 0, len(points))
	for _, p := range points {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Date < out[j].Date
	})
	return out
}

// Summary describes one scope's sentiment over a window.
type Summary struct {
	Points        []models.SentimentPoint `json:"timeline"`
	Overall       models.SentimentScore   `json:"overall_sentiment"`
	Direction     models.TrendDirection   `json:"trend_direction"`
	TotalArticles int                     `json:"total_articles"`
}

// Summarize computes the window mean and trend direction for a scope's
// points. Overall is the mean of per-article triples, not a mean of
// daily means, so heavy days are not underweighted. Direction compares
// the most recent third of the timeline against the earliest third.
func (t *Tracker) Summarize(points []models.SentimentPoint) Summary {
	ordered := make([]models.SentimentPoint, len(points))
	copy(ordered, points)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Date < ordered[j].Date })

	s := Summary{Points: ordered, Direction: models.SentimentStable}

	var sumPos, sumNeg, sumNeu float64
	for _, p := range ordered {
		s.TotalArticles += p.ArticleCount
		sumPos += p.SumPositive
		sumNeg += p.SumNegative
		sumNeu += p.SumNeutral
	}
	if s.TotalArticles == 0 {
		return s
	}

	n := float64(s.TotalArticles)
	s.Overall = models.SentimentScore{
		Positive: sumPos / n,
		Negative: sumNeg / n,
		Neutral:  sumNeu / n,
		Compound: (sumPos - sumNeg) / n,
		Model:    "aggregate",
	}

	s.Direction = t.direction(ordered)
	return s
}

// direction compares mean compound sentiment of the earliest and most
// recent thirds of the timeline.
func (t *Tracker) direction(ordered []models.SentimentPoint) models.TrendDirection {
	if len(ordered) < 2 {
		return models.SentimentStable
	}

	third := len(ordered) / 3
	if third == 0 {
		third = 1
	}

	early := meanCompound(ordered[:third])
	late := meanCompound(ordered[len(ordered)-third:])
	diff := late - early

	switch {
	case diff > t.epsilon:
		return models.SentimentImproving
	case diff < -t.epsilon:
		return models.SentimentDeclining
	default:
		return models.SentimentStable
	}
}

func meanCompound(points []models.SentimentPoint) float64 {
	articles := 0
	sum := 0.0
	for _, p := range points {
		articles += p.ArticleCount
		sum += p.SumPositive - p.SumNegative
	}
	if articles == 0 {
		return 0
	}
	return sum / float64(articles)
}

func dominant(s models.SentimentScore) string {
	if s.Positive > s.Negative && s.Positive > s.Neutral {
		return "positive"
	}
	if s.Negative > s.Positive && s.Negative > s.Neutral {
		return "negative"
	}
	return "neutral"
}
