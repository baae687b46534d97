package models

import "time"

// MergeStrategy selects the representative of a duplicate cluster.
type MergeStrategy string

const (
	PreferCredible MergeStrategy = "prefer_credible"
	PreferComplete MergeStrategy = "prefer_complete"
	Combine        MergeStrategy = "combine"
)

// ParseMergeStrategy maps raw input to the closed strategy set.
func ParseMergeStrategy(raw string) (MergeStrategy, bool) {
	switch MergeStrategy(raw) {
	case PreferCredible, PreferComplete, Combine:
		return MergeStrategy(raw), true
	case "":
		return PreferCredible, true
	default:
		return "", false
	}
}

// DuplicateCluster groups articles judged to cover the same story.
// MemberIDs is sorted; Similarity holds the pairwise scores that
// joined the cluster, keyed "idA|idB" with idA < idB.
type DuplicateCluster struct {
	ID               string             `json:"id"`
	RepresentativeID string             `json:"representative_id"`
	MemberIDs        []string           `json:"member_ids"`
	Similarity       map[string]float64 `json:"similarity"`
	Strategy         MergeStrategy      `json:"strategy"`
	Combined         bool               `json:"combined,omitempty"`
	CombinedBody     string             `json:"combined_body,omitempty"`
	Sources          []string           `json:"sources,omitempty"`
	DuplicateCount   int                `json:"duplicate_count,omitempty"`
	BucketStart      time.Time          `json:"bucket_start"`
	BucketEnd        time.Time          `json:"bucket_end"`
}

// TrendStatus classifies topic growth.
type TrendStatus string

const (
	TrendStable    TrendStatus = "stable"
	TrendEmerging  TrendStatus = "emerging"
	TrendRising    TrendStatus = "rising"
	TrendExplosive TrendStatus = "explosive"
)

// DailyCount is one point of a topic mention timeline.
type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Count int    `json:"count"`
}

// TopicRecord tracks mention volume and growth for one topic label.
type TopicRecord struct {
	Label        string       `json:"label"`
	DailyCounts  []DailyCount `json:"daily_counts"`
	MentionCount int          `json:"mention_count"`
	Baseline     float64      `json:"baseline_count"`
	GrowthRate   float64      `json:"growth_rate"`
	Status       TrendStatus  `json:"status"`
	Categories   []string     `json:"categories,omitempty"`
	FirstSeen    time.Time    `json:"first_seen"`
	LatestSeen   time.Time    `json:"latest_seen"`
}

// NoveltyClass buckets a novelty score.
type NoveltyClass string

const (
	HighlyNovel     NoveltyClass = "highly_novel"
	ModeratelyNovel NoveltyClass = "moderately_novel"
	SomewhatNovel   NoveltyClass = "somewhat_novel"
	Recycled        NoveltyClass = "recycled"
)

// NoveltyScore records how novel an article is relative to the
// lookback window. Computed once, read-only afterward.
type NoveltyScore struct {
	ArticleID     string       `json:"article_id"`
	LookbackDays  int          `json:"lookback_days"`
	MaxSimilarity float64      `json:"max_similarity"`
	Score         float64      `json:"novelty_score"`
	Class         NoveltyClass `json:"classification"`
	MostSimilarID string       `json:"most_similar_id,omitempty"`
	Reason        string       `json:"reason"`
	EvaluatedAt   time.Time    `json:"evaluated_at"`
}

// ScopeGlobal is the scope key for the all-articles sentiment timeline.
// Other scopes are "category:<name>" or "topic:<label>".
const ScopeGlobal = "global"

// SentimentPoint aggregates article sentiment for one (scope, date).
// The Sum* fields carry the per-article triple sums so window means
// weight every article equally regardless of daily volume.
type SentimentPoint struct {
	Scope        string  `json:"scope"`
	Date         string  `json:"date"` // YYYY-MM-DD, UTC
	Positive     int     `json:"positive_count"`
	Negative     int     `json:"negative_count"`
	Neutral      int     `json:"neutral_count"`
	ArticleCount int     `json:"article_count"`
	SumPositive  float64 `json:"sum_positive"`
	SumNegative  float64 `json:"sum_negative"`
	SumNeutral   float64 `json:"sum_neutral"`
}

// TrendDirection describes how sentiment moved across a window.
type TrendDirection string

const (
	SentimentImproving TrendDirection = "improving"
	SentimentDeclining TrendDirection = "declining"
	SentimentStable    TrendDirection = "stable"
)
