package topics

import (
	"fmt"
	"sort"
	"time"

	"github.com/dmarkin/news-pulse/internal/models"
)

const dateLayout = "2006-01-02"

// DetectorConfig carries the trend classification thresholds.
type DetectorConfig struct {
	MinMentions           int
	RisingGrowthFloor     float64
	ExplosiveGrowthFloor  float64
	ExplosiveMentionFloor int
	BaselineWindowDays    int
	RetentionDays         int
}

// Detector maintains per-topic mention timelines and classifies
// growth. Mentions count raw articles: deduplication does not collapse
// topic counts, so two outlets covering the same story both register.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector validates thresholds and builds a detector.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if cfg.MinMentions < 1 {
		return nil, fmt.Errorf("min mentions must be at least 1, got %d", cfg.MinMentions)
	}
	if cfg.RisingGrowthFloor < 0 || cfg.ExplosiveGrowthFloor < 0 {
		return nil, fmt.Errorf("growth floors cannot be negative")
	}
	if cfg.ExplosiveMentionFloor < cfg.MinMentions {
		return nil, fmt.Errorf("explosive mention floor %d below min mentions %d",
			cfg.ExplosiveMentionFloor, cfg.MinMentions)
	}
	if cfg.BaselineWindowDays <= 0 {
		return nil, fmt.Errorf("baseline window must be positive, got %d days", cfg.BaselineWindowDays)
	}
	if cfg.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %d days", cfg.RetentionDays)
	}
	return &Detector{cfg: cfg}, nil
}

// Build turns labeled articles into TopicRecords as of now. labels maps
// article ID to its topic labels; each article contributes one mention
// per distinct label. Timelines are trimmed to the retention window.
func (d *Detector) Build(articles []models.Article, labels map[string][]string, now time.Time) []models.TopicRecord {
	type topicState struct {
		daily      map[string]int
		categories map[string]struct{}
		firstSeen  time.Time
		latestSeen time.Time
	}

	cutoff := now.AddDate(0, 0, -d.cfg.RetentionDays)
	states := make(map[string]*topicState)

	for _, a := range articles {
		if a.PublishedAt.Before(cutoff) || a.PublishedAt.After(now) {
			continue
		}
		date := a.PublishedAt.UTC().Format(dateLayout)
		for _, label := range labels[a.ID] {
			st, ok := states[label]
			if !ok {
				st = &topicState{
					daily:      make(map[string]int),
					categories: make(map[string]struct{}),
					firstSeen:  a.PublishedAt,
					latestSeen: a.PublishedAt,
				}
				states[label] = st
			}
			st.daily[date]++
			if a.Category != "" {
				st.categories[a.Category] = struct{}{}
			}
			if a.PublishedAt.Before(st.firstSeen) {
				st.firstSeen = a.PublishedAt
			}
			if a.PublishedAt.After(st.latestSeen) {
				st.latestSeen = a.PublishedAt
			}
		}
	}

	labelsSorted := make([]string, 0, len(states))
	for label := range states {
		labelsSorted = append(labelsSorted, label)
	}
	sort.Strings(labelsSorted)

	records := make([]models.TopicRecord, 0, len(states))
	for _, label := range labelsSorted {
		st := states[label]

		counts := make([]models.DailyCount, 0, len(st.daily))
		for date, count := range st.daily {
			counts = append(counts, models.DailyCount{Date: date, Count: count})
		}
		sort.Slice(counts, func(i, j int) bool { return counts[i].Date < counts[j].Date })

		latest, baseline, seenInBaseline := d.windows(st.daily, now)

		rec := models.TopicRecord{
			Label:        label,
			DailyCounts:  counts,
			MentionCount: latest,
			Baseline:     baseline,
			Categories:   sortedKeys(st.categories),
			FirstSeen:    st.firstSeen,
			LatestSeen:   st.latestSeen,
		}
		rec.GrowthRate = (float64(latest) - baseline) / baseline
		rec.Status = d.classify(latest, rec.GrowthRate, seenInBaseline)
		records = append(records, rec)
	}

	return records
}

// windows sums mentions over the latest 24h and averages the baseline
// window preceding it. Baseline has a floor of 1 so growth is always
// defined. seenInBaseline distinguishes a genuinely new topic from one
// that merely dipped to the floor.
func (d *Detector) windows(daily map[string]int, now time.Time) (latest int, baseline float64, seenInBaseline bool) {
	today := now.UTC().Format(dateLayout)
	latest = daily[today]

	sum := 0
	for i := 1; i <= d.cfg.BaselineWindowDays; i++ {
		date := now.UTC().AddDate(0, 0, -i).Format(dateLayout)
		if c, ok := daily[date]; ok && c > 0 {
			sum += c
			seenInBaseline = true
		}
	}

	baseline = float64(sum) / float64(d.cfg.BaselineWindowDays)
	if baseline < 1 {
		baseline = 1
	}
	return latest, baseline, seenInBaseline
}

// classify applies the policy in priority order; boundaries are
// inclusive.
func (d *Detector) classify(mentions int, growth float64, seenInBaseline bool) models.TrendStatus {
	switch {
	case mentions >= d.cfg.ExplosiveMentionFloor && growth >= d.cfg.ExplosiveGrowthFloor:
		return models.TrendExplosive
	case mentions >= d.cfg.MinMentions && growth >= d.cfg.RisingGrowthFloor:
		return models.TrendRising
	case mentions >= d.cfg.MinMentions && !seenInBaseline:
		return models.TrendEmerging
	default:
		return models.TrendStable
	}
}

// Trending filters records below minMentions and ranks the rest:
// growth rate descending, mention count descending, label ascending.
// minMentions <= 0 falls back to the configured default.
func (d *Detector) Trending(records []models.TopicRecord, limit, minMentions int) []models.TopicRecord {
	if minMentions <= 0 {
		minMentions = d.cfg.MinMentions
	}

	out := make([]models.TopicRecord, 0, len(records))
	for _, r := range records {
		if r.MentionCount >= minMentions {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].GrowthRate != out[j].GrowthRate {
			return out[i].GrowthRate > out[j].GrowthRate
		}
		if out[i].MentionCount != out[j].MentionCount {
			return out[i].MentionCount > out[j].MentionCount
		}
		return out[i].Label < out[j].Label
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
