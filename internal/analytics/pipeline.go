package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/dmarkin/news-pulse/internal/config"
	"github.com/dmarkin/news-pulse/internal/dedupe"
	"github.com/dmarkin/news-pulse/internal/models"
	"github.com/dmarkin/news-pulse/internal/novelty"
	"github.com/dmarkin/news-pulse/internal/processing"
	"github.com/dmarkin/news-pulse/internal/sentiment"
	"github.com/dmarkin/news-pulse/internal/store"
	"github.com/dmarkin/news-pulse/internal/topics"
)

// ArticleSink persists derived article annotations. It is optional;
// a nil sink skips the write-back.
type ArticleSink interface {
	PutArticle(ctx context.Context, a models.Article) error
}

// Pipeline runs the per-cycle analytics batch and serves the analytics
// queries. A batch either persists all of its outputs or none of them;
// retrying the identical batch produces identical records.
type Pipeline struct {
	cfg      config.Analytics
	source   store.ArticleSource
	sink     ArticleSink
	store    store.Store
	analyzer *sentiment.Analyzer

	vectorizer *topics.Vectorizer
	detector   *topics.Detector
	tracker    *sentiment.Tracker
	evaluator  *novelty.Evaluator

	locks    *BucketLock
	poolSize int
	log      *slog.Logger
}

// New wires the pipeline from validated analytics config. sink may be
// nil when article annotations should not be written back.
func New(cfg config.Analytics, source store.ArticleSource, sink ArticleSink, st store.Store, analyzer *sentiment.Analyzer, log *slog.Logger) (*Pipeline, error) {
	vectorizer, err := topics.NewVectorizer(cfg.TopicTopK, cfg.TopicMinDocFreq)
	if err != nil {
		return nil, fmt.Errorf("vectorizer: %w", err)
	}

	detector, err := topics.NewDetector(topics.DetectorConfig{
		MinMentions:           cfg.MinMentions,
		RisingGrowthFloor:     cfg.RisingGrowthFloor,
		ExplosiveGrowthFloor:  cfg.ExplosiveGrowthFloor,
		ExplosiveMentionFloor: cfg.ExplosiveMentionFloor,
		BaselineWindowDays:    cfg.BaselineWindowDays,
		RetentionDays:         cfg.TopicRetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("trend detector: %w", err)
	}

	tracker, err := sentiment.NewTracker(cfg.SentimentEpsilon)
	if err != nil {
		return nil, fmt.Errorf("sentiment tracker: %w", err)
	}

	scorer := func(a, b string) (float64, error) {
		return processing.RatioCapped(a, b, cfg.SimilarityMaxRunes), nil
	}

	evaluator, err := novelty.NewEvaluator(cfg.NoveltyLookbackDays, scorer)
	if err != nil {
		return nil, fmt.Errorf("novelty evaluator: %w", err)
	}

	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = runtime.GOMAXPROCS(0)
	}

	return &Pipeline{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		store:      st,
		analyzer:   analyzer,
		vectorizer: vectorizer,
		detector:   detector,
		tracker:    tracker,
		evaluator:  evaluator,
		locks:      NewBucketLock(),
		poolSize:   poolSize,
		log:        log,
	}, nil
}

// BatchResult summarizes one completed batch for logging.
type BatchResult struct {
	Articles        int
	Clusters        int
	Topics          int
	NoveltyScores   int
	SentimentPoints int
	Elapsed         time.Duration
}

// Run executes one analytics batch as of now. The corpus is the topic
// retention window; clustering and novelty restrict to the dedup
// bucket. Nothing is persisted until every stage has completed.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (BatchResult, error) {
	started := time.Now()

	bucketStart := now.Add(-time.Duration(p.cfg.DedupBucketHours) * time.Hour)
	release, err := p.locks.Acquire(ctx, bucketStart, now)
	if err != nil {
		return BatchResult{}, err
	}
	defer release()

	corpusStart := now.AddDate(0, 0, -p.cfg.TopicRetentionDays)
	corpus, err := p.source.ListArticles(ctx, corpusStart, now, "")
	if err != nil {
		return BatchResult{}, fmt.Errorf("list articles: %w", err)
	}

	corpus, err = p.enrich(ctx, corpus)
	if err != nil {
		return BatchResult{}, err
	}

	var bucket []models.Article
	for _, a := range corpus {
		if !a.PublishedAt.Before(bucketStart) {
			bucket = append(bucket, a)
		}
	}

	engine, err := dedupe.NewEngine(p.cfg.SimilarityThreshold, p.cfg.MergeStrategy, p.scorer())
	if err != nil {
		return BatchResult{}, err
	}
	clusters := engine.Cluster(bucket)
	for i := range clusters {
		clusters[i].BucketStart = bucketStart
		clusters[i].BucketEnd = now
	}

	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	labels := p.vectorizer.Labels(corpus)
	records := p.detector.Build(corpus, labels, now)

	scores := make([]models.NoveltyScore, 0, len(bucket))
	for _, a := range bucket {
		if err := ctx.Err(); err != nil {
			return BatchResult{}, err
		}
		scores = append(scores, p.evaluator.Evaluate(a, corpus, now))
	}

	points := p.tracker.Aggregate(corpus, labels)

	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	// Persist phase: every stage succeeded, write everything.
	if err := p.persist(ctx, corpus, clusters, records, scores, points); err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{
		Articles:        len(corpus),
		Clusters:        len(clusters),
		Topics:          len(records),
		NoveltyScores:   len(scores),
		SentimentPoints: len(points),
		Elapsed:         time.Since(started),
	}

	if p.log != nil {
		p.log.Info("analytics batch completed",
			slog.Int("articles", result.Articles),
			slog.Int("clusters", result.Clusters),
			slog.Int("topics", result.Topics),
			slog.Int("novelty_scores", result.NoveltyScores),
			slog.Int("sentiment_points", result.SentimentPoints),
			slog.Duration("elapsed", result.Elapsed),
		)
	}

	return result, nil
}

func (p *Pipeline) persist(ctx context.Context, corpus []models.Article, clusters []models.DuplicateCluster, records []models.TopicRecord, scores []models.NoveltyScore, points []models.SentimentPoint) error {
	if p.sink != nil {
		for _, a := range corpus {
			if err := p.sink.PutArticle(ctx, a); err != nil {
				return fmt.Errorf("annotate article %s: %w", a.ID, err)
			}
		}
	}
	if err := p.store.SaveClusters(ctx, clusters); err != nil {
		return fmt.Errorf("save clusters: %w", err)
	}
	if err := p.store.SaveTopicRecords(ctx, records); err != nil {
		return fmt.Errorf("save topic records: %w", err)
	}
	for _, s := range scores {
		if err := p.store.SaveNoveltyScore(ctx, s); err != nil {
			return fmt.Errorf("save novelty score: %w", err)
		}
	}
	if err := p.store.AppendSentimentPoints(ctx, points); err != nil {
		return fmt.Errorf("append sentiment points: %w", err)
	}
	return nil
}

func (p *Pipeline) scorer() dedupe.Scorer {
	return func(a, b string) (float64, error) {
		return processing.RatioCapped(a, b, p.cfg.SimilarityMaxRunes), nil
	}
}

// enrich fills normalized text and sentiment for articles missing
// them, across a bounded worker pool. Per-article problems degrade to
// "no signal"; only cancellation aborts.
func (p *Pipeline) enrich(ctx context.Context, articles []models.Article) ([]models.Article, error) {
	out := make([]models.Article, len(articles))
	copy(out, articles)

	sem := make(chan struct{}, p.poolSize)
	var wg sync.WaitGroup

	for i := range out {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(a *models.Article) {
			defer wg.Done()
			defer func() { <-sem }()

			if a.NormalizedText == "" && a.Tokens == nil {
				norm := processing.Normalize(a.Title, a.Body)
				a.NormalizedText = norm.Text
				a.Tokens = norm.Tokens
			}
			if a.Sentiment == nil && p.analyzer != nil && a.NormalizedText != "" {
				score := p.analyzer.Score(ctx, a.Title+" "+a.Body)
				a.Sentiment = &score
			}
		}(&out[i])
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Deduplicate recomputes clusters for an explicit bucket, overriding
// threshold and strategy when given (zero values fall back to config).
func (p *Pipeline) Deduplicate(ctx context.Context, start, end time.Time, threshold float64, strategy models.MergeStrategy) ([]models.DuplicateCluster, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("bucket end %v before start %v", end, start)
	}
	if threshold == 0 {
		threshold = p.cfg.SimilarityThreshold
	}
	if strategy == "" {
		strategy = p.cfg.MergeStrategy
	}

	engine, err := dedupe.NewEngine(threshold, strategy, p.scorer())
	if err != nil {
		return nil, err
	}

	release, err := p.locks.Acquire(ctx, start, end)
	if err != nil {
		return nil, err
	}
	defer release()

	articles, err := p.source.ListArticles(ctx, start, end, "")
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	articles, err = p.enrich(ctx, articles)
	if err != nil {
		return nil, err
	}

	clusters := engine.Cluster(articles)
	for i := range clusters {
		clusters[i].BucketStart = start
		clusters[i].BucketEnd = end
	}

	if err := p.store.SaveClusters(ctx, clusters); err != nil {
		return nil, fmt.Errorf("save clusters: %w", err)
	}
	return clusters, nil
}

// Trending returns the ranked trending topics observed within the last
// windowDays. Insufficient data yields an empty slice, not an error.
func (p *Pipeline) Trending(ctx context.Context, windowDays, limit, minMentions int) ([]models.TopicRecord, error) {
	if windowDays <= 0 {
		windowDays = p.cfg.TopicRetentionDays
	}

	records, err := p.store.TopicRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("topic records: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	recent := make([]models.TopicRecord, 0, len(records))
	for _, r := range records {
		if !r.LatestSeen.Before(cutoff) {
			recent = append(recent, r)
		}
	}

	return p.detector.Trending(recent, limit, minMentions), nil
}

// Timeline is the topic timeline query result.
type Timeline struct {
	Label         string              `json:"topic"`
	Points        []models.DailyCount `json:"timeline"`
	TotalMentions int                 `json:"total_mentions"`
	DaysActive    int                 `json:"days_active"`
}

// TopicTimeline returns the daily mention counts for a topic over the
// last days. An unknown topic yields an empty timeline.
func (p *Pipeline) TopicTimeline(ctx context.Context, label string, days int) (Timeline, error) {
	if days <= 0 {
		days = p.cfg.TopicRetentionDays
	}

	timeline := Timeline{Label: label}

	record, err := p.store.TopicRecord(ctx, label)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return timeline, nil
		}
		return Timeline{}, fmt.Errorf("topic record: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
	for _, dc := range record.DailyCounts {
		if dc.Date < cutoff {
			continue
		}
		timeline.Points = append(timeline.Points, dc)
		timeline.TotalMentions += dc.Count
		timeline.DaysActive++
	}

	return timeline, nil
}

// EvaluateNovelty scores one article against its lookback window and
// persists the result. lookbackDays <= 0 falls back to config.
func (p *Pipeline) EvaluateNovelty(ctx context.Context, articleID string, lookbackDays int) (models.NoveltyScore, error) {
	evaluator := p.evaluator
	if lookbackDays > 0 && lookbackDays != p.cfg.NoveltyLookbackDays {
		var err error
		evaluator, err = novelty.NewEvaluator(lookbackDays, p.evaluator.ScorerFunc())
		if err != nil {
			return models.NoveltyScore{}, err
		}
	}

	article, err := p.source.GetArticle(ctx, articleID)
	if err != nil {
		return models.NoveltyScore{}, fmt.Errorf("get article: %w", err)
	}

	enriched, err := p.enrich(ctx, []models.Article{article})
	if err != nil {
		return models.NoveltyScore{}, err
	}
	article = enriched[0]

	days := lookbackDays
	if days <= 0 {
		days = p.cfg.NoveltyLookbackDays
	}
	history, err := p.source.ListArticles(ctx, article.PublishedAt.AddDate(0, 0, -days), article.PublishedAt, "")
	if err != nil {
		return models.NoveltyScore{}, fmt.Errorf("list history: %w", err)
	}
	history, err = p.enrich(ctx, history)
	if err != nil {
		return models.NoveltyScore{}, err
	}

	score := evaluator.Evaluate(article, history, time.Now().UTC())
	if err := p.store.SaveNoveltyScore(ctx, score); err != nil {
		return models.NoveltyScore{}, fmt.Errorf("save novelty score: %w", err)
	}
	return score, nil
}

// SentimentTimeline returns the stored sentiment points for a scope
// over the last days, with overall mean and trend direction.
func (p *Pipeline) SentimentTimeline(ctx context.Context, scope string, days int) (sentiment.Summary, error) {
	if scope == "" {
		scope = models.ScopeGlobal
	}
	if days <= 0 {
		days = p.cfg.SentimentWindowDays
	}

	from := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
	points, err := p.store.SentimentPoints(ctx, scope, from, "")
	if err != nil {
		return sentiment.Summary{}, fmt.Errorf("sentiment points: %w", err)
	}

	return p.tracker.Summarize(points), nil
}
