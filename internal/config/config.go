package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmarkin/news-pulse/internal/models"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr string
	IndexPrefix       string
}

// Analytics holds the thresholds of the analytics core. Invalid values
// are rejected at load time; a batch never starts with a bad config.
type Analytics struct {
	SimilarityThreshold      float64
	SimilarityMaxRunes       int
	DedupBucketHours         int
	MergeStrategy            models.MergeStrategy
	MinMentions              int
	RisingGrowthFloor        float64
	ExplosiveGrowthFloor     float64
	ExplosiveMentionFloor    int
	NoveltyLookbackDays      int
	SentimentWindowDays      int
	SentimentEpsilon         float64
	BaselineWindowDays       int
	TopicRetentionDays       int
	TopicTopK                int
	TopicMinDocFreq          int
	WorkerPoolSize           int
	SentimentDelegateURL     string
	SentimentDelegateTimeout time.Duration
	SentimentLexiconPath     string
}

// Worker holds configuration for the Kafka -> analytics worker.
type Worker struct {
	Common
	Analytics
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaConsumer     string
	DedupeCapacity    int
	DedupeTTL         time.Duration
	AnalyticsInterval time.Duration
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Analytics
	BindAddr     string
	DefaultLimit int
	MaxLimit     int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval        time.Duration
	ArticleMaxAge   time.Duration
	TopicMaxAge     time.Duration
	SentimentMaxAge time.Duration
	ClusterMaxAge   time.Duration
	BatchSize       int
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr: getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		IndexPrefix:       getEnv("ELASTICSEARCH_INDEX_PREFIX", "newspulse"),
	}
}

// LoadAnalytics builds the analytics thresholds from environment
// variables, with the documented defaults.
func LoadAnalytics() (*Analytics, error) {
	strategy, ok := models.ParseMergeStrategy(getEnv("MERGE_STRATEGY", ""))
	if !ok {
		return nil, fmt.Errorf("MERGE_STRATEGY must be one of prefer_credible, prefer_complete, combine")
	}

	c := &Analytics{
		SimilarityThreshold:      getFloat("SIMILARITY_THRESHOLD", 0.85),
		SimilarityMaxRunes:       getInt("SIMILARITY_MAX_RUNES", 1500),
		DedupBucketHours:         getInt("DEDUP_BUCKET_HOURS", 48),
		MergeStrategy:            strategy,
		MinMentions:              getInt("MIN_MENTIONS", 5),
		RisingGrowthFloor:        getFloat("RISING_GROWTH_FLOOR", 0.25),
		ExplosiveGrowthFloor:     getFloat("EXPLOSIVE_GROWTH_FLOOR", 1.0),
		ExplosiveMentionFloor:    getInt("EXPLOSIVE_MENTION_FLOOR", 10),
		NoveltyLookbackDays:      getInt("NOVELTY_LOOKBACK_DAYS", 7),
		SentimentWindowDays:      getInt("SENTIMENT_WINDOW_DAYS", 30),
		SentimentEpsilon:         getFloat("SENTIMENT_EPSILON", 0.05),
		BaselineWindowDays:       getInt("BASELINE_WINDOW_DAYS", 7),
		TopicRetentionDays:       getInt("TOPIC_RETENTION_DAYS", 30),
		TopicTopK:                getInt("TOPIC_TOP_K", 5),
		TopicMinDocFreq:          getInt("TOPIC_MIN_DOC_FREQ", 2),
		WorkerPoolSize:           getInt("WORKER_POOL_SIZE", 0),
		SentimentDelegateURL:     getEnv("SENTIMENT_DELEGATE_URL", ""),
		SentimentDelegateTimeout: getDuration("SENTIMENT_DELEGATE_TIMEOUT", "3s"),
		SentimentLexiconPath:     getEnv("SENTIMENT_LEXICON_PATH", ""),
	}

	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be in (0,1]")
	}
	if c.SimilarityMaxRunes <= 0 {
		return nil, fmt.Errorf("SIMILARITY_MAX_RUNES must be positive")
	}
	if c.DedupBucketHours <= 0 {
		return nil, fmt.Errorf("DEDUP_BUCKET_HOURS must be positive")
	}
	if c.MinMentions <= 0 {
		return nil, fmt.Errorf("MIN_MENTIONS must be positive")
	}
	if c.RisingGrowthFloor < 0 || c.ExplosiveGrowthFloor < 0 {
		return nil, fmt.Errorf("growth floors cannot be negative")
	}
	if c.ExplosiveMentionFloor < c.MinMentions {
		return nil, fmt.Errorf("EXPLOSIVE_MENTION_FLOOR cannot be below MIN_MENTIONS")
	}
	if c.NoveltyLookbackDays <= 0 {
		return nil, fmt.Errorf("NOVELTY_LOOKBACK_DAYS must be positive")
	}
	if c.SentimentWindowDays <= 0 {
		return nil, fmt.Errorf("SENTIMENT_WINDOW_DAYS must be positive")
	}
	if c.SentimentEpsilon <= 0 {
		return nil, fmt.Errorf("SENTIMENT_EPSILON must be positive")
	}
	if c.BaselineWindowDays <= 0 {
		return nil, fmt.Errorf("BASELINE_WINDOW_DAYS must be positive")
	}
	if c.TopicRetentionDays <= 0 {
		return nil, fmt.Errorf("TOPIC_RETENTION_DAYS must be positive")
	}
	if c.TopicTopK <= 0 {
		return nil, fmt.Errorf("TOPIC_TOP_K must be positive")
	}
	if c.TopicMinDocFreq <= 0 {
		return nil, fmt.Errorf("TOPIC_MIN_DOC_FREQ must be positive")
	}
	if c.WorkerPoolSize < 0 {
		return nil, fmt.Errorf("WORKER_POOL_SIZE cannot be negative")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	analytics, err := LoadAnalytics()
	if err != nil {
		return nil, err
	}

	c := &Worker{
		Common:            loadCommon(),
		Analytics:         *analytics,
		KafkaBrokers:      splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "articles_raw"),
		KafkaConsumer:     getEnv("KAFKA_CONSUMER_GROUP", "analytics-worker"),
		DedupeCapacity:    getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:         getDuration("WORKER_DEDUPE_TTL", "24h"),
		AnalyticsInterval: getDuration("WORKER_ANALYTICS_INTERVAL", "15m"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.AnalyticsInterval <= 0 {
		return nil, fmt.Errorf("WORKER_ANALYTICS_INTERVAL must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	analytics, err := LoadAnalytics()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:       loadCommon(),
		Analytics:    *analytics,
		BindAddr:     getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultLimit: getInt("API_DEFAULT_LIMIT", 20),
		MaxLimit:     getInt("API_MAX_LIMIT", 100),
	}

	if c.DefaultLimit <= 0 {
		return nil, fmt.Errorf("API_DEFAULT_LIMIT must be positive")
	}
	if c.MaxLimit <= 0 {
		return nil, fmt.Errorf("API_MAX_LIMIT must be positive")
	}
	if c.DefaultLimit > c.MaxLimit {
		return nil, fmt.Errorf("API_DEFAULT_LIMIT cannot exceed API_MAX_LIMIT")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:          loadCommon(),
		Interval:        getDuration("RETENTION_INTERVAL", "24h"),
		ArticleMaxAge:   getDuration("RETENTION_ARTICLE_MAX_AGE", "720h"),
		TopicMaxAge:     getDuration("RETENTION_TOPIC_MAX_AGE", "720h"),
		SentimentMaxAge: getDuration("RETENTION_SENTIMENT_MAX_AGE", "2160h"),
		ClusterMaxAge:   getDuration("RETENTION_CLUSTER_MAX_AGE", "168h"),
		BatchSize:       getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	if c.ArticleMaxAge <= 0 || c.TopicMaxAge <= 0 || c.SentimentMaxAge <= 0 || c.ClusterMaxAge <= 0 {
		return nil, fmt.Errorf("retention max ages must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
