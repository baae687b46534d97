package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmarkin/news-pulse/internal/config"
	"github.com/dmarkin/news-pulse/internal/models"
)

func TestLoadAnalyticsDefaults(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "")
	t.Setenv("MERGE_STRATEGY", "")
	t.Setenv("MIN_MENTIONS", "")

	cfg, err := config.LoadAnalytics()
	require.NoError(t, err)

	require.Equal(t, 0.85, cfg.SimilarityThreshold)
	require.Equal(t, 48, cfg.DedupBucketHours)
	require.Equal(t, models.PreferCredible, cfg.MergeStrategy)
	require.Equal(t, 5, cfg.MinMentions)
	require.Equal(t, 0.25, cfg.RisingGrowthFloor)
	require.Equal(t, 1.0, cfg.ExplosiveGrowthFloor)
	require.Equal(t, 10, cfg.ExplosiveMentionFloor)
	require.Equal(t, 7, cfg.NoveltyLookbackDays)
	require.Equal(t, 30, cfg.SentimentWindowDays)
	require.Equal(t, 7, cfg.BaselineWindowDays)
	require.Equal(t, 30, cfg.TopicRetentionDays)
	require.Equal(t, 3*time.Second, cfg.SentimentDelegateTimeout)
}

func TestLoadAnalyticsOverrides(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("MERGE_STRATEGY", "combine")
	t.Setenv("MIN_MENTIONS", "3")
	t.Setenv("EXPLOSIVE_MENTION_FLOOR", "20")
	t.Setenv("NOVELTY_LOOKBACK_DAYS", "14")
	t.Setenv("SENTIMENT_DELEGATE_URL", "http://model:9000/classify")

	cfg, err := config.LoadAnalytics()
	require.NoError(t, err)

	require.Equal(t, 0.9, cfg.SimilarityThreshold)
	require.Equal(t, models.Combine, cfg.MergeStrategy)
	require.Equal(t, 3, cfg.MinMentions)
	require.Equal(t, 20, cfg.ExplosiveMentionFloor)
	require.Equal(t, 14, cfg.NoveltyLookbackDays)
	require.Equal(t, "http://model:9000/classify", cfg.SentimentDelegateURL)
}

func TestLoadAnalyticsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "threshold above 1", key: "SIMILARITY_THRESHOLD", value: "1.5"},
		{name: "negative lookback", key: "NOVELTY_LOOKBACK_DAYS", value: "-1"},
		{name: "zero baseline window", key: "BASELINE_WINDOW_DAYS", value: "0"},
		{name: "unknown strategy", key: "MERGE_STRATEGY", value: "coin_flip"},
		{name: "explosive below min", key: "EXPLOSIVE_MENTION_FLOOR", value: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.LoadAnalytics()
			require.Error(t, err)
		})
	}
}

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "newspulse", cfg.IndexPrefix)
	require.Len(t, cfg.KafkaBrokers, 1)
	require.Equal(t, "articles_raw", cfg.KafkaTopic)
	require.Equal(t, "analytics-worker", cfg.KafkaConsumer)
	require.Equal(t, 24*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 15*time.Minute, cfg.AnalyticsInterval)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-a:29092,broker-b:29093")
	t.Setenv("KAFKA_TOPIC", "custom_topic")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_ANALYTICS_INTERVAL", "5m")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Len(t, cfg.KafkaBrokers, 2)
	require.Equal(t, "custom_topic", cfg.KafkaTopic)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 5*time.Minute, cfg.AnalyticsInterval)
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_DEFAULT_LIMIT", "15")
	t.Setenv("API_MAX_LIMIT", "200")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultLimit)
	require.Equal(t, 200, cfg.MaxLimit)
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("RETENTION_INTERVAL", "12h")
	t.Setenv("RETENTION_TOPIC_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.TopicMaxAge)
	require.Equal(t, 123, cfg.BatchSize)
}
