package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmarkin/news-pulse/internal/config"
	"github.com/dmarkin/news-pulse/internal/logger"
	"github.com/dmarkin/news-pulse/internal/store"
)

func main() {
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	// Retry Elasticsearch connection with backoff
	var esClient *store.Elastic
	maxRetries := 10
	retryDelay := 2 * time.Second
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	for i := 0; i < maxRetries; i++ {
		esClient, err = store.NewElastic(cfg.ElasticsearchAddr, cfg.IndexPrefix, log)
		if err != nil {
			log.Warn("failed to create elasticsearch client, retrying",
				slog.Any("err", err),
				slog.Int("attempt", i+1),
				slog.Int("max_retries", maxRetries),
			)
		} else {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if pingErr := esClient.Ping(pingCtx); pingErr == nil {
				cancel()
				break
			} else {
				log.Warn("elasticsearch ping failed, retrying",
					slog.Any("err", pingErr),
					slog.Int("attempt", i+1),
					slog.Int("max_retries", maxRetries),
					slog.Duration("retry_in", retryDelay),
				)
			}
			cancel()
		}

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			log.Info("shutdown signal received during startup")
			os.Exit(0)
		}
		retryDelay *= 2 // Exponential backoff
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if esClient == nil || esClient.Ping(pingCtx) != nil {
		log.Error("failed to connect to elasticsearch after retries")
		os.Exit(1)
	}

	log.Info("connected to elasticsearch")

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("retention job running",
		slog.Duration("interval", cfg.Interval),
		slog.Duration("article_max_age", cfg.ArticleMaxAge),
		slog.Duration("topic_max_age", cfg.TopicMaxAge),
		slog.Duration("sentiment_max_age", cfg.SentimentMaxAge),
		slog.Duration("cluster_max_age", cfg.ClusterMaxAge),
	)

	// Run immediately on start, but don't fail if ES is temporarily unavailable
	runOnce(ctx, log, esClient, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, esClient, cfg)
		}
	}
}

func runOnce(ctx context.Context, log *slog.Logger, esClient *store.Elastic, cfg *config.Retention) {
	subCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var total int64
	steps := []struct {
		name string
		run  func() (int64, error)
	}{
		{"articles", func() (int64, error) {
			return esClient.DeleteArticlesOlderThan(subCtx, cfg.ArticleMaxAge, cfg.BatchSize)
		}},
		{"topics", func() (int64, error) {
			return esClient.DeleteTopicsOlderThan(subCtx, cfg.TopicMaxAge, cfg.BatchSize)
		}},
		{"sentiment", func() (int64, error) {
			return esClient.DeleteSentimentOlderThan(subCtx, cfg.SentimentMaxAge, cfg.BatchSize)
		}},
		{"clusters", func() (int64, error) {
			return esClient.DeleteClustersOlderThan(subCtx, cfg.ClusterMaxAge, cfg.BatchSize)
		}},
	}

	for _, step := range steps {
		deleted, err := step.run()
		if err != nil {
			log.Warn("retention step failed (will retry on next interval)",
				slog.String("step", step.name),
				slog.Any("err", err),
			)
			continue
		}
		if deleted > 0 {
			log.Info("retention step completed",
				slog.String("step", step.name),
				slog.Int64("deleted", deleted),
			)
		}
		total += deleted
	}

	if total == 0 {
		log.Debug("retention run completed, no old documents found")
	}
}
