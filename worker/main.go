package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/dmarkin/news-pulse/internal/analytics"
	"github.com/dmarkin/news-pulse/internal/config"
	"github.com/dmarkin/news-pulse/internal/dedupe"
	"github.com/dmarkin/news-pulse/internal/logger"
	"github.com/dmarkin/news-pulse/internal/models"
	"github.com/dmarkin/news-pulse/internal/processing"
	"github.com/dmarkin/news-pulse/internal/sentiment"
	"github.com/dmarkin/news-pulse/internal/store"
)

type rawArticle struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	Source      string  `json:"source"`
	Credibility float64 `json:"credibility"`
	PublishedAt string  `json:"published_at"`
	Category    string  `json:"category"`
	Language    string  `json:"language"`
}

type articleIndexer interface {
	PutArticle(ctx context.Context, a models.Article) error
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := store.NewElastic(cfg.ElasticsearchAddr, cfg.IndexPrefix, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	analyzer, err := buildAnalyzer(cfg.Analytics, log)
	if err != nil {
		log.Error("init sentiment analyzer", slog.Any("err", err))
		os.Exit(1)
	}

	pipeline, err := analytics.New(cfg.Analytics, esClient, esClient, esClient, analyzer, log)
	if err != nil {
		log.Error("init analytics pipeline", slog.Any("err", err))
		os.Exit(1)
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go runAnalytics(ctx, log, pipeline, cfg.AnalyticsInterval)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
		slog.Duration("analytics_interval", cfg.AnalyticsInterval),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, analyzer, cache, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			dlqMsg := kafka.Message{
				Value: msg.Value,
				Headers: append(msg.Headers,
					kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
					kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
					kafka.Header{Key: "error", Value: []byte(err.Error())},
					kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
				),
			}

			// Retry DLQ write with exponential backoff
			dlqSuccess := false
			for attempt := 0; attempt < 5; attempt++ {
				if dlqErr := dlqWriter.WriteMessages(ctx, dlqMsg); dlqErr == nil {
					dlqSuccess = true
					log.Info("message sent to DLQ",
						slog.Int("partition", msg.Partition),
						slog.Int64("offset", msg.Offset),
						slog.Int("attempt", attempt+1),
					)
					break
				} else {
					backoff := time.Duration(1<<uint(attempt)) * time.Second
					log.Warn("DLQ write failed, retrying",
						slog.Any("err", dlqErr),
						slog.Int("attempt", attempt+1),
						slog.Duration("backoff", backoff),
					)
					select {
					case <-time.After(backoff):
					case <-ctx.Done():
						log.Info("context canceled during DLQ retry")
						return
					}
				}
			}

			// Only commit if DLQ write succeeded; otherwise skip commit and reprocess on restart
			if dlqSuccess {
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Error("commit failed message to dlq", slog.Any("err", err))
				}
			} else {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
			}
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

func buildAnalyzer(cfg config.Analytics, log *slog.Logger) (*sentiment.Analyzer, error) {
	lexicon := sentiment.NewLexicon()
	if cfg.SentimentLexiconPath != "" {
		loaded, err := sentiment.LoadLexicon(cfg.SentimentLexiconPath)
		if err != nil {
			return nil, err
		}
		lexicon = loaded
	}

	var primary sentiment.Classifier
	if cfg.SentimentDelegateURL != "" {
		primary = sentiment.NewDelegate(cfg.SentimentDelegateURL, cfg.SentimentDelegateTimeout)
	}

	return sentiment.NewAnalyzer(primary, lexicon, log), nil
}

// runAnalytics triggers a batch every interval until the context ends.
func runAnalytics(ctx context.Context, log *slog.Logger, pipeline *analytics.Pipeline, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := pipeline.Run(ctx, time.Now().UTC()); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				log.Error("analytics batch failed", slog.Any("err", err))
			}
		}
	}
}

func processMessage(ctx context.Context, log *slog.Logger, indexer articleIndexer, analyzer *sentiment.Analyzer, cache *dedupe.Cache, msg kafka.Message) error {
	var payload rawArticle
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return err
	}

	title := strings.TrimSpace(payload.Title)
	body := strings.TrimSpace(payload.Body)
	if title == "" && body == "" {
		return errors.New("empty payload")
	}

	ts := parseTimestamp(payload.PublishedAt)
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	credibility := payload.Credibility
	if credibility < 0 || credibility > 1 {
		return fmt.Errorf("credibility %v out of range", credibility)
	}

	source := strings.TrimSpace(payload.Source)
	if source == "" {
		source = "unknown"
	}

	article := models.Article{
		ID:                strings.TrimSpace(payload.ID),
		Title:             title,
		Body:              body,
		SourceName:        source,
		SourceCredibility: credibility,
		PublishedAt:       ts,
		Category:          strings.TrimSpace(payload.Category),
		Language:          strings.TrimSpace(payload.Language),
	}

	if article.ID == "" {
		article.ID = uuid.NewString()
	}

	if cache.IsSeen(article.ID) {
		log.Debug("duplicate delivery", slog.String("id", article.ID))
		return nil
	}

	norm := processing.Normalize(article.Title, article.Body)
	article.NormalizedText = norm.Text
	article.Tokens = norm.Tokens

	score := analyzer.Score(ctx, article.Title+" "+article.Body)
	article.Sentiment = &score

	if err := indexer.PutArticle(ctx, article); err != nil {
		return err
	}

	// Mark only after the index succeeded; a failed write goes to the
	// DLQ unmarked and stays retryable.
	cache.MarkSeen(article.ID)
	log.Info("indexed article", slog.String("id", article.ID), slog.String("title", article.Title))
	return nil
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts
		}
	}

	return time.Time{}
}
