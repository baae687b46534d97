package store

import (
	"context"
	"errors"
	"time"

	"github.com/dmarkin/news-pulse/internal/models"
)

// ErrNotFound is returned when a keyed lookup has no record.
var ErrNotFound = errors.New("not found")

// ArticleSource reads articles produced by ingestion.
type ArticleSource interface {
	ListArticles(ctx context.Context, from, to time.Time, category string) ([]models.Article, error)
	GetArticle(ctx context.Context, id string) (models.Article, error)
}

// Store persists analytics outputs and serves their range queries.
// Writes are keyed (cluster ID, topic label, article ID, scope+date),
// so re-persisting an identical batch is a no-op overwrite: batches
// stay idempotent end to end.
type Store interface {
	SaveClusters(ctx context.Context, clusters []models.DuplicateCluster) error
	SaveTopicRecords(ctx context.Context, records []models.TopicRecord) error
	SaveNoveltyScore(ctx context.Context, score models.NoveltyScore) error
	AppendSentimentPoints(ctx context.Context, points []models.SentimentPoint) error

	Clusters(ctx context.Context, from, to time.Time) ([]models.DuplicateCluster, error)
	TopicRecords(ctx context.Context) ([]models.TopicRecord, error)
	TopicRecord(ctx context.Context, label string) (models.TopicRecord, error)
	SentimentPoints(ctx context.Context, scope string, fromDate, toDate string) ([]models.SentimentPoint, error)
	NoveltyScore(ctx context.Context, articleID string) (models.NoveltyScore, error)
}
