package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmarkin/news-pulse/internal/models"
)

// Memory is an in-process implementation of ArticleSource and Store.
// It backs tests and offline runs, and doubles as the injectable
// replacement for what would otherwise be process-wide mutable state.
type Memory struct {
	mu        sync.RWMutex
	articles  map[string]models.Article
	clusters  map[string]models.DuplicateCluster
	topics    map[string]models.TopicRecord
	novelty   map[string]models.NoveltyScore
	sentiment map[string]models.SentimentPoint
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		articles:  make(map[string]models.Article),
		clusters:  make(map[string]models.DuplicateCluster),
		topics:    make(map[string]models.TopicRecord),
		novelty:   make(map[string]models.NoveltyScore),
		sentiment: make(map[string]models.SentimentPoint),
	}
}

// PutArticle stores or replaces an article.
func (m *Memory) PutArticle(_ context.Context, a models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles[a.ID] = a
	return nil
}

// ListArticles returns articles published in [from, to], optionally
// filtered by category, ordered by ID for determinism.
func (m *Memory) ListArticles(_ context.Context, from, to time.Time, category string) ([]models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Article
	for _, a := range m.articles {
		if a.PublishedAt.Before(from) || a.PublishedAt.After(to) {
			continue
		}
		if category != "" && a.Category != category {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetArticle(_ context.Context, id string) (models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.articles[id]
	if !ok {
		return models.Article{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) SaveClusters(_ context.Context, clusters []models.DuplicateCluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range clusters {
		m.clusters[c.ID] = c
	}
	return nil
}

func (m *Memory) SaveTopicRecords(_ context.Context, records []models.TopicRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.topics[r.Label] = r
	}
	return nil
}

func (m *Memory) SaveNoveltyScore(_ context.Context, score models.NoveltyScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.novelty[score.ArticleID] = score
	return nil
}

func (m *Memory) AppendSentimentPoints(_ context.Context, points []models.SentimentPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.sentiment[p.Scope+"|"+p.Date] = p
	}
	return nil
}

func (m *Memory) Clusters(_ context.Context, from, to time.Time) ([]models.DuplicateCluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.DuplicateCluster
	for _, c := range m.clusters {
		if c.BucketStart.After(to) || c.BucketEnd.Before(from) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) TopicRecords(_ context.Context) ([]models.TopicRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.TopicRecord, 0, len(m.topics))
	for _, r := range m.topics {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (m *Memory) TopicRecord(_ context.Context, label string) (models.TopicRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.topics[label]
	if !ok {
		return models.TopicRecord{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) SentimentPoints(_ context.Context, scope string, fromDate, toDate string) ([]models.SentimentPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.SentimentPoint
	for _, p := range m.sentiment {
		if p.Scope != scope {
			continue
		}
		if (fromDate != "" && p.Date < fromDate) || (toDate != "" && p.Date > toDate) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *Memory) NoveltyScore(_ context.Context, articleID string) (models.NoveltyScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.novelty[articleID]
	if !ok {
		return models.NoveltyScore{}, ErrNotFound
	}
	return s, nil
}
