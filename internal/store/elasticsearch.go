package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/dmarkin/news-pulse/internal/models"
)

// Elastic implements ArticleSource and Store on Elasticsearch. Each
// record family lives in its own index under a shared prefix.
type Elastic struct {
	es     *elasticsearch.Client
	prefix string
	log    *slog.Logger
}

// NewElastic instantiates the Elasticsearch-backed store.
func NewElastic(addr, prefix string, logger *slog.Logger) (*Elastic, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Elastic{es: es, prefix: prefix, log: logger}, nil
}

func (c *Elastic) articlesIndex() string  { return c.prefix + "_articles" }
func (c *Elastic) clustersIndex() string  { return c.prefix + "_clusters" }
func (c *Elastic) topicsIndex() string    { return c.prefix + "_topics" }
func (c *Elastic) noveltyIndex() string   { return c.prefix + "_novelty" }
func (c *Elastic) sentimentIndex() string { return c.prefix + "_sentiment" }

// Ping checks if Elasticsearch is available.
func (c *Elastic) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health checks cluster health for the API health endpoint.
func (c *Elastic) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

func (c *Elastic) indexDoc(ctx context.Context, index, id string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

func (c *Elastic) getDoc(ctx context.Context, index, id string, out any) error {
	req := esapi.GetRequest{Index: index, DocumentID: id}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("get doc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return ErrNotFound
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("get doc failed: %s", strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode get response: %w", err)
	}
	if err := json.Unmarshal(parsed.Source, out); err != nil {
		return fmt.Errorf("decode source: %w", err)
	}
	return nil
}

func (c *Elastic) search(ctx context.Context, index string, body map[string]any, decode func(json.RawMessage) error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}

	for _, hit := range parsed.Hits.Hits {
		if err := decode(hit.Source); err != nil {
			return err
		}
	}
	return nil
}

// PutArticle indexes an article with its derived fields.
func (c *Elastic) PutArticle(ctx context.Context, a models.Article) error {
	return c.indexDoc(ctx, c.articlesIndex(), a.ID, a)
}

// ListArticles returns articles published inside [from, to], newest
// last, optionally restricted to one category.
func (c *Elastic) ListArticles(ctx context.Context, from, to time.Time, category string) ([]models.Article, error) {
	filters := []map[string]any{
		{
			"range": map[string]any{
				"published_at": map[string]any{
					"gte": from.UTC().Format(time.RFC3339),
					"lte": to.UTC().Format(time.RFC3339),
				},
			},
		},
	}
	if category != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"category": category},
		})
	}

	body := map[string]any{
		"size": 10_000,
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
		"sort": []map[string]any{
			{"published_at": map[string]any{"order": "asc"}},
		},
	}

	var out []models.Article
	err := c.search(ctx, c.articlesIndex(), body, func(src json.RawMessage) error {
		var a models.Article
		if err := json.Unmarshal(src, &a); err != nil {
			return fmt.Errorf("decode article: %w", err)
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Elastic) GetArticle(ctx context.Context, id string) (models.Article, error) {
	var a models.Article
	if err := c.getDoc(ctx, c.articlesIndex(), id, &a); err != nil {
		return models.Article{}, err
	}
	return a, nil
}

func (c *Elastic) SaveClusters(ctx context.Context, clusters []models.DuplicateCluster) error {
	for _, cl := range clusters {
		if err := c.indexDoc(ctx, c.clustersIndex(), cl.ID, cl); err != nil {
			return fmt.Errorf("save cluster %s: %w", cl.ID, err)
		}
	}
	return nil
}

func (c *Elastic) SaveTopicRecords(ctx context.Context, records []models.TopicRecord) error {
	for _, r := range records {
		if err := c.indexDoc(ctx, c.topicsIndex(), r.Label, r); err != nil {
			return fmt.Errorf("save topic %s: %w", r.Label, err)
		}
	}
	return nil
}

func (c *Elastic) SaveNoveltyScore(ctx context.Context, score models.NoveltyScore) error {
	return c.indexDoc(ctx, c.noveltyIndex(), score.ArticleID, score)
}

func (c *Elastic) AppendSentimentPoints(ctx context.Context, points []models.SentimentPoint) error {
	for _, p := range points {
		id := p.Scope + "|" + p.Date
		if err := c.indexDoc(ctx, c.sentimentIndex(), id, p); err != nil {
			return fmt.Errorf("save sentiment point %s: %w", id, err)
		}
	}
	return nil
}

func (c *Elastic) Clusters(ctx context.Context, from, to time.Time) ([]models.DuplicateCluster, error) {
	body := map[string]any{
		"size": 10_000,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					{
						"range": map[string]any{
							"bucket_start": map[string]any{
								"gte": from.UTC().Format(time.RFC3339),
								"lte": to.UTC().Format(time.RFC3339),
							},
						},
					},
				},
			},
		},
	}

	var out []models.DuplicateCluster
	err := c.search(ctx, c.clustersIndex(), body, func(src json.RawMessage) error {
		var cl models.DuplicateCluster
		if err := json.Unmarshal(src, &cl); err != nil {
			return fmt.Errorf("decode cluster: %w", err)
		}
		out = append(out, cl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Elastic) TopicRecords(ctx context.Context) ([]models.TopicRecord, error) {
	body := map[string]any{
		"size":  10_000,
		"query": map[string]any{"match_all": map[string]any{}},
		"sort": []map[string]any{
			{"label": map[string]any{"order": "asc"}},
		},
	}

	var out []models.TopicRecord
	err := c.search(ctx, c.topicsIndex(), body, func(src json.RawMessage) error {
		var r models.TopicRecord
		if err := json.Unmarshal(src, &r); err != nil {
			return fmt.Errorf("decode topic record: %w", err)
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Elastic) TopicRecord(ctx context.Context, label string) (models.TopicRecord, error) {
	var r models.TopicRecord
	if err := c.getDoc(ctx, c.topicsIndex(), label, &r); err != nil {
		return models.TopicRecord{}, err
	}
	return r, nil
}

func (c *Elastic) SentimentPoints(ctx context.Context, scope string, fromDate, toDate string) ([]models.SentimentPoint, error) {
	filters := []map[string]any{
		{"term": map[string]any{"scope": scope}},
	}

	dateRange := map[string]any{}
	if fromDate != "" {
		dateRange["gte"] = fromDate
	}
	if toDate != "" {
		dateRange["lte"] = toDate
	}
	if len(dateRange) > 0 {
		filters = append(filters, map[string]any{
			"range": map[string]any{"date": dateRange},
		})
	}

	body := map[string]any{
		"size": 10_000,
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
		"sort": []map[string]any{
			{"date": map[string]any{"order": "asc"}},
		},
	}

	var out []models.SentimentPoint
	err := c.search(ctx, c.sentimentIndex(), body, func(src json.RawMessage) error {
		var p models.SentimentPoint
		if err := json.Unmarshal(src, &p); err != nil {
			return fmt.Errorf("decode sentiment point: %w", err)
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Elastic) NoveltyScore(ctx context.Context, articleID string) (models.NoveltyScore, error) {
	var s models.NoveltyScore
	if err := c.getDoc(ctx, c.noveltyIndex(), articleID, &s); err != nil {
		return models.NoveltyScore{}, err
	}
	return s, nil
}

// DeleteArticlesOlderThan removes articles past the retention horizon
// using batched delete-by-query, looping until a batch comes back
// smaller than batchSize.
func (c *Elastic) DeleteArticlesOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	return c.deleteOlderThan(ctx, c.articlesIndex(), "published_at", cutoff, batchSize)
}

// DeleteTopicsOlderThan removes topic records whose latest mention is
// past the retention horizon.
func (c *Elastic) DeleteTopicsOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	return c.deleteOlderThan(ctx, c.topicsIndex(), "latest_seen", cutoff, batchSize)
}

// DeleteSentimentOlderThan removes frozen sentiment points for dates
// past the retention horizon.
func (c *Elastic) DeleteSentimentOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC().Format("2006-01-02")
	return c.deleteOlderThan(ctx, c.sentimentIndex(), "date", cutoff, batchSize)
}

// DeleteClustersOlderThan removes clusters whose bucket ended before
// the retention horizon.
func (c *Elastic) DeleteClustersOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	return c.deleteOlderThan(ctx, c.clustersIndex(), "bucket_end", cutoff, batchSize)
}

func (c *Elastic) deleteOlderThan(ctx context.Context, index, field, cutoff string, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					field: map[string]any{
						"lte": cutoff,
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{index},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}
