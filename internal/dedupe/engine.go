package dedupe

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/dmarkin/news-pulse/internal/models"
	"github.com/dmarkin/news-pulse/internal/processing"
)

// Scorer computes similarity between two normalized texts. An error for
// a single pair downgrades that pair to "no match" instead of failing
// the batch.
type Scorer func(a, b string) (float64, error)

// DefaultScorer wraps processing.Ratio as a Scorer.
func DefaultScorer(a, b string) (float64, error) {
	return processing.Ratio(a, b), nil
}

// Engine clusters articles inside one time bucket by pairwise
// similarity. Results are fully deterministic for a given input set,
// threshold and strategy, so re-running a batch is idempotent.
type Engine struct {
	threshold float64
	strategy  models.MergeStrategy
	scorer    Scorer
}

// NewEngine builds an engine. threshold outside (0,1] or an unknown
// strategy is a configuration error.
func NewEngine(threshold float64, strategy models.MergeStrategy, scorer Scorer) (*Engine, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v out of (0,1]", threshold)
	}
	switch strategy {
	case models.PreferCredible, models.PreferComplete, models.Combine:
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", strategy)
	}
	if scorer == nil {
		scorer = DefaultScorer
	}
	return &Engine{threshold: threshold, strategy: strategy, scorer: scorer}, nil
}

// Cluster groups the batch into duplicate clusters. Articles joining no
// cluster are omitted; a cluster always has at least two members.
func (e *Engine) Cluster(batch []models.Article) []models.DuplicateCluster {
	if len(batch) < 2 {
		return nil
	}

	// Sort by ID so indices, and therefore union-find outcomes, do not
	// depend on input order.
	articles := make([]models.Article, len(batch))
	copy(articles, batch)
	sort.Slice(articles, func(i, j int) bool { return articles[i].ID < articles[j].ID })

	uf := newUnionFind(len(articles))
	scores := make(map[string]float64)

	for i := 0; i < len(articles); i++ {
		if articles[i].NormalizedText == "" {
			continue
		}
		for j := i + 1; j < len(articles); j++ {
			if articles[j].NormalizedText == "" {
				continue
			}
			sim, err := e.scorer(articles[i].NormalizedText, articles[j].NormalizedText)
			if err != nil {
				sim = 0
			}
			if sim >= e.threshold {
				uf.union(i, j)
				scores[pairKey(articles[i].ID, articles[j].ID)] = sim
			}
		}
	}

	groups := make(map[int][]int)
	for i := range articles {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	roots := make([]int, 0, len(groups))
	for root, members := range groups {
		if len(members) >= 2 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	clusters := make([]models.DuplicateCluster, 0, len(roots))
	for _, root := range roots {
		members := make([]models.Article, 0, len(groups[root]))
		for _, idx := range groups[root] {
			members = append(members, articles[idx])
		}
		clusters = append(clusters, e.buildCluster(members, scores))
	}

	return clusters
}

func (e *Engine) buildCluster(members []models.Article, scores map[string]float64) models.DuplicateCluster {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)

	similarity := make(map[string]float64)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			key := pairKey(ids[i], ids[j])
			if sim, ok := scores[key]; ok {
				similarity[key] = sim
			}
		}
	}

	cluster := models.DuplicateCluster{
		ID:               clusterID(ids),
		MemberIDs:        ids,
		Similarity:       similarity,
		Strategy:         e.strategy,
		RepresentativeID: e.selectRepresentative(members).ID,
	}

	if e.strategy == models.Combine {
		cluster.Combined = true
		cluster.CombinedBody = combineBodies(members)
		cluster.Sources = uniqueSources(members)
		cluster.DuplicateCount = len(members) - 1
	}

	return cluster
}

// selectRepresentative applies the strategy's primary key, then the
// shared tie-break chain: longer normalized text, earlier publish time,
// smaller ID. The chain is a total order, which makes the choice stable
// across runs.
func (e *Engine) selectRepresentative(members []models.Article) models.Article {
	best := members[0]
	for _, m := range members[1:] {
		if e.better(m, best) {
			best = m
		}
	}
	return best
}

func (e *Engine) better(a, b models.Article) bool {
	if e.strategy == models.PreferCredible && a.SourceCredibility != b.SourceCredibility {
		return a.SourceCredibility > b.SourceCredibility
	}
	if la, lb := len(a.NormalizedText), len(b.NormalizedText); la != lb {
		return la > lb
	}
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.Before(b.PublishedAt)
	}
	return a.ID < b.ID
}

// combineBodies merges the unique sentences of every member, in member
// ID order, first occurrence wins.
func combineBodies(members []models.Article) string {
	ordered := make([]models.Article, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	seen := make(map[string]struct{})
	var sentences []string
	for _, m := range ordered {
		for _, s := range splitSentences(m.Body) {
			key := strings.ToLower(s)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			sentences = append(sentences, s)
		}
	}
	return strings.Join(sentences, " ")
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func uniqueSources(members []models.Article) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range members {
		if m.SourceName == "" {
			continue
		}
		if _, dup := seen[m.SourceName]; dup {
			continue
		}
		seen[m.SourceName] = struct{}{}
		out = append(out, m.SourceName)
	}
	sort.Strings(out)
	return out
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// clusterID hashes the sorted member IDs, so the same membership always
// produces the same cluster ID.
func clusterID(sortedIDs []string) string {
	s := sha1.Sum([]byte(strings.Join(sortedIDs, "|")))
	return hex.EncodeToString(s[:])
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}
