package topics

import (
	"fmt"
	"math"
	"sort"

	"github.com/dmarkin/news-pulse/internal/models"
)

// Vectorizer turns article token streams into weighted term vectors
// and picks the top-weighted terms as candidate topic labels.
type Vectorizer struct {
	topK       int
	minDocFreq int
	minTermLen int
}

// NewVectorizer validates and builds a vectorizer. minDocFreq is the
// smallest number of documents a term must appear in to count as a
// topic candidate; rarer terms are noise.
func NewVectorizer(topK, minDocFreq int) (*Vectorizer, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if minDocFreq < 1 {
		return nil, fmt.Errorf("minDocFreq must be at least 1, got %d", minDocFreq)
	}
	return &Vectorizer{topK: topK, minDocFreq: minDocFreq, minTermLen: 3}, nil
}

type weighted struct {
	term   string
	weight float64
}

// Labels computes TF-IDF weights against the given corpus and returns
// the top-K labels per article, keyed by article ID. Articles with no
// tokens are omitted. Document frequency is computed over the whole
// corpus passed in, which callers restrict to the retention window.
func (v *Vectorizer) Labels(corpus []models.Article) map[string][]string {
	if len(corpus) == 0 {
		return nil
	}

	docFreq := make(map[string]int)
	for _, a := range corpus {
		seen := make(map[string]struct{}, len(a.Tokens))
		for _, tok := range a.Tokens {
			if len([]rune(tok)) < v.minTermLen {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			docFreq[tok]++
		}
	}

	n := float64(len(corpus))
	out := make(map[string][]string, len(corpus))

	for _, a := range corpus {
		if len(a.Tokens) == 0 {
			continue
		}

		termCount := make(map[string]int)
		total := 0
		for _, tok := range a.Tokens {
			if len([]rune(tok)) < v.minTermLen {
				continue
			}
			termCount[tok]++
			total++
		}
		if total == 0 {
			continue
		}

		candidates := make([]weighted, 0, len(termCount))
		for term, count := range termCount {
			df := docFreq[term]
			if df < v.minDocFreq {
				continue
			}
			tf := float64(count) / float64(total)
			idf := math.Log(1 + n/float64(df))
			candidates = append(candidates, weighted{term: term, weight: tf * idf})
		}
		if len(candidates) == 0 {
			continue
		}

		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].weight == candidates[j].weight {
				return candidates[i].term < candidates[j].term
			}
			return candidates[i].weight > candidates[j].weight
		})

		k := v.topK
		if k > len(candidates) {
			k = len(candidates)
		}
		labels := make([]string, 0, k)
		for _, c := range candidates[:k] {
			labels = append(labels, c.term)
		}
		out[a.ID] = labels
	}

	return out
}
