package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmarkin/news-pulse/internal/models"
)

// ErrUnavailable signals that the delegate cannot classify right now.
// Callers fall back to the lexicon; it is never surfaced as a batch
// failure.
var ErrUnavailable = errors.New("sentiment delegate unavailable")

// Classifier scores the sentiment of a text as a probability triple
// summing to 1.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.SentimentScore, error)
}

// maxClassifyRunes caps the text sent to any classifier.
const maxClassifyRunes = 1000

// Delegate calls an external sentiment model over HTTP. Timeouts and
// transport errors map to ErrUnavailable.
type Delegate struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewDelegate builds a delegate client for the given endpoint.
func NewDelegate(url string, timeout time.Duration) *Delegate {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Delegate{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

type delegateRequest struct {
	Text string `json:"text"`
}

type delegateResponse struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// Classify posts the text to the delegate endpoint.
func (d *Delegate) Classify(ctx context.Context, text string) (models.SentimentScore, error) {
	payload, err := json.Marshal(delegateRequest{Text: truncate(text, maxClassifyRunes)})
	if err != nil {
		return models.SentimentScore{}, fmt.Errorf("marshal sentiment request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return models.SentimentScore{}, fmt.Errorf("build sentiment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := d.client.Do(req)
	if err != nil {
		return models.SentimentScore{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return models.SentimentScore{}, fmt.Errorf("%w: status %s", ErrUnavailable, res.Status)
	}

	var parsed delegateResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return models.SentimentScore{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	sum := parsed.Positive + parsed.Negative + parsed.Neutral
	if sum <= 0 {
		return models.SentimentScore{}, fmt.Errorf("%w: degenerate triple", ErrUnavailable)
	}

	return models.SentimentScore{
		Positive: parsed.Positive / sum,
		Negative: parsed.Negative / sum,
		Neutral:  parsed.Neutral / sum,
		Compound: (parsed.Positive - parsed.Negative) / sum,
		Model:    "delegate",
	}, nil
}

// Lexicon is a deterministic rule-based classifier counting polarity
// words. It is the load-bearing path in offline and test environments,
// so it satisfies the same Classifier contract as the delegate.
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

var defaultPositive = []string{
	"good", "great", "excellent", "positive", "success", "win",
	"improve", "growth", "hope", "better", "gain", "strong", "recover",
}

var defaultNegative = []string{
	"bad", "poor", "negative", "fail", "loss", "worse", "decline",
	"crisis", "concern", "threat", "drop", "weak", "fear",
}

// NewLexicon builds the classifier with the built-in word lists.
func NewLexicon() *Lexicon {
	return &Lexicon{
		positive: toSet(defaultPositive),
		negative: toSet(defaultNegative),
	}
}

type lexiconFile struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// LoadLexicon reads polarity word lists from a YAML file, replacing
// the built-in defaults.
func LoadLexicon(path string) (*Lexicon, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}

	var parsed lexiconFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if len(parsed.Positive) == 0 || len(parsed.Negative) == 0 {
		return nil, fmt.Errorf("lexicon %s needs both positive and negative word lists", path)
	}

	return &Lexicon{
		positive: toSet(parsed.Positive),
		negative: toSet(parsed.Negative),
	}, nil
}

// Classify counts polarity words and normalizes to a triple. Text with
// no polarity signal scores an even split.
func (l *Lexicon) Classify(_ context.Context, text string) (models.SentimentScore, error) {
	pos, neg := 0, 0
	for _, tok := range strings.Fields(strings.ToLower(truncate(text, maxClassifyRunes))) {
		tok = strings.Trim(tok, ".,!?:;\"'()")
		if _, ok := l.positive[tok]; ok {
			pos++
		}
		if _, ok := l.negative[tok]; ok {
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		// No polarity signal: a neutral-dominant split, so the day
		// aggregation counts the article as neutral.
		return models.SentimentScore{
			Positive: 0.33,
			Negative: 0.33,
			Neutral:  0.34,
			Compound: 0,
			Model:    "lexicon",
		}, nil
	}

	p := float64(pos) / float64(total)
	n := float64(neg) / float64(total)
	return models.SentimentScore{
		Positive: p,
		Negative: n,
		Neutral:  1 - p - n,
		Compound: p - n,
		Model:    "lexicon",
	}, nil
}

// Analyzer prefers the delegate and degrades to the lexicon when it is
// unavailable. Score is total: it always returns a valid triple.
type Analyzer struct {
	primary  Classifier
	fallback *Lexicon
	log      *slog.Logger
}

// NewAnalyzer wires the capability chain. primary may be nil, in which
// case every call uses the lexicon.
func NewAnalyzer(primary Classifier, fallback *Lexicon, log *slog.Logger) *Analyzer {
	if fallback == nil {
		fallback = NewLexicon()
	}
	return &Analyzer{primary: primary, fallback: fallback, log: log}
}

// Score classifies the text, falling back on any delegate failure.
func (a *Analyzer) Score(ctx context.Context, text string) models.SentimentScore {
	if a.primary != nil {
		score, err := a.primary.Classify(ctx, text)
		if err == nil {
			return score
		}
		if a.log != nil {
			a.log.Debug("sentiment delegate failed, using lexicon", slog.Any("err", err))
		}
	}

	score, _ := a.fallback.Classify(ctx, text)
	return score
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) > maxRunes {
		return string(r[:maxRunes])
	}
	return s
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return set
}
