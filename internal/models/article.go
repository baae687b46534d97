package models

import "time"

// Article is the canonical article structure stored in Elasticsearch.
// Ingestion fills the raw fields; the analytics core populates
// NormalizedText and Sentiment and never mutates anything else.
type Article struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Body              string          `json:"body"`
	SourceName        string          `json:"source_name"`
	SourceCredibility float64         `json:"source_credibility"`
	PublishedAt       time.Time       `json:"published_at"`
	Category          string          `json:"category"`
	Language          string          `json:"language"`
	NormalizedText    string          `json:"normalized_text,omitempty"`
	Tokens            []string        `json:"tokens,omitempty"`
	Sentiment         *SentimentScore `json:"sentiment,omitempty"`
}

// SentimentScore is a probability triple summing to 1.
// Compound is positive minus negative, in [-1, 1].
type SentimentScore struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Compound float64 `json:"compound"`
	Model    string  `json:"model"`
}
