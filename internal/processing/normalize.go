package processing

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	urlRegex    = regexp.MustCompile(`https?://[^\s]+`)
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s']+`)
	tagHint     = regexp.MustCompile(`<\s*[a-zA-Z!/]`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "from": {}, "as": {}, "is": {}, "was": {},
	"are": {}, "were": {}, "been": {}, "be": {}, "has": {}, "have": {},
	"had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {},
	"should": {}, "could": {}, "may": {}, "might": {}, "can": {},
	"it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
}

// negations survive token filtering because they flip meaning downstream.
var negations = map[string]struct{}{
	"no": {}, "not": {}, "nor": {}, "never": {}, "without": {},
}

// Normalized is the output of text normalization: a flat lowercased
// string for similarity comparison and a filtered token slice for
// topic extraction.
type Normalized struct {
	Text   string
	Tokens []string
}

// Empty reports whether the input carried no usable signal.
func (n Normalized) Empty() bool {
	return n.Text == ""
}

// Normalize canonicalizes an article's title and body. It is total:
// any input, including markup soup or empty strings, yields a valid
// (possibly empty) result.
func Normalize(title, body string) Normalized {
	flat := clean(title) + " " + clean(body)
	flat = strings.ToLower(strings.TrimSpace(whitespace.ReplaceAllString(flat, " ")))

	if flat == "" {
		return Normalized{}
	}

	fields := strings.Fields(flat)
	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		tok = strings.Trim(tok, "'")
		if tok == "" {
			continue
		}
		if _, neg := negations[tok]; neg {
			tokens = append(tokens, tok)
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		tokens = append(tokens, tok)
	}

	return Normalized{Text: flat, Tokens: tokens}
}

// clean strips markup, entities, URLs and punctuation from one field.
func clean(input string) string {
	if input == "" {
		return ""
	}
	decoded := stripMarkup(input)
	decoded = html.UnescapeString(decoded)
	decoded = urlRegex.ReplaceAllString(decoded, " ")
	decoded = punctuation.ReplaceAllString(decoded, " ")
	return decoded
}

// stripMarkup extracts visible text when the input looks like HTML.
// Parse failures fall back to the raw input; normalization never errors.
func stripMarkup(input string) string {
	if !tagHint.MatchString(input) {
		return input
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return input
	}
	doc.Find("script,style").Remove()
	return doc.Text()
}
