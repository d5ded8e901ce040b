package search

import (
	"regexp"
	"strings"
)

// stopWords are tokens that carry no retrieval signal: articles, pronouns,
// auxiliary verbs, and question filler. Matching them would reward every
// document in the corpus.
var stopWords = map[string]struct{}{
	"how": {}, "do": {}, "i": {}, "the": {}, "a": {}, "an": {}, "to": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "from": {}, "can": {},
	"what": {}, "when": {}, "where": {}, "why": {}, "my": {}, "is": {},
	"are": {}, "it": {}, "this": {}, "that": {}, "and": {}, "or": {}, "but": {},
}

var punctRe = regexp.MustCompile(`[^\w\s]`)

// Normalize lowercases q and replaces punctuation with spaces. The result is
// the phrase used for whole-query substring matches.
func Normalize(q string) string {
	return strings.TrimSpace(punctRe.ReplaceAllString(strings.ToLower(q), " "))
}

// ExtractKeywords returns the scoring tokens of q: normalized, split on
// whitespace, with stop words and tokens of length <= 2 removed. An empty
// result means the query has no retrievable signal and every item must score
// zero.
func ExtractKeywords(q string) []string {
	var keywords []string
	for _, tok := range strings.Fields(Normalize(q)) {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		keywords = append(keywords, tok)
	}
	return keywords
}

// countOccurrences counts non-overlapping occurrences of keyword in text.
// Keywords are matched literally, so queries containing regex metacharacters
// ("c++", "$30") can never produce a malformed pattern.
func countOccurrences(text, keyword string) int {
	if keyword == "" {
		return 0
	}
	return strings.Count(text, keyword)
}
