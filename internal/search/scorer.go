package search

import "strings"

// Weights parameterizes the lexical scorer for one corpus. The historical
// implementation duplicated the scoring routine per source with slightly
// different constants; the constants live here instead and the routine is
// shared.
type Weights struct {
	PhrasePrimary   int // whole query found in the primary field
	PhraseSecondary int // whole query found in a secondary field
	PhraseAnswer    int // whole query found in the answer field
	KeywordPrimary  int // keyword found in the primary field
	PrimaryPrefix   int // extra when the primary field starts with the keyword
	KeywordCategory int // keyword found in the category/url field
	BodyPerMatch    int // per occurrence of a keyword in a body field
	BodyCap         int // ceiling on the occurrence bonus per keyword
	AnswerPerMatch  int // per occurrence of a keyword in the answer field
	AnswerCap       int // ceiling on the answer occurrence bonus per keyword
	Coverage        int // per distinct keyword that matched anywhere
}

// Fields is one corpus item flattened into the field roles the scorer
// understands. Callers lowercase nothing; the scorer normalizes. Missing
// fields are empty strings and simply contribute no score.
type Fields struct {
	Primary   string   // title / subject / question
	Secondary string   // description paired with the primary phrase bonus
	Answer    string   // resolution / correction text; weighted above bodies
	Category  string   // category or url; keyword-only matches
	Bodies    []string // long-form fields with capped occurrence bonuses
	Bonus     int      // flat per-item bonus (e.g. resolved ticket)
}

// Score computes the relevance of one item against a pre-normalized query
// phrase and its extracted keywords. A nil/empty keyword set scores zero:
// an all-stop-word query matches nothing, never everything.
func (w Weights) Score(phrase string, keywords []string, f Fields) int {
	if len(keywords) == 0 {
		return 0
	}

	primary := strings.ToLower(f.Primary)
	secondary := strings.ToLower(f.Secondary)
	answer := strings.ToLower(f.Answer)
	category := strings.ToLower(f.Category)
	bodies := make([]string, len(f.Bodies))
	for i, b := range f.Bodies {
		bodies[i] = strings.ToLower(b)
	}

	score := 0

	if phrase != "" {
		if strings.Contains(primary, phrase) {
			score += w.PhrasePrimary
		}
		if secondary != "" && strings.Contains(secondary, phrase) {
			score += w.PhraseSecondary
		}
		if answer != "" && strings.Contains(answer, phrase) {
			score += w.PhraseAnswer
		}
	}

	covered := 0
	for _, kw := range keywords {
		matched := false

		if strings.Contains(primary, kw) {
			score += w.KeywordPrimary
			if strings.HasPrefix(primary, kw) {
				score += w.PrimaryPrefix
			}
			matched = true
		}
		if category != "" && strings.Contains(category, kw) {
			score += w.KeywordCategory
		}
		for _, body := range bodies {
			n := countOccurrences(body, kw)
			if n > 0 {
				matched = true
			}
			score += min(n*w.BodyPerMatch, w.BodyCap)
		}
		if answer != "" {
			n := countOccurrences(answer, kw)
			if n > 0 {
				matched = true
			}
			score += min(n*w.AnswerPerMatch, w.AnswerCap)
		}
		if !matched && secondary != "" && strings.Contains(secondary, kw) {
			matched = true
		}

		if matched {
			covered++
		}
	}
	score += covered * w.Coverage

	score += f.Bonus
	return score
}
