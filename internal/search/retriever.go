package search

import (
	"sort"

	"github.com/fieldline/deskbot/internal/corpus"
)

// Per-source scoring profiles. Corrections are weighted far above the other
// sources: a matching correction records a mistake this bot already made once.
var (
	kbWeights = Weights{
		PhrasePrimary: 100, PhraseSecondary: 50,
		KeywordPrimary: 20, PrimaryPrefix: 10, KeywordCategory: 10,
		BodyPerMatch: 2, BodyCap: 10, Coverage: 5,
	}
	ticketWeights = Weights{
		PhrasePrimary: 100, PhraseSecondary: 50, PhraseAnswer: 60,
		KeywordPrimary: 20, PrimaryPrefix: 10,
		BodyPerMatch: 2, BodyCap: 10,
		AnswerPerMatch: 3, AnswerCap: 15, Coverage: 5,
	}
	pageWeights = Weights{
		PhrasePrimary: 100, PhraseSecondary: 50,
		KeywordPrimary: 20, PrimaryPrefix: 10, KeywordCategory: 10,
		BodyPerMatch: 2, BodyCap: 10, Coverage: 5,
	}
	correctionWeights = Weights{
		PhrasePrimary: 150, PhraseAnswer: 100,
		KeywordPrimary: 30, PrimaryPrefix: 15,
		AnswerPerMatch: 3, AnswerCap: 15, Coverage: 10,
	}
)

// resolvedTicketBonus rewards closed tickets with recorded resolutions; their
// answers are known good.
const resolvedTicketBonus = 5

// Limits bounds retrieval per source.
type Limits struct {
	KB          int
	Tickets     int
	Pages       int
	Corrections int

	// MinScore filters weak matches. Corrections use their own, higher
	// floor: a false correction is costlier than a false KB hit.
	MinScore           int
	CorrectionMinScore int
}

// DefaultLimits are the production retrieval bounds.
func DefaultLimits() Limits {
	return Limits{
		KB:                 3,
		Tickets:            2,
		Pages:              2,
		Corrections:        2,
		MinScore:           15,
		CorrectionMinScore: 20,
	}
}

// Scored pairs a corpus item index with its relevance score.
type Scored[T any] struct {
	Item  T
	Score int
}

// Result is the per-source outcome of one retrieval, each list ordered by
// descending score.
type Result struct {
	Corrections []Scored[corpus.Correction]
	KB          []Scored[corpus.Article]
	Tickets     []Scored[corpus.Ticket]
	Pages       []Scored[corpus.Page]

	// PricingOnly is set when the pricing-intent override rerouted
	// retrieval to the designated pricing page.
	PricingOnly bool
}

// Empty reports whether no source returned anything.
func (r Result) Empty() bool {
	return len(r.Corrections) == 0 && len(r.KB) == 0 && len(r.Tickets) == 0 && len(r.Pages) == 0
}

// Retriever ranks the four corpora against free-text queries.
type Retriever struct {
	store  *corpus.Store
	limits Limits
}

// NewRetriever creates a Retriever over store. Zero-valued limits fields fall
// back to the defaults.
func NewRetriever(store *corpus.Store, limits Limits) *Retriever {
	def := DefaultLimits()
	if limits.KB <= 0 {
		limits.KB = def.KB
	}
	if limits.Tickets <= 0 {
		limits.Tickets = def.Tickets
	}
	if limits.Pages <= 0 {
		limits.Pages = def.Pages
	}
	if limits.Corrections <= 0 {
		limits.Corrections = def.Corrections
	}
	if limits.MinScore <= 0 {
		limits.MinScore = def.MinScore
	}
	if limits.CorrectionMinScore <= 0 {
		limits.CorrectionMinScore = def.CorrectionMinScore
	}
	return &Retriever{store: store, limits: limits}
}

// Retrieve scores every corpus against query and returns the top items per
// source above the per-source floor. Ties keep corpus order (stable sort), so
// identical inputs produce identical results.
//
// Pricing queries are special-cased: only pricing-page items are returned and
// KB/ticket results are suppressed, because pricing must come from the one
// authoritative source. Corrections still apply; they outrank everything.
func (r *Retriever) Retrieve(query string) Result {
	phrase := Normalize(query)
	keywords := ExtractKeywords(query)

	var res Result
	res.Corrections = topK(r.store.Corrections(), r.limits.Corrections, r.limits.CorrectionMinScore,
		func(c corpus.Correction) int {
			return correctionWeights.Score(phrase, keywords, Fields{
				Primary: c.Question,
				Answer:  c.Correction,
			})
		})

	if Classify(query) == IntentPricing {
		res.PricingOnly = true
		for _, p := range r.store.Pages() {
			if isPricingPage(p.URL) {
				res.Pages = append(res.Pages, Scored[corpus.Page]{Item: p})
			}
		}
		return res
	}

	res.KB = topK(r.store.Articles(), r.limits.KB, r.limits.MinScore,
		func(a corpus.Article) int {
			return kbWeights.Score(phrase, keywords, Fields{
				Primary:   a.Title,
				Secondary: a.Content,
				Category:  a.Category,
				Bodies:    []string{a.Content},
			})
		})

	res.Tickets = topK(r.store.Tickets(), r.limits.Tickets, r.limits.MinScore,
		func(t corpus.Ticket) int {
			bonus := 0
			if t.Status == "Closed" && t.Resolution != "" {
				bonus = resolvedTicketBonus
			}
			return ticketWeights.Score(phrase, keywords, Fields{
				Primary:   t.Subject,
				Secondary: t.Description,
				Answer:    t.Resolution,
				Bodies:    []string{t.Description},
				Bonus:     bonus,
			})
		})

	res.Pages = topK(r.store.Pages(), r.limits.Pages, r.limits.MinScore,
		func(p corpus.Page) int {
			return pageWeights.Score(phrase, keywords, Fields{
				Primary:   p.Title,
				Secondary: p.Content,
				Category:  p.URL,
				Bodies:    []string{p.Content},
			})
		})

	return res
}

// topK scores items, filters by minScore, stable-sorts by descending score,
// and truncates to limit.
func topK[T any](items []T, limit, minScore int, score func(T) int) []Scored[T] {
	var scored []Scored[T]
	for _, item := range items {
		s := score(item)
		if s < minScore {
			continue
		}
		scored = append(scored, Scored[T]{Item: item, Score: s})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
