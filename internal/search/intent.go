package search

import (
	"regexp"
	"strings"
)

// pricingRe detects questions that must be answered from the authoritative
// pricing page only. KB articles and old tickets routinely contain stale
// dollar amounts.
var pricingRe = regexp.MustCompile(`(?i)\b(price|prices|pricing|cost|costs|how much|payment|payments|subscription|subscriptions|fee|fees|monthly|plan|plans)\b`)

// pricingURLFragment identifies the designated pricing page in the page corpus.
const pricingURLFragment = "/pricing"

// Intent classifies a query for retrieval routing.
type Intent int

const (
	IntentGeneral Intent = iota
	IntentPricing
)

// Classify returns the retrieval intent for a query.
func Classify(query string) Intent {
	if pricingRe.MatchString(query) {
		return IntentPricing
	}
	return IntentGeneral
}

func isPricingPage(url string) bool {
	return strings.Contains(strings.ToLower(url), pricingURLFragment)
}
