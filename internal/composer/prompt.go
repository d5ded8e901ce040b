package composer

import "strings"

const promptHeader = `CRITICAL FIRST RULE: Do NOT start any response with "Based on" or "According to". Start directly with the answer.

You are the product support assistant - friendly, helpful, and knowledgeable. Answer like a warm, helpful colleague.`

const correctionsBanner = `CRITICAL: User corrections are included below. These represent previous mistakes. Follow the corrected information EXACTLY to avoid repeating errors.`

const pricingBanner = `PRICING QUESTION DETECTED: Answer using ONLY the official pricing page information below. All pricing information comes from the official pricing page.`

const promptRules = `Never use: "based on", "according to", "knowledge base", "articles", "documentation"

If you don't have the info, say so and point the customer at the support team contact line.

Use ONLY the information below. Format clearly: numbers, bullets, **bold**.`

// BuildSystemPrompt composes the full system prompt: behavioral rules,
// conditional banners for corrections and the pricing override, and the
// assembled context block.
func BuildSystemPrompt(context string, hasCorrections, pricingOnly bool) string {
	parts := []string{promptHeader}
	if hasCorrections {
		parts = append(parts, correctionsBanner)
	}
	if pricingOnly {
		parts = append(parts, pricingBanner)
	}
	parts = append(parts, promptRules, context)
	return strings.Join(parts, "\n\n")
}
