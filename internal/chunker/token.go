package chunker

import "strings"

// EstimateTokens approximates the token count of text from its word
// count, at a flat 1.33 tokens per word. Display sizing only needs the
// order of magnitude, not real tokenization.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	tokens := int(float64(words) * 1.33)
	if tokens == 0 && strings.TrimSpace(text) != "" {
		tokens = 1
	}
	return tokens
}
