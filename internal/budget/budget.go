// Package budget provides token estimation for chat requests. Completion
// backends use different tokenizers, so this package uses a conservative
// character-based heuristic: 1 token ≈ 4 characters (English prose).
//
// Estimates are reported in logs and metrics only. The full transcript is
// always sent; nothing is trimmed.
package budget

import (
	"github.com/54b3r/ragchat-go/internal/chat"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// perMessageOverhead approximates the role/framing tokens most chat APIs
	// add to each message.
	perMessageOverhead = 4

	// DefaultMaxContextTokens is the input size above which a request is
	// logged as likely to overflow smaller context windows (gpt-35-turbo).
	DefaultMaxContextTokens = 12000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateUtterances returns the estimated total token count for a slice of
// utterances, summing role + content plus per-message framing for each.
func EstimateUtterances(us []chat.Utterance) int {
	total := 0
	for _, u := range us {
		total += perMessageOverhead
		total += Estimate(string(u.Role))
		total += Estimate(u.Content)
	}
	return total
}

// Exceeds reports whether tokens is over maxTokens. A non-positive maxTokens
// falls back to DefaultMaxContextTokens.
func Exceeds(tokens, maxTokens int) bool {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	return tokens > maxTokens
}
