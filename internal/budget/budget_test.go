package budget

import (
	"strings"
	"testing"

	"github.com/54b3r/ragchat-go/internal/chat"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateUtterances(t *testing.T) {
	t.Parallel()
	us := []chat.Utterance{
		chat.SystemUtterance("You are helpful."),
		chat.UserUtterance("hello world"),
		chat.AssistantUtterance("Hi! How can I help?"),
	}
	// system: 4 + 1 + 4 = 9; user: 4 + 1 + 2 = 7; assistant: 4 + 2 + 4 = 10
	if got := EstimateUtterances(us); got != 26 {
		t.Errorf("EstimateUtterances = %d, want 26", got)
	}
	if got := EstimateUtterances(nil); got != 0 {
		t.Errorf("EstimateUtterances(nil) = %d, want 0", got)
	}
}

func Test_Exceeds(t *testing.T) {
	t.Parallel()
	cases := []struct {
		tokens, max int
		want        bool
	}{
		{100, 200, false},
		{200, 200, false},
		{201, 200, true},
		{DefaultMaxContextTokens + 1, 0, true},
		{DefaultMaxContextTokens, -1, false},
	}
	for _, tc := range cases {
		if got := Exceeds(tc.tokens, tc.max); got != tc.want {
			t.Errorf("Exceeds(%d, %d) = %v, want %v", tc.tokens, tc.max, got, tc.want)
		}
	}
}
