// Package prompt builds the per-turn system prompt from the user's base
// instruction and the passages retrieved for the turn.
package prompt

import (
	"strings"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// RetrievedHeader separates the base instruction from the passage block.
const RetrievedHeader = "## Retrieved documents: "

// DefaultInstruction seeds the editable base instruction for new sessions.
const DefaultInstruction = "You are an AI assistant that helps people find information. " +
	"Answer using only the retrieved documents. If the documents do not contain the answer, say you don't know. " +
	"Cite the sourcepage of each document you use.\n"

// GreetingSuffix is appended to the base instruction for the first-load
// greeting request.
const GreetingSuffix = " and introduce yourself for first greeting."

// StaticGreeting is shown when no model greeting is available.
const StaticGreeting = "Hello! I'm your AI assistant. How can I help you today?"

// Assemble returns instruction followed by RetrievedHeader and one line per
// passage, in the order given:
//
//	sourcepage: <label>, content: <text>\n
//
// With no passages the result is instruction + RetrievedHeader. Assemble is
// pure and never reads a previously assembled prompt.
func Assemble(instruction string, passages []rag.Passage) string {
	var b strings.Builder
	b.Grow(len(instruction) + len(RetrievedHeader) + 64*len(passages))
	b.WriteString(instruction)
	b.WriteString(RetrievedHeader)
	for _, p := range passages {
		b.WriteString(FormatPassage(p))
	}
	return b.String()
}

// FormatPassage renders one passage line, including the trailing newline.
func FormatPassage(p rag.Passage) string {
	return "sourcepage: " + p.SourceLabel + ", content: " + p.Content + "\n"
}

// Greeting returns the instruction used for the greeting request.
func Greeting(instruction string) string {
	return instruction + GreetingSuffix
}
