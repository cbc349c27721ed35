// Package chat defines the conversation types shared by every layer of
// ragchat: utterances, the append-only transcript, the explicit session
// state passed through the turn controller, the chat model identifiers, and
// the service error taxonomy.
package chat

// Role identifies the author of an utterance.
type Role string

const (
	// RoleSystem is a non-conversational directive steering the model.
	RoleSystem Role = "system"
	// RoleUser is a message typed by the human operator.
	RoleUser Role = "user"
	// RoleAssistant is a reply produced by the completion service.
	RoleAssistant Role = "assistant"
)

// Utterance is a single immutable entry in a conversation.
type Utterance struct {
	// Role is the author of the utterance.
	Role Role `json:"role"`
	// Content is the text of the utterance.
	Content string `json:"content"`
}

// SystemUtterance returns a system-role utterance.
func SystemUtterance(content string) Utterance {
	return Utterance{Role: RoleSystem, Content: content}
}

// UserUtterance returns a user-role utterance.
func UserUtterance(content string) Utterance {
	return Utterance{Role: RoleUser, Content: content}
}

// AssistantUtterance returns an assistant-role utterance.
func AssistantUtterance(content string) Utterance {
	return Utterance{Role: RoleAssistant, Content: content}
}

// Transcript is the append-only history of one session. The zero value is an
// empty transcript. Append never mutates the receiver, so a Transcript held
// by a caller is stable even after the controller extends it.
type Transcript struct {
	entries []Utterance
}

// NewTranscript returns a transcript holding a copy of entries.
func NewTranscript(entries ...Utterance) Transcript {
	return Transcript{entries: append([]Utterance(nil), entries...)}
}

// Append returns a new Transcript with u added at the end.
func (t Transcript) Append(u Utterance) Transcript {
	next := make([]Utterance, len(t.entries), len(t.entries)+1)
	copy(next, t.entries)
	return Transcript{entries: append(next, u)}
}

// Len returns the number of utterances in the transcript.
func (t Transcript) Len() int { return len(t.entries) }

// Utterances returns a copy of the transcript entries, oldest first.
func (t Transcript) Utterances() []Utterance {
	return append([]Utterance(nil), t.entries...)
}

// Last returns the most recent utterance and false when the transcript is empty.
func (t Transcript) Last() (Utterance, bool) {
	if len(t.entries) == 0 {
		return Utterance{}, false
	}
	return t.entries[len(t.entries)-1], true
}
