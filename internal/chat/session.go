package chat

import "github.com/google/uuid"

// Session is the explicit per-session state threaded through the turn
// controller. The interactive shell owns persistence of the value between
// turns; the controller receives it and returns the updated copy.
type Session struct {
	// ID correlates log lines for one interactive session.
	ID string
	// Instruction is the user-editable base system instruction. Each turn
	// assembles its system prompt from this value, never from the previous
	// turn's assembled prompt.
	Instruction string
	// Transcript is the user/assistant history of the session.
	Transcript Transcript
	// Greeting is the first-load greeting shown above the transcript.
	// It is display-only and never part of the Transcript.
	Greeting string
}

// NewSession returns an empty session with a fresh ID and the given base
// instruction.
func NewSession(instruction string) Session {
	return Session{
		ID:          uuid.NewString(),
		Instruction: instruction,
	}
}
