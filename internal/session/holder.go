// Package session holds the single interactive session between turns and
// enforces its two-state machine: Idle (waiting for input) and Processing
// (one turn in flight). Both the HTTP server and the terminal UI persist
// their chat.Session through a Holder.
package session

import (
	"errors"
	"sync"

	"github.com/54b3r/ragchat-go/internal/chat"
)

// ErrBusy is returned when an action requires Idle but a turn is in flight.
var ErrBusy = errors.New("session: a turn is already in progress")

// State is the session's position in the Idle/Processing state machine.
type State string

const (
	// Idle means the session is waiting for user input.
	Idle State = "idle"
	// Processing means one turn is in flight.
	Processing State = "processing"
)

// Holder is a mutex-guarded store for one chat.Session.
type Holder struct {
	mu    sync.Mutex
	sess  chat.Session
	state State
}

// NewHolder returns an Idle holder for sess.
func NewHolder(sess chat.Session) *Holder {
	return &Holder{sess: sess, state: Idle}
}

// Snapshot returns a copy of the stored session and the current state.
func (h *Holder) Snapshot() (chat.Session, State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess, h.state
}

// Begin moves Idle→Processing and returns the session to run the turn on.
// It fails with ErrBusy if a turn is already in flight.
func (h *Holder) Begin() (chat.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Processing {
		return chat.Session{}, ErrBusy
	}
	h.state = Processing
	return h.sess, nil
}

// End stores the session produced by the turn and returns to Idle. It must
// be called exactly once after every successful Begin, including when the
// turn failed.
func (h *Holder) End(sess chat.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sess = sess
	h.state = Idle
}

// Update applies fn to the stored session. It is only allowed in Idle.
func (h *Holder) Update(fn func(chat.Session) chat.Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Processing {
		return ErrBusy
	}
	h.sess = fn(h.sess)
	return nil
}

// SetInstruction replaces the base instruction used by subsequent turns.
func (h *Holder) SetInstruction(instruction string) error {
	return h.Update(func(s chat.Session) chat.Session {
		s.Instruction = instruction
		return s
	})
}
