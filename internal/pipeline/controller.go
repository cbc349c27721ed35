// Package pipeline runs one chat turn end to end:
// embed → retrieve → assemble → respond → transcript update.
// Stages run strictly in order with no retries and no fallbacks; the first
// failure ends the turn.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/prompt"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// ErrEmptyInput is returned by Turn when the user input is empty or only
// whitespace. No stage runs and the session is unchanged.
var ErrEmptyInput = errors.New("pipeline: input must not be empty")

// Stage names one step of a turn, used in logs and metrics.
type Stage string

const (
	// StageEmbed is the embedding call.
	StageEmbed Stage = "embed"
	// StageRetrieve is the search call.
	StageRetrieve Stage = "retrieve"
	// StageGenerate is the completion call.
	StageGenerate Stage = "generate"
)

// Turn outcomes reported to the Observer.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Responder is the completion collaborator. provider.Responder satisfies it.
type Responder interface {
	Respond(ctx context.Context, messages []chat.Utterance, m chat.ModelIdentifier) (string, error)
}

// Observer receives timing for each stage and each completed turn. It must
// be safe for concurrent use. The server wires Prometheus collectors in.
type Observer interface {
	StageCompleted(stage Stage, elapsed time.Duration, err error)
	TurnCompleted(outcome string, elapsed time.Duration)
}

// TurnResult is returned by a successful Turn.
type TurnResult struct {
	// Reply is the assistant reply appended to the transcript.
	Reply string `json:"reply"`
	// Passages are the retrieved passages the reply was grounded on.
	Passages []rag.Passage `json:"passages"`
	// SystemInstruction is the assembled per-turn system prompt. It is
	// never stored in the transcript.
	SystemInstruction string `json:"-"`
	// Model is the identifier the reply was generated with.
	Model chat.ModelIdentifier `json:"model"`
}

// Config holds the collaborators and settings for a Controller.
type Config struct {
	Embedder  rag.Embedder
	Retriever rag.Retriever
	Responder Responder
	// TopK is the number of passages retrieved per turn (default rag.DefaultTopK).
	TopK int
	// DefaultModel is used when Turn or Greet receive an empty identifier.
	DefaultModel chat.ModelIdentifier
	// Observer is optional.
	Observer Observer
}

// Controller sequences the stages of a turn. It holds no session state and
// is safe for concurrent use; callers serialise turns per session.
type Controller struct {
	embedder     rag.Embedder
	retriever    rag.Retriever
	responder    Responder
	topK         int
	defaultModel chat.ModelIdentifier
	observer     Observer
}

// New constructs a Controller from cfg.
func New(cfg Config) (*Controller, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("pipeline: embedder must not be nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("pipeline: retriever must not be nil")
	}
	if cfg.Responder == nil {
		return nil, fmt.Errorf("pipeline: responder must not be nil")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	def := cfg.DefaultModel
	if def == "" {
		def = chat.DefaultModel
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Controller{
		embedder:     cfg.Embedder,
		retriever:    cfg.Retriever,
		responder:    cfg.Responder,
		topK:         topK,
		defaultModel: def,
		observer:     obs,
	}, nil
}

// Turn runs one user turn against sess and returns the updated session.
//
// The user utterance is appended before any stage runs. On success the
// assistant reply is appended too (transcript +2). On a stage failure the
// returned session keeps the user utterance but has no reply (+1), and the
// error is the stage's chat.ServiceError, unchanged.
func (c *Controller) Turn(ctx context.Context, sess chat.Session, input string, m chat.ModelIdentifier) (chat.Session, *TurnResult, error) {
	if strings.TrimSpace(input) == "" {
		return sess, nil, ErrEmptyInput
	}
	if m == "" {
		m = c.defaultModel
	}

	log := logging.FromContext(ctx).With(slog.String("session_id", sess.ID))
	ctx = logging.WithLogger(ctx, log)
	start := time.Now()

	sess.Transcript = sess.Transcript.Append(chat.UserUtterance(input))

	result, err := c.run(ctx, sess, input, m)
	elapsed := time.Since(start)
	if err != nil {
		c.observer.TurnCompleted(OutcomeError, elapsed)
		log.Error("turn failed", slog.String("model", string(m)), slog.Duration("duration", elapsed), slog.Any("error", err))
		return sess, nil, err
	}

	sess.Transcript = sess.Transcript.Append(chat.AssistantUtterance(result.Reply))
	c.observer.TurnCompleted(OutcomeSuccess, elapsed)
	log.Info("turn complete",
		slog.String("model", string(m)),
		slog.Int("passages", len(result.Passages)),
		slog.Int("transcript_len", sess.Transcript.Len()),
		slog.Duration("duration", elapsed),
	)
	return sess, result, nil
}

// run executes the three service stages. sess already holds the user
// utterance.
func (c *Controller) run(ctx context.Context, sess chat.Session, input string, m chat.ModelIdentifier) (*TurnResult, error) {
	var vector []float32
	err := c.stage(StageEmbed, func() error {
		var err error
		vector, err = c.embedder.Embed(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	var passages []rag.Passage
	err = c.stage(StageRetrieve, func() error {
		var err error
		passages, err = c.retriever.Retrieve(ctx, input, vector, c.topK)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(passages) > c.topK {
		passages = passages[:c.topK]
	}

	system := prompt.Assemble(sess.Instruction, passages)
	messages := make([]chat.Utterance, 0, sess.Transcript.Len()+1)
	messages = append(messages, chat.SystemUtterance(system))
	messages = append(messages, sess.Transcript.Utterances()...)

	var reply string
	err = c.stage(StageGenerate, func() error {
		var err error
		reply, err = c.responder.Respond(ctx, messages, m)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		Reply:             reply,
		Passages:          passages,
		SystemInstruction: system,
		Model:             m,
	}, nil
}

// stage times fn and reports it to the observer.
func (c *Controller) stage(s Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	c.observer.StageCompleted(s, time.Since(start), err)
	return err
}

// Reset returns sess with an empty transcript. The instruction, ID and
// greeting are kept.
func (c *Controller) Reset(sess chat.Session) chat.Session {
	sess.Transcript = chat.Transcript{}
	return sess
}

// Greet generates the first-load greeting from the live instruction and
// caches it on the session. A session that already has a greeting is
// returned unchanged. When the completion call fails the static greeting is
// cached instead and the failure is returned for logging; callers may treat
// it as non-fatal. The transcript is never touched.
func (c *Controller) Greet(ctx context.Context, sess chat.Session, m chat.ModelIdentifier) (chat.Session, error) {
	if sess.Greeting != "" {
		return sess, nil
	}
	if m == "" {
		m = c.defaultModel
	}

	messages := []chat.Utterance{
		chat.SystemUtterance(prompt.Greeting(sess.Instruction)),
		chat.UserUtterance(""),
	}

	var reply string
	err := c.stage(StageGenerate, func() error {
		var err error
		reply, err = c.responder.Respond(ctx, messages, m)
		return err
	})
	if err != nil {
		logging.FromContext(ctx).Warn("greeting failed, using static greeting",
			slog.String("session_id", sess.ID),
			slog.Any("error", err),
		)
		sess.Greeting = prompt.StaticGreeting
		return sess, err
	}
	sess.Greeting = reply
	return sess, nil
}

// DefaultModel returns the identifier used for empty model selections.
func (c *Controller) DefaultModel() chat.ModelIdentifier { return c.defaultModel }

// nopObserver discards all observations.
type nopObserver struct{}

func (nopObserver) StageCompleted(Stage, time.Duration, error) {}
func (nopObserver) TurnCompleted(string, time.Duration)        {}
