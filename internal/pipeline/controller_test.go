package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/prompt"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeEmbedder returns vec or err and records the embedded text.
type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
	text  string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	f.text = text
	return f.vec, f.err
}

// fakeRetriever returns passages or err and records its arguments.
type fakeRetriever struct {
	passages []rag.Passage
	err      error
	calls    int
	query    string
	vector   []float32
	topK     int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, vector []float32, topK int) ([]rag.Passage, error) {
	f.calls++
	f.query, f.vector, f.topK = query, vector, topK
	return f.passages, f.err
}

// fakeResponder returns reply or err and records every message list.
type fakeResponder struct {
	reply  string
	err    error
	inputs [][]chat.Utterance
	models []chat.ModelIdentifier
}

func (f *fakeResponder) Respond(_ context.Context, messages []chat.Utterance, m chat.ModelIdentifier) (string, error) {
	f.inputs = append(f.inputs, messages)
	f.models = append(f.models, m)
	return f.reply, f.err
}

// recordingObserver records stage and turn observations.
type recordingObserver struct {
	mu       sync.Mutex
	stages   []Stage
	outcomes []string
}

func (o *recordingObserver) StageCompleted(s Stage, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, s)
}

func (o *recordingObserver) TurnCompleted(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

type fixture struct {
	emb  *fakeEmbedder
	ret  *fakeRetriever
	resp *fakeResponder
	obs  *recordingObserver
	ctrl *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		emb:  &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}},
		ret:  &fakeRetriever{passages: []rag.Passage{{Content: "Refunds within 30 days.", SourceLabel: "policy.pdf#2"}}},
		resp: &fakeResponder{reply: "You can request a refund within 30 days."},
		obs:  &recordingObserver{},
	}
	ctrl, err := New(Config{
		Embedder:     f.emb,
		Retriever:    f.ret,
		Responder:    f.resp,
		TopK:         3,
		DefaultModel: chat.ModelGPT4o,
		Observer:     f.obs,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.ctrl = ctrl
	return f
}

const baseInstruction = "Answer from the documents."

// ---------------------------------------------------------------------------
// End-to-end scenarios
// ---------------------------------------------------------------------------

// TestTurn_RefundPolicy runs the full pipeline with one retrieved passage and
// checks the assembled instruction, the message list and the transcript.
func TestTurn_RefundPolicy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sess := chat.NewSession(baseInstruction)

	got, res, err := f.ctrl.Turn(context.Background(), sess, "What is the refund policy?", chat.ModelGPT35Turbo)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}

	wantSystem := baseInstruction + prompt.RetrievedHeader + "sourcepage: policy.pdf#2, content: Refunds within 30 days.\n"
	if res.SystemInstruction != wantSystem {
		t.Errorf("system instruction =\n%q\nwant\n%q", res.SystemInstruction, wantSystem)
	}
	if res.Reply != "You can request a refund within 30 days." || res.Model != chat.ModelGPT35Turbo {
		t.Errorf("unexpected result: %+v", res)
	}

	if f.emb.text != "What is the refund policy?" {
		t.Errorf("embedded text = %q", f.emb.text)
	}
	if f.ret.query != "What is the refund policy?" || f.ret.topK != 3 || len(f.ret.vector) != 3 {
		t.Errorf("retriever args: query=%q topK=%d vector=%v", f.ret.query, f.ret.topK, f.ret.vector)
	}

	if len(f.resp.inputs) != 1 {
		t.Fatalf("responder calls = %d, want 1", len(f.resp.inputs))
	}
	msgs := f.resp.inputs[0]
	if len(msgs) != 2 || msgs[0].Role != chat.RoleSystem || msgs[0].Content != wantSystem ||
		msgs[1].Role != chat.RoleUser || msgs[1].Content != "What is the refund policy?" {
		t.Errorf("responder messages = %+v", msgs)
	}
	if f.resp.models[0] != chat.ModelGPT35Turbo {
		t.Errorf("model = %q", f.resp.models[0])
	}

	entries := got.Transcript.Utterances()
	if len(entries) != 2 {
		t.Fatalf("transcript len = %d, want 2", len(entries))
	}
	if entries[0] != chat.UserUtterance("What is the refund policy?") {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1] != chat.AssistantUtterance("You can request a refund within 30 days.") {
		t.Errorf("entries[1] = %+v", entries[1])
	}
	if sess.Transcript.Len() != 0 {
		t.Errorf("input session mutated: len = %d", sess.Transcript.Len())
	}

	wantStages := []Stage{StageEmbed, StageRetrieve, StageGenerate}
	if len(f.obs.stages) != len(wantStages) {
		t.Fatalf("stages = %v", f.obs.stages)
	}
	for i := range wantStages {
		if f.obs.stages[i] != wantStages[i] {
			t.Errorf("stage[%d] = %s, want %s", i, f.obs.stages[i], wantStages[i])
		}
	}
	if len(f.obs.outcomes) != 1 || f.obs.outcomes[0] != OutcomeSuccess {
		t.Errorf("outcomes = %v", f.obs.outcomes)
	}
}

// TestTurn_NoPassages verifies an empty retrieval still produces a
// well-formed request and a reply.
func TestTurn_NoPassages(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.ret.passages = nil

	got, res, err := f.ctrl.Turn(context.Background(), chat.NewSession(baseInstruction), "Anything about warranties?", "")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if res.SystemInstruction != baseInstruction+prompt.RetrievedHeader {
		t.Errorf("system instruction = %q", res.SystemInstruction)
	}
	if len(res.Passages) != 0 {
		t.Errorf("passages = %v", res.Passages)
	}
	msgs := f.resp.inputs[0]
	if len(msgs) != 2 || msgs[0].Role != chat.RoleSystem || msgs[1].Role != chat.RoleUser {
		t.Errorf("responder messages = %+v", msgs)
	}
	if f.resp.models[0] != chat.ModelGPT4o {
		t.Errorf("empty model selected %q, want default", f.resp.models[0])
	}
	if got.Transcript.Len() != 2 {
		t.Errorf("transcript len = %d, want 2", got.Transcript.Len())
	}
}

// TestTurn_ResponderFailure verifies a failed completion leaves only the
// user utterance and returns the error unchanged.
func TestTurn_ResponderFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cause := chat.NewServiceError("completion", "generate", 0, errors.New("connection reset"))
	f.resp.err = cause

	sess := chat.NewSession(baseInstruction)
	got, res, err := f.ctrl.Turn(context.Background(), sess, "What is the refund policy?", "")
	if !errors.Is(err, chat.ErrService) || err != cause {
		t.Fatalf("err = %v, want the responder's ServiceError", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	entries := got.Transcript.Utterances()
	if len(entries) != 1 || entries[0] != chat.UserUtterance("What is the refund policy?") {
		t.Errorf("transcript = %+v, want only the user utterance", entries)
	}
	if len(f.obs.outcomes) != 1 || f.obs.outcomes[0] != OutcomeError {
		t.Errorf("outcomes = %v", f.obs.outcomes)
	}
}

// TestTurn_EarlyStageFailures verifies embed and search failures stop the
// pipeline before later stages run and still record the user utterance.
func TestTurn_EarlyStageFailures(t *testing.T) {
	t.Parallel()

	t.Run("embed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.emb.err = chat.NewServiceError("embedding", "embed", 401, errors.New("denied"))

		got, _, err := f.ctrl.Turn(context.Background(), chat.NewSession(baseInstruction), "q", "")
		if !errors.Is(err, chat.ErrService) {
			t.Fatalf("err = %v", err)
		}
		if f.ret.calls != 0 || len(f.resp.inputs) != 0 {
			t.Errorf("later stages ran: retrieve=%d respond=%d", f.ret.calls, len(f.resp.inputs))
		}
		if got.Transcript.Len() != 1 {
			t.Errorf("transcript len = %d, want 1", got.Transcript.Len())
		}
	})

	t.Run("retrieve", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.ret.err = chat.NewServiceError("search", "search", 404, errors.New("index not found"))

		got, _, err := f.ctrl.Turn(context.Background(), chat.NewSession(baseInstruction), "q", "")
		if !errors.Is(err, chat.ErrService) {
			t.Fatalf("err = %v", err)
		}
		if len(f.resp.inputs) != 0 {
			t.Errorf("responder ran after search failure")
		}
		if got.Transcript.Len() != 1 {
			t.Errorf("transcript len = %d, want 1", got.Transcript.Len())
		}
	})
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// TestTurn_InstructionDoesNotAccumulate verifies each turn assembles from
// the base instruction, so the passage block appears exactly once.
func TestTurn_InstructionDoesNotAccumulate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sess := chat.NewSession(baseInstruction)

	var err error
	for _, q := range []string{"first?", "second?", "third?"} {
		sess, _, err = f.ctrl.Turn(context.Background(), sess, q, "")
		if err != nil {
			t.Fatalf("Turn(%q): %v", q, err)
		}
	}

	if sess.Instruction != baseInstruction {
		t.Errorf("instruction changed to %q", sess.Instruction)
	}
	if sess.Transcript.Len() != 6 {
		t.Errorf("transcript len = %d, want 6", sess.Transcript.Len())
	}
	for i, msgs := range f.resp.inputs {
		if n := strings.Count(msgs[0].Content, prompt.RetrievedHeader); n != 1 {
			t.Errorf("turn %d: header count = %d, want 1", i, n)
		}
		for _, m := range msgs[1:] {
			if m.Role == chat.RoleSystem {
				t.Errorf("turn %d: system utterance leaked into transcript", i)
			}
		}
		// system + full history: 1, 3, 5 transcript entries.
		if want := 1 + 2*i + 1; len(msgs) != want {
			t.Errorf("turn %d: message count = %d, want %d", i, len(msgs), want)
		}
	}
}

// TestTurn_TruncatesToTopK verifies an over-long retrieval is capped.
func TestTurn_TruncatesToTopK(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.ret.passages = []rag.Passage{
		{Content: "1", SourceLabel: "a"}, {Content: "2", SourceLabel: "b"},
		{Content: "3", SourceLabel: "c"}, {Content: "4", SourceLabel: "d"},
	}

	_, res, err := f.ctrl.Turn(context.Background(), chat.NewSession(""), "q", "")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if len(res.Passages) != 3 || res.Passages[0].SourceLabel != "a" || res.Passages[2].SourceLabel != "c" {
		t.Errorf("passages = %+v", res.Passages)
	}
}

func TestTurn_EmptyInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "\n\t"} {
		f := newFixture(t)
		sess := chat.NewSession(baseInstruction)
		got, res, err := f.ctrl.Turn(context.Background(), sess, in, "")
		if !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Turn(%q) err = %v, want ErrEmptyInput", in, err)
		}
		if res != nil || got.Transcript.Len() != 0 || f.emb.calls != 0 {
			t.Errorf("Turn(%q) had side effects", in)
		}
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sess := chat.NewSession(baseInstruction)
	sess.Greeting = "Hi!"
	sess, _, err := f.ctrl.Turn(context.Background(), sess, "q", "")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}

	reset := f.ctrl.Reset(sess)
	if reset.Transcript.Len() != 0 {
		t.Errorf("transcript len after reset = %d", reset.Transcript.Len())
	}
	if reset.ID != sess.ID || reset.Instruction != sess.Instruction || reset.Greeting != "Hi!" {
		t.Errorf("reset dropped session fields: %+v", reset)
	}
	if again := f.ctrl.Reset(reset); again.Transcript.Len() != 0 {
		t.Error("reset of empty transcript not empty")
	}
}

// ---------------------------------------------------------------------------
// Greeting
// ---------------------------------------------------------------------------

func TestGreet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.resp.reply = "Hello, I can answer questions about your documents."
	sess := chat.NewSession(baseInstruction)

	got, err := f.ctrl.Greet(context.Background(), sess, "")
	if err != nil {
		t.Fatalf("Greet: %v", err)
	}
	if got.Greeting != f.resp.reply {
		t.Errorf("greeting = %q", got.Greeting)
	}
	if got.Transcript.Len() != 0 {
		t.Errorf("greeting stored in transcript")
	}
	msgs := f.resp.inputs[0]
	if len(msgs) != 2 || msgs[0].Content != baseInstruction+prompt.GreetingSuffix ||
		msgs[1].Role != chat.RoleUser || msgs[1].Content != "" {
		t.Errorf("greeting messages = %+v", msgs)
	}

	// Already greeted: no second call.
	if _, err := f.ctrl.Greet(context.Background(), got, ""); err != nil {
		t.Fatalf("second Greet: %v", err)
	}
	if len(f.resp.inputs) != 1 {
		t.Errorf("responder calls = %d, want 1", len(f.resp.inputs))
	}
}

func TestGreet_FallsBackToStatic(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.resp.err = errors.New("unavailable")

	got, err := f.ctrl.Greet(context.Background(), chat.NewSession(baseInstruction), "")
	if err == nil {
		t.Error("expected the completion error to be returned")
	}
	if got.Greeting != prompt.StaticGreeting {
		t.Errorf("greeting = %q, want static greeting", got.Greeting)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Retriever: &fakeRetriever{}, Responder: &fakeResponder{}}); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := New(Config{Embedder: &fakeEmbedder{}, Responder: &fakeResponder{}}); err == nil {
		t.Error("expected error for nil retriever")
	}
	if _, err := New(Config{Embedder: &fakeEmbedder{}, Retriever: &fakeRetriever{}}); err == nil {
		t.Error("expected error for nil responder")
	}
	c, err := New(Config{Embedder: &fakeEmbedder{}, Retriever: &fakeRetriever{}, Responder: &fakeResponder{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.DefaultModel() != chat.DefaultModel || c.topK != rag.DefaultTopK {
		t.Errorf("defaults not applied: model=%q topK=%d", c.DefaultModel(), c.topK)
	}
}
