package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/pipeline"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// Models lists the selectable chat models shown in the UI. Requests for
	// any other model are rejected with 400. Empty allows every known model.
	Models []chat.ModelIdentifier
	// Metrics is the collector set shared with the pipeline observer.
	// If nil, a set is registered against MetricsRegistry.
	Metrics *Metrics
	// MetricsRegistry receives the server metrics when Metrics is nil.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Runner is the interface the handlers use to run the pipeline.
// *pipeline.Controller satisfies it; tests inject a fake.
type Runner interface {
	Turn(ctx context.Context, sess chat.Session, input string, m chat.ModelIdentifier) (chat.Session, *pipeline.TurnResult, error)
	Greet(ctx context.Context, sess chat.Session, m chat.ModelIdentifier) (chat.Session, error)
	Reset(sess chat.Session) chat.Session
	DefaultModel() chat.ModelIdentifier
}

// Server is the HTTP server that exposes the chat session.
type Server struct {
	// runner executes turns; set to the pipeline controller in production.
	runner Runner
	// holder persists the single session between requests.
	holder *session.Holder
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *Metrics
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's question.
	Message string `json:"message"`
	// SystemInstruction, when present, replaces the base instruction before
	// the turn runs.
	SystemInstruction *string `json:"systemInstruction,omitempty"`
	// Model selects the chat model; empty selects the default.
	Model string `json:"model,omitempty"`
}

// instructionRequest is the JSON body for PUT /api/instruction.
type instructionRequest struct {
	// Instruction is the new base system instruction.
	Instruction string `json:"instruction"`
}

// sessionResponse is the JSON response for GET /api/session.
type sessionResponse struct {
	ID           string           `json:"id"`
	Instruction  string           `json:"instruction"`
	Greeting     string           `json:"greeting"`
	State        session.State    `json:"state"`
	DefaultModel string           `json:"defaultModel"`
	Models       []string         `json:"models"`
	Transcript   []chat.Utterance `json:"transcript"`
}

// greetResponse is the JSON response for POST /api/greet.
type greetResponse struct {
	Greeting string `json:"greeting"`
}

// messageEvent is the payload of the SSE "message" event.
type messageEvent struct {
	Reply string `json:"reply"`
	Model string `json:"model"`
}

// passagesEvent is the payload of the SSE "passages" event.
type passagesEvent struct {
	Passages []rag.Passage `json:"passages"`
}

// errorResponse is the JSON body for non-2xx API responses.
type errorResponse struct {
	Error string `json:"error"`
}
