// Package server implements the HTTP server that exposes the chat session
// via a REST/SSE API and serves the embedded web UI.
// The server is started by the `ragchat serve` CLI command.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/session"
)

// New constructs a Server that runs turns through runner against the session
// stored in holder.
func New(runner Runner, holder *session.Holder, cfg *Config) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("server: runner must not be nil")
	}
	if holder == nil {
		return nil, fmt.Errorf("server: session holder must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover embedding, search and completion in one turn.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(cfg.MetricsRegistry)
	}

	s := &Server{
		runner:  runner,
		holder:  holder,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: metrics,
	}

	static, err := staticHandler()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("POST /api/greet", s.handleGreet)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("PUT /api/instruction", s.handleInstruction)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	mux.Handle("/", static)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, s.metrics, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler. Tests drive it through
// httptest without opening a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleSession handles GET /api/session. It returns the stored session, its
// state, and the selectable models so the UI can render on first load.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, state := s.holder.Snapshot()

	models := make([]string, 0, len(s.models()))
	for _, m := range s.models() {
		models = append(models, string(m))
	}

	writeJSON(r.Context(), w, http.StatusOK, sessionResponse{
		ID:           sess.ID,
		Instruction:  sess.Instruction,
		Greeting:     sess.Greeting,
		State:        state,
		DefaultModel: string(s.runner.DefaultModel()),
		Models:       models,
		Transcript:   sess.Transcript.Utterances(),
	})
}

// handleGreet handles POST /api/greet. It generates the greeting once per
// session and returns the cached text afterwards. A failed completion call
// still yields 200 with the static greeting; the failure is only logged.
func (s *Server) handleGreet(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	model, err := s.resolveModel(r.URL.Query().Get("model"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.holder.Begin()
	if errors.Is(err, session.ErrBusy) {
		writeError(r.Context(), w, http.StatusConflict, err.Error())
		return
	}

	updated, err := s.runner.Greet(r.Context(), sess, model)
	s.holder.End(updated)
	if err != nil {
		log.Warn("greeting fell back to static text", slog.Any("error", err))
	}

	writeJSON(r.Context(), w, http.StatusOK, greetResponse{Greeting: updated.Greeting})
}

// handleChat handles POST /api/chat. It runs one turn and streams the result
// as Server-Sent Events: "passages", then "message", then "done". A failed
// turn emits a single "error" event instead. The session stays in
// Processing for the whole stream; a concurrent request gets 409.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "message is required")
		return
	}
	model, err := s.resolveModel(req.Model)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(r.Context(), w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sess, err := s.holder.Begin()
	if errors.Is(err, session.ErrBusy) {
		writeError(r.Context(), w, http.StatusConflict, err.Error())
		return
	}
	updated := sess
	defer func() { s.holder.End(updated) }()

	if req.SystemInstruction != nil {
		sess.Instruction = *req.SystemInstruction
		updated = sess
	}

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()

	// Set SSE headers so the client receives a streaming response.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sw := &sseWriter{w: w, flusher: flusher}

	next, result, err := s.runner.Turn(r.Context(), sess, req.Message, model)
	updated = next
	if err != nil {
		log.Error("turn failed", slog.Any("error", err))
		_ = sw.send("error", err.Error())
		return
	}

	if err := sw.sendJSON("passages", passagesEvent{Passages: result.Passages}); err != nil {
		log.Warn("sse write failed", slog.Any("error", err))
		return
	}
	if err := sw.sendJSON("message", messageEvent{Reply: result.Reply, Model: string(result.Model)}); err != nil {
		log.Warn("sse write failed", slog.Any("error", err))
		return
	}
	_ = sw.send("done", "[DONE]")
}

// handleReset handles POST /api/reset. It clears the transcript while
// keeping the instruction and greeting. Rejected with 409 mid-turn.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.holder.Update(s.runner.Reset); err != nil {
		writeError(r.Context(), w, http.StatusConflict, err.Error())
		return
	}
	logging.FromContext(r.Context()).Info("session reset")
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleInstruction handles PUT /api/instruction. It replaces the base
// system instruction used by subsequent turns.
func (s *Server) handleInstruction(w http.ResponseWriter, r *http.Request) {
	var req instructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.holder.SetInstruction(req.Instruction); err != nil {
		writeError(r.Context(), w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"instruction": req.Instruction})
}

// models returns the selectable models, defaulting to every known model.
func (s *Server) models() []chat.ModelIdentifier {
	if len(s.cfg.Models) > 0 {
		return s.cfg.Models
	}
	return chat.KnownModels
}

// resolveModel maps a request's model field to an identifier. Empty selects
// the runner's default; anything not in the selectable list is an error.
func (s *Server) resolveModel(raw string) (chat.ModelIdentifier, error) {
	if strings.TrimSpace(raw) == "" {
		return s.runner.DefaultModel(), nil
	}
	m, err := chat.ParseModelIdentifier(raw)
	if err != nil {
		return "", err
	}
	if !slices.Contains(s.models(), m) {
		return "", fmt.Errorf("model %q is not configured", m)
	}
	return m, nil
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx).Error("response encode error", slog.Any("error", err))
	}
}

// writeError writes an errorResponse with the given status.
func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, errorResponse{Error: msg})
}

// sseWriter wraps an http.ResponseWriter to emit Server-Sent Event frames.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each event.
	flusher http.Flusher
}

// send writes one named event and flushes it to the client. Each newline in
// data is prefixed with "data: " so multi-line payloads never break the SSE
// frame boundary.
func (s *sseWriter) send(event, data string) error {
	var buf bytes.Buffer
	buf.WriteString("event: ")
	buf.WriteString(event)
	buf.WriteString("\n")
	for _, line := range strings.Split(strings.TrimRight(data, "\n"), "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// sendJSON marshals v and sends it as a single-line event.
func (s *sseWriter) sendJSON(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	return s.send(event, string(data))
}
