package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/prompt"
	"github.com/54b3r/ragchat-go/internal/server"
	"github.com/54b3r/ragchat-go/internal/session"
	"github.com/54b3r/ragchat-go/internal/tracing"
)

// NewServeCmd constructs the `ragchat serve` command, which starts the HTTP
// server and serves the web UI for interactive use.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragchat HTTP server and web UI",
		Long: `Start the ragchat HTTP server on localhost.

The server exposes a REST/SSE API and serves a single-page chat UI with an
editable system instruction, a model selector and a Clear Chat button.
RAGCHAT_HOST and RAGCHAT_PORT override the defaults when the flags are not set.

Examples:
  ragchat serve
  ragchat serve --port 9090
  ragchat serve --env-file ./credential.env`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			settings, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			if !cmd.Flags().Changed("host") {
				if v := os.Getenv(config.EnvServerHost); v != "" {
					host = v
				}
			}
			if !cmd.Flags().Changed("port") {
				if v := os.Getenv(config.EnvServerPort); v != "" {
					p, err := strconv.Atoi(v)
					if err != nil {
						return fmt.Errorf("serve: %w: %s=%q is not a port", config.ErrConfiguration, config.EnvServerPort, v)
					}
					port = p
				}
			}

			// Setup Langfuse tracing; opt-in, no-op if keys are absent.
			flush, ok := tracing.Setup()
			defer flush()
			if ok {
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			metrics := server.NewMetrics(prometheus.DefaultRegisterer)

			st, err := buildStack(ctx, settings, log, metrics)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer st.close()

			holder := session.NewHolder(chat.NewSession(prompt.DefaultInstruction))

			srv, err := server.New(st.controller, holder, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: st.pingers,
				Models:  st.responder.Models(),
				Metrics: metrics,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
