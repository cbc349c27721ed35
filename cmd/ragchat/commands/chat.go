package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/prompt"
	"github.com/54b3r/ragchat-go/internal/session"
	"github.com/54b3r/ragchat-go/internal/tracing"
	"github.com/54b3r/ragchat-go/internal/tui"
)

// NewChatCmd constructs the `ragchat chat` command, which opens the
// interactive terminal chat panel.
func NewChatCmd() *cobra.Command {
	var model string
	var logFile string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive terminal chat panel",
		Long: `Open a full-screen terminal chat panel.

Keys:
  enter    send the question
  ctrl+e   edit the system instruction (press again to save)
  ctrl+r   clear the conversation
  ctrl+c   quit

Logs are discarded unless --log-file is set, so they do not corrupt the screen.

Examples:
  ragchat chat
  ragchat chat --model gpt-35-turbo --log-file ragchat.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, closeLog, err := logging.NewFile(logFile)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer func() { _ = closeLog() }()
			ctx := logging.WithLogger(cmd.Context(), log)

			settings, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			flush, _ := tracing.Setup()
			defer flush()

			st, err := buildStack(ctx, settings, log, nil)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer st.close()

			m := st.controller.DefaultModel()
			if model != "" {
				m, err = chat.ParseModelIdentifier(model)
				if err != nil {
					return fmt.Errorf("chat: %w", err)
				}
				if !st.responder.Supports(m) {
					return fmt.Errorf("chat: model %q has no configured deployment", m)
				}
			}

			holder := session.NewHolder(chat.NewSession(prompt.DefaultInstruction))
			p := tea.NewProgram(tui.New(ctx, st.controller, holder, m), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Chat model: gpt-35-turbo, gpt-4-turbo or gpt-4o (default: CHAT_MODEL)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write structured logs to this file")

	return cmd
}
