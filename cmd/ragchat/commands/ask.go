package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/pipeline"
	"github.com/54b3r/ragchat-go/internal/prompt"
	"github.com/54b3r/ragchat-go/internal/tracing"
)

// NewAskCmd constructs the `ragchat ask` command, which runs a single turn
// on a fresh session and prints the reply followed by its sources.
func NewAskCmd() *cobra.Command {
	var model string
	var instruction string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the grounded answer",
		Long: `Ask one question against the search index and print the answer.

The question runs on a fresh session, so no earlier conversation is sent.

Examples:
  ragchat ask "what is the return policy?"
  ragchat ask --model gpt-4-turbo "summarise the travel policy"
  ragchat ask --instruction "Answer in French." "what is the return policy?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			settings, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			flush, _ := tracing.Setup()
			defer flush()

			st, err := buildStack(ctx, settings, log, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer st.close()

			var m chat.ModelIdentifier
			if model != "" {
				if m, err = chat.ParseModelIdentifier(model); err != nil {
					return fmt.Errorf("ask: %w", err)
				}
			}

			sess := chat.NewSession(instruction)
			_, result, err := st.controller.Turn(ctx, sess, strings.Join(args, " "), m)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Chat model: gpt-35-turbo, gpt-4-turbo or gpt-4o (default: CHAT_MODEL)")
	cmd.Flags().StringVar(&instruction, "instruction", prompt.DefaultInstruction, "Base system instruction")

	return cmd
}

// printResult writes the reply and a numbered source list to w.
func printResult(w io.Writer, r *pipeline.TurnResult) {
	fmt.Fprintln(w, r.Reply)
	if len(r.Passages) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, p := range r.Passages {
		label := p.SourceLabel
		if label == "" {
			label = "(unlabelled)"
		}
		fmt.Fprintf(w, "  [%d] %s\n", i+1, label)
	}
}
