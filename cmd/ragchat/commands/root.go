// Package commands defines all Cobra CLI commands for the ragchat binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/audit"
	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFilePath holds the --env-file flag value for the credential file.
var envFilePath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "ragchat: chat with your documents through Azure AI Search and Azure OpenAI",
		Long: `ragchat is a retrieval-augmented chat assistant.

Every question is embedded, matched against a pre-built search index, and
answered by a chat model grounded on the retrieved passages. The conversation
history is kept for the session and can be cleared at any time.

Credentials are read from the environment, a credential file
(./credential.env or --env-file) and an optional YAML config file
(~/.ragchat/config.yaml or --config). Environment variables always win.
See 'ragchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			loadedConfig, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// Fill remaining unset variables from the credential file.
			loadedEnv, err := config.LoadDotEnv(envFilePath, log)
			if err != nil {
				return err
			}

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfig, loadedEnv)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragchat/config.yaml)")
	root.PersistentFlags().StringVar(&envFilePath, "env-file", "", "Path to credential env file (default: ./credential.env)")

	root.AddCommand(
		NewServeCmd(),
		NewChatCmd(),
		NewAskCmd(),
		NewVersionCmd(),
	)

	return root
}
