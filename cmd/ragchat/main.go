// Command ragchat is the entry point for the retrieval-augmented chat
// assistant. It provides a CLI interface (via Cobra), a terminal chat panel,
// and an HTTP server with a web UI.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragchat-go/cmd/ragchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
