// Package tracing wires optional Langfuse tracing into the eino callback
// system. Completion calls made through provider.Responder initialise
// callbacks per call, so a registered global handler sees every request.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost is used when LANGFUSE_HOST is unset.
const defaultHost = "http://localhost:3000"

// Setup registers the Langfuse callback handler globally if
// LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY are set. It returns a flush
// function that must be called before process exit so all traces are sent,
// and whether tracing is enabled. When disabled the flush function is a no-op.
func Setup() (func(), bool) {
	host := os.Getenv("LANGFUSE_HOST")
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")

	if publicKey == "" || secretKey == "" {
		return func() {}, false
	}
	if host == "" {
		host = defaultHost
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
	})
	callbacks.AppendGlobalHandlers(handler)

	return flusher, true
}
