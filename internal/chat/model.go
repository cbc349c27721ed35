package chat

import (
	"fmt"
	"strings"
)

// ModelIdentifier names one of the interchangeable chat models the
// completion service exposes. Each identifier maps to a configured
// deployment name.
type ModelIdentifier string

const (
	// ModelGPT35Turbo selects the GPT-3.5 Turbo deployment.
	ModelGPT35Turbo ModelIdentifier = "gpt-35-turbo"
	// ModelGPT4Turbo selects the GPT-4 Turbo deployment.
	ModelGPT4Turbo ModelIdentifier = "gpt-4-turbo"
	// ModelGPT4o selects the GPT-4o deployment.
	ModelGPT4o ModelIdentifier = "gpt-4o"
)

// DefaultModel is used when neither the caller nor CHAT_MODEL picks one.
const DefaultModel = ModelGPT4o

// KnownModels lists every identifier in display order.
var KnownModels = []ModelIdentifier{ModelGPT35Turbo, ModelGPT4Turbo, ModelGPT4o}

// ParseModelIdentifier converts a user-facing name into a ModelIdentifier.
// It accepts the canonical names plus the dotted and dotless spellings
// operators commonly type ("gpt-3.5-turbo", "gpt4o").
func ParseModelIdentifier(s string) (ModelIdentifier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gpt-35-turbo", "gpt-3.5-turbo", "gpt35turbo":
		return ModelGPT35Turbo, nil
	case "gpt-4-turbo", "gpt4turbo":
		return ModelGPT4Turbo, nil
	case "gpt-4o", "gpt4o":
		return ModelGPT4o, nil
	default:
		return "", fmt.Errorf("chat: unknown model %q — valid values: gpt-35-turbo, gpt-4-turbo, gpt-4o", s)
	}
}

// String implements fmt.Stringer.
func (m ModelIdentifier) String() string { return string(m) }
