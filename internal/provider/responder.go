package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragchat-go/internal/budget"
	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// finishContentFilter is the finish reason reported when the service's
// content filter suppressed the reply.
const finishContentFilter = "content_filter"

// Responder sends a full message list to the completion service and returns
// the reply text. It is safe for concurrent use.
type Responder struct {
	gen          Generator
	deployments  map[chat.ModelIdentifier]string
	defaultModel chat.ModelIdentifier
	callOpts     []model.Option
}

// NewResponder wraps gen. deployments maps each selectable identifier to the
// deployment or model name sent with the request.
func NewResponder(gen Generator, deployments map[chat.ModelIdentifier]string, defaultModel chat.ModelIdentifier) *Responder {
	d := make(map[chat.ModelIdentifier]string, len(deployments))
	for k, v := range deployments {
		d[k] = v
	}
	return &Responder{gen: gen, deployments: d, defaultModel: defaultModel}
}

// DefaultModel returns the identifier used when callers pass "".
func (r *Responder) DefaultModel() chat.ModelIdentifier { return r.defaultModel }

// Models returns the identifiers that have a configured deployment, in the
// order of chat.KnownModels.
func (r *Responder) Models() []chat.ModelIdentifier {
	out := make([]chat.ModelIdentifier, 0, len(r.deployments))
	for _, m := range chat.KnownModels {
		if _, ok := r.deployments[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Supports reports whether m has a configured deployment.
func (r *Responder) Supports(m chat.ModelIdentifier) bool {
	_, ok := r.deployments[m]
	return ok
}

// Respond performs one synchronous completion over messages using the
// deployment configured for m and returns the reply content unmodified,
// blank replies included. Every failure is returned as a chat.ServiceError
// for the "completion" service.
func (r *Responder) Respond(ctx context.Context, messages []chat.Utterance, m chat.ModelIdentifier) (string, error) {
	if m == "" {
		m = r.defaultModel
	}
	deployment, ok := r.deployments[m]
	if !ok {
		return "", chat.NewServiceError("completion", "generate", 0,
			fmt.Errorf("model %q has no configured deployment", m))
	}

	log := logging.FromContext(ctx)
	tokens := budget.EstimateUtterances(messages)
	log.Info("generating answer",
		slog.String("model", string(m)),
		slog.String("deployment", deployment),
		slog.Int("messages", len(messages)),
		slog.Int("estimated_tokens", tokens),
	)
	if budget.Exceeds(tokens, 0) {
		log.Warn("request may exceed the model context window",
			slog.Int("estimated_tokens", tokens),
			slog.Int("threshold", budget.DefaultMaxContextTokens),
		)
	}

	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "ragchat-responder",
		Type:      string(m),
		Component: components.ComponentOfChatModel,
	})

	opts := append([]model.Option{model.WithModel(deployment)}, r.callOpts...)
	reply, err := r.gen.Generate(ctx, toSchema(messages), opts...)
	if err != nil {
		return "", chat.NewServiceError("completion", "generate", 0, err)
	}
	if reply == nil {
		return "", chat.NewServiceError("completion", "generate", 0, errors.New("empty response"))
	}
	if reply.ResponseMeta != nil && reply.ResponseMeta.FinishReason == finishContentFilter {
		return "", chat.NewServiceError("completion", "generate", 0, errors.New("reply suppressed by content filter"))
	}
	return reply.Content, nil
}

// toSchema converts utterances to eino messages, preserving order.
func toSchema(us []chat.Utterance) []*schema.Message {
	out := make([]*schema.Message, 0, len(us))
	for _, u := range us {
		switch u.Role {
		case chat.RoleSystem:
			out = append(out, schema.SystemMessage(u.Content))
		case chat.RoleAssistant:
			out = append(out, schema.AssistantMessage(u.Content, nil))
		default:
			out = append(out, schema.UserMessage(u.Content))
		}
	}
	return out
}
