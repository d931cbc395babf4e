package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// ErrNoTextGenerator is returned by llm nodes when the service has no
// model configured.
var ErrNoTextGenerator = errors.New("no text generator configured")

// generate sends the prompt (and optional system message) to the configured
// model. data.temperature and data.max_tokens tune the call.
func generate(ctx context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
	model := inv.Services.TextGenerator
	if model == nil {
		return nil, ErrNoTextGenerator
	}
	prompt, _ := inv.Inputs["prompt"].(string)
	if prompt == "" {
		return nil, errors.New("llm: empty prompt")
	}

	var msgs []llms.MessageContent
	if sys, _ := inv.Inputs["system"].(string); sys != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, sys))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := model.GenerateContent(ctx, msgs, callOptions(inv.Node.Data)...)
	if err != nil {
		return nil, fmt.Errorf("llm: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: model returned no choices")
	}
	choice := resp.Choices[0]
	inv.Services.Log().Debug("llm generated", "node", inv.Node.ID, "context", inv.ContextID, "stop_reason", choice.StopReason)

	res := emits(inv, []graph.Port{{ID: PortText, Type: graph.PortTypeString}, flowOut},
		map[string]any{PortText: choice.Content})
	res.Diagnostics = &nodetype.Diagnostics{Usage: usage(choice.GenerationInfo)}
	return res, nil
}

func callOptions(data map[string]any) []llms.CallOption {
	var opts []llms.CallOption
	if t, ok := nodetype.AsFloat(data["temperature"]); ok {
		opts = append(opts, llms.WithTemperature(t))
	}
	if n, ok := nodetype.AsFloat(data["max_tokens"]); ok && n > 0 {
		opts = append(opts, llms.WithMaxTokens(int(n)))
	}
	if m, ok := data["model"].(string); ok && m != "" {
		opts = append(opts, llms.WithModel(m))
	}
	return opts
}

// usage reads the token counts providers report in GenerationInfo.
func usage(info map[string]any) nodetype.TokenUsage {
	get := func(key string) int {
		f, _ := nodetype.AsFloat(info[key])
		return int(f)
	}
	u := nodetype.TokenUsage{
		Prompt:     get("PromptTokens"),
		Completion: get("CompletionTokens"),
		Total:      get("TotalTokens"),
	}
	if u.Total == 0 {
		u.Total = u.Prompt + u.Completion
	}
	return u
}
