// Package anthropic provides an llm.Adapter backed by the Anthropic
// Messages API. The role prompt is sent as the system message and the state
// digest as the user turn; the model is instructed to reply with a single
// JSON decision object which is parsed by llm.ParseDecision.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/nexhelm/agentflow/llm"
)

// Options configures the Anthropic adapter (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Adapter wraps the Anthropic Messages API behind the llm.Adapter interface.
type Adapter struct {
	client *anthropic.Client
	opts   Options
}

// New creates an Anthropic adapter using the official client.
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.3,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Adapter{client: &client, opts: opts}
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.3,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{client: client, opts: opts}
}

// Infer implements llm.Adapter with a single non-streaming message call.
func (a *Adapter) Infer(ctx context.Context, role, prompt, digest string) (llm.Decision, error) {
	params := anthropic.MessageNewParams{
		Model:       a.opts.Model,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: anthropic.Float(a.opts.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: prompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userTurn(digest))),
		},
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Decision{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return llm.ParseDecision(text)
}

func userTurn(digest string) string {
	return "Current workflow state digest:\n" + digest +
		"\n\nRespond with a single JSON object only, matching the response format in your instructions."
}
