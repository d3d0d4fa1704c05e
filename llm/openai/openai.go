// Package openai provides an llm.Adapter backed by the OpenAI Chat
// Completions API. The role prompt goes out as the system message and the
// state digest as the user turn; the completion text is parsed into a
// structured decision by llm.ParseDecision.
package openai

import (
	"context"
	"fmt"

	"github.com/nexhelm/agentflow/llm"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI adapter. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Adapter wraps the OpenAI Chat Completions API behind llm.Adapter.
type Adapter struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI adapter using the official client (API key from the
// environment).
func New(optFns ...func(o *Options)) *Adapter {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.3,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{client: client, opts: opts}
}

// Infer implements llm.Adapter with a single non-streaming completion.
func (a *Adapter) Infer(ctx context.Context, role, prompt, digest string) (llm.Decision, error) {
	params := openai.ChatCompletionNewParams{
		Model:               a.opts.Model,
		Temperature:         openai.Float(a.opts.Temperature),
		MaxCompletionTokens: openai.Int(a.opts.MaxCompletionTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(userTurn(digest)),
		},
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Decision{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Decision{}, fmt.Errorf("no choices returned")
	}
	return llm.ParseDecision(resp.Choices[0].Message.Content)
}

func userTurn(digest string) string {
	return "Current workflow state digest:\n" + digest +
		"\n\nRespond with a single JSON object only, matching the response format in your instructions."
}
