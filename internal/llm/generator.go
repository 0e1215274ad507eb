// Package llm is the generation boundary: one role prompt plus one input
// in, one text artifact out. Backends are selected once, by name, from
// configuration.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Generator produces a text artifact for a role prompt and an input. One
// call is one request to the backend; retries are the caller's business.
type Generator interface {
	Generate(ctx context.Context, rolePrompt, input string) (string, error)
}

// Error is a failed generation call. It keeps the backend's message.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var errEmptyResponse = errors.New("empty response")

// ModelGenerator adapts a langchaingo model.
type ModelGenerator struct {
	provider string
	model    llms.Model
	options  []llms.CallOption
}

func NewModelGenerator(provider string, model llms.Model, options ...llms.CallOption) *ModelGenerator {
	return &ModelGenerator{
		provider: provider,
		model:    model,
		options:  append([]llms.CallOption{llms.WithTemperature(0)}, options...),
	}
}

func (g *ModelGenerator) Generate(ctx context.Context, rolePrompt, input string) (string, error) {
	var messages []llms.MessageContent
	if rolePrompt != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(rolePrompt)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(input)},
	})

	resp, err := g.model.GenerateContent(ctx, messages, g.options...)
	if err != nil {
		return "", &Error{Provider: g.provider, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", &Error{Provider: g.provider, Err: errEmptyResponse}
	}

	text := resp.Choices[0].Content
	if strings.TrimSpace(text) == "" {
		return "", &Error{Provider: g.provider, Err: errEmptyResponse}
	}
	return text, nil
}
