package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rahul/gdforge/internal/observability"
	"github.com/rahul/gdforge/pkg/config"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Providers lists the backend names New understands.
var Providers = []string{"gemini", "groq", "ollama", "openai", "openrouter"}

// New builds the generator for a configured provider.
func New(ctx context.Context, name string, cfg config.ProviderConfig) (Generator, error) {
	switch name {
	case "openai", "groq", "openrouter":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%s API key is missing", name)
		}
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, &Error{Provider: name, Err: err}
		}
		return NewModelGenerator(name, model), nil

	case "ollama":
		opts := []ollama.Option{
			ollama.WithModel(cfg.Model),
			ollama.WithFormat("json"),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err := ollama.New(opts...)
		if err != nil {
			return nil, &Error{Provider: name, Err: err}
		}
		return NewModelGenerator(name, model), nil

	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is missing")
		}
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)

	default:
		return nil, fmt.Errorf("unknown LLM provider %q (known: %v)", name, Providers)
	}
}

// Recording logs every call made through the wrapped generator.
type Recording struct {
	provider string
	next     Generator
	logger   *observability.Logger
}

func NewRecording(provider string, next Generator, logger *observability.Logger) *Recording {
	return &Recording{provider: provider, next: next, logger: logger}
}

func (r *Recording) Generate(ctx context.Context, rolePrompt, input string) (string, error) {
	start := time.Now()
	out, err := r.next.Generate(ctx, rolePrompt, input)
	r.logger.LogLLM(r.provider, rolePrompt, input, out, time.Since(start), err)
	return out, err
}
