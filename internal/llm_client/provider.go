package llm_client

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotInitialized     = errors.New("llm provider is not initialized")
	ErrUnsupportedBackend = errors.New("unsupported LLM backend")
)

type Config struct {
	Backend    string
	Model      string
	OllamaHost string
	// APIKey overrides GEMINI_API_KEY.
	APIKey string
}

type Provider interface {
	Name() string
	DefaultModel() string
	GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error)
}

// New builds and initializes the provider named by cfg.Backend (gemini when
// empty).
func New(cfg Config) (Provider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "gemini"
	}
	switch backend {
	case "ollama":
		p := &ollamaProvider{}
		if err := p.init(cfg); err != nil {
			return nil, err
		}
		return p, nil
	case "gemini":
		p := &geminiProvider{}
		if err := p.init(cfg); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
}
