package funfact

import (
	"fmt"

	"github.com/garnizeh/flyaway/internal/config"
	"github.com/garnizeh/flyaway/pkg/ollama"
)

// NewGenerator builds the generator selected by cfg.Provider. It returns a
// nil Generator for the "none" provider. The returned close func releases
// provider resources and is never nil.
func NewGenerator(cfg config.FunFactConfig) (Generator, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case "", config.ProviderNone:
		return nil, noop, nil
	case config.ProviderOpenAI:
		g, err := NewOpenAI(cfg.OpenAI, cfg.Model)
		if err != nil {
			return nil, noop, fmt.Errorf("openai provider: %w", err)
		}
		return g, noop, nil
	case config.ProviderOllama:
		client, err := ollama.NewDefaultClient(cfg.Ollama)
		if err != nil {
			return nil, noop, fmt.Errorf("ollama provider: %w", err)
		}
		g, err := NewOllama(client, cfg.Model)
		if err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("ollama provider: %w", err)
		}
		return g, client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown fun fact provider %q", cfg.Provider)
	}
}
