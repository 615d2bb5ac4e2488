package ollama

import (
	"time"

	"github.com/garnizeh/flyaway/internal/config"
)

// DefaultConfig returns the client settings used when the fun fact provider
// is ollama and the config file leaves them out.
func DefaultConfig() config.OllamaConfig {
	return config.OllamaConfig{
		BaseURL:                 "http://localhost:11434",
		DefaultModelNames:       []string{"llama3"},
		Timeout:                 30 * time.Second,
		Retries:                 2,
		Backoff:                 500 * time.Millisecond,
		CircuitFailureThreshold: 5,
		CircuitReset:            30 * time.Second,
	}
}
