package funfact

import (
	"context"
	"fmt"

	"github.com/garnizeh/flyaway/pkg/ollama"
)

// Ollama generates facts with a local model.
type Ollama struct {
	client *ollama.Client
	model  string
}

func NewOllama(client *ollama.Client, model string) (*Ollama, error) {
	if client == nil {
		return nil, fmt.Errorf("ollama client is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &Ollama{client: client, model: model}, nil
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := o.client.Generate(ctx, o.model, prompt)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
