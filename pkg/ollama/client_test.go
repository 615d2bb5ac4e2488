package ollama_test

import (
	"testing"

	"github.com/garnizeh/flyaway/pkg/ollama"
)

func TestRenderTemplate(t *testing.T) {
	out, err := ollama.RenderTemplate("fact about {{.ScientificName}}", map[string]string{"ScientificName": "Bombus terrestris"})
	if err != nil {
		t.Fatalf("RenderTemplate error: %v", err)
	}
	if out != "fact about Bombus terrestris" {
		t.Fatalf("unexpected render: %q", out)
	}

	if _, err := ollama.RenderTemplate("{{.Missing}}", map[string]string{}); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := ollama.RenderTemplate("{{", nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := ollama.DefaultConfig()
	if cfg.BaseURL == "" || cfg.Timeout <= 0 || len(cfg.DefaultModelNames) == 0 {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
	if _, err := ollama.NewClient(cfg, nil); err != nil {
		t.Fatalf("NewClient with defaults: %v", err)
	}
}
