package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/garnizeh/flyaway/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Addr:          ":8080",
		JWTSecret:     "strongsecret",
		APITimeout:    5 * time.Second,
		DatabasePath:  "flyaway.db",
		TokenDuration: 1 * time.Hour,
		Classifier:    config.ClassifierConfig{BaseURL: "http://localhost:5000/predict"},
	}
}

func TestValidate_InsecureJWT_FailsWhenNotDevelopment(t *testing.T) {
	t.Setenv("FLYAWAY_ENV", "production")

	cfg := validConfig()
	cfg.JWTSecret = "supersecretkey"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail for insecure JWT in non-development env")
	}
}

func TestValidate_InsecureJWT_AllowsDevelopment(t *testing.T) {
	t.Setenv("FLYAWAY_ENV", "development")

	cfg := validConfig()
	cfg.JWTSecret = "supersecretkey"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected Validate to succeed in development env, got: %v", err)
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := validConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.Classifier.MinConfidence != config.MinConfidence {
		t.Fatalf("unexpected MinConfidence: %v", cfg.Classifier.MinConfidence)
	}
	if cfg.Classifier.Concurrency <= 0 || cfg.Classifier.Timeout <= 0 {
		t.Fatalf("expected classifier defaults, got %+v", cfg.Classifier)
	}
	if cfg.Uploads.MaxImageBytes != 5<<20 || cfg.Uploads.MaxImages != 10 {
		t.Fatalf("unexpected upload defaults: %+v", cfg.Uploads)
	}
	if cfg.FunFact.Provider != config.ProviderNone {
		t.Fatalf("unexpected fun fact provider: %q", cfg.FunFact.Provider)
	}
	if cfg.FunFact.Prompt == "" {
		t.Fatalf("expected default fun fact prompt")
	}
}

func TestValidate_MinConfidenceIsFixed(t *testing.T) {
	cfg := validConfig()
	cfg.Classifier.MinConfidence = 0.2

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to reject a changed min_confidence")
	}
}

func TestValidate_MissingClassifierURL(t *testing.T) {
	cfg := validConfig()
	cfg.Classifier.BaseURL = ""

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail when classifier.base_url is empty")
	}
}

func TestValidate_UnknownFunFactProvider(t *testing.T) {
	cfg := validConfig()
	cfg.FunFact.Provider = "parrot"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail for unknown provider")
	}
}

func TestValidate_OpenAIRequiresKey(t *testing.T) {
	cfg := validConfig()
	cfg.FunFact.Provider = "OpenAI"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail without openai api key")
	}

	cfg.FunFact.OpenAI.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.FunFact.Model == "" {
		t.Fatalf("expected default openai model")
	}
}

func TestValidate_OllamaDefaultsPopulated(t *testing.T) {
	cfg := validConfig()
	cfg.FunFact.Provider = config.ProviderOllama

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	o := cfg.FunFact.Ollama
	if o.BaseURL == "" {
		t.Fatalf("expected Ollama.BaseURL to be populated, got empty")
	}
	if o.Timeout <= 0 {
		t.Fatalf("expected Ollama.Timeout to be > 0")
	}
	if o.Retries == 0 {
		t.Fatalf("expected Ollama.Retries default to be non-zero")
	}
	if cfg.FunFact.Model != o.DefaultModelNames[0] {
		t.Fatalf("expected model to default to first ollama model, got %q", cfg.FunFact.Model)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	// Ensure environment does not interfere
	t.Setenv("FLYAWAY_ADDR", "")
	t.Setenv("FLYAWAY_JWT_SECRET", "")
	t.Setenv("FLYAWAY_DATABASE_PATH", "")
	t.Setenv("FLYAWAY_UPLOAD_DIR", "")

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error for empty path: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected Addr: got %q want %q", cfg.Addr, ":8080")
	}
	if cfg.JWTSecret != "supersecretkey" {
		t.Fatalf("unexpected JWTSecret: got %q want %q", cfg.JWTSecret, "supersecretkey")
	}
	if cfg.DatabasePath != "flyaway.db" {
		t.Fatalf("unexpected DatabasePath: got %q want %q", cfg.DatabasePath, "flyaway.db")
	}
	if cfg.Uploads.Dir != "storage" {
		t.Fatalf("unexpected Uploads.Dir: got %q", cfg.Uploads.Dir)
	}
	if cfg.APITimeout != 15*time.Second {
		t.Fatalf("unexpected APITimeout: got %v want %v", cfg.APITimeout, 15*time.Second)
	}
	if cfg.TokenDuration != 1*time.Hour {
		t.Fatalf("unexpected TokenDuration: got %v want %v", cfg.TokenDuration, 1*time.Hour)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("FLYAWAY_ADDR", ":7070")
	t.Setenv("FLYAWAY_CLASSIFIER_URL", "http://classifier:5000/predict")
	t.Setenv("FLYAWAY_CLASSIFIER_API_KEY", "k")

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("unexpected Addr: %q", cfg.Addr)
	}
	if cfg.Classifier.BaseURL != "http://classifier:5000/predict" || cfg.Classifier.APIKey != "k" {
		t.Fatalf("unexpected classifier config: %+v", cfg.Classifier)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`addr: ":9090"
jwt_secret: "filekey"
timeout: "30s"
database_path: "test.db"
token_duration: "2h"
migrate_on_start: true
uploads:
  dir: "/var/lib/flyaway"
  max_images: 4
classifier:
  base_url: "http://ai:5000/predict"
  concurrency: 2
fun_fact:
  provider: ollama
  ollama:
    base_url: "http://ollama:11434"
    models: ["mistral"]
    retries: 1
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error for file: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Fatalf("unexpected Addr: got %q want %q", cfg.Addr, ":9090")
	}
	if cfg.JWTSecret != "filekey" {
		t.Fatalf("unexpected JWTSecret: got %q want %q", cfg.JWTSecret, "filekey")
	}
	if cfg.APITimeout != 30*time.Second {
		t.Fatalf("unexpected APITimeout: got %v want %v", cfg.APITimeout, 30*time.Second)
	}
	if cfg.TokenDuration != 2*time.Hour {
		t.Fatalf("unexpected TokenDuration: got %v want %v", cfg.TokenDuration, 2*time.Hour)
	}
	if !cfg.MigrateOnStart {
		t.Fatalf("expected migrate_on_start")
	}
	if cfg.Uploads.Dir != "/var/lib/flyaway" || cfg.Uploads.MaxImages != 4 {
		t.Fatalf("unexpected uploads: %+v", cfg.Uploads)
	}
	if cfg.Classifier.Concurrency != 2 {
		t.Fatalf("unexpected classifier concurrency: %d", cfg.Classifier.Concurrency)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.FunFact.Model != "mistral" {
		t.Fatalf("unexpected fun fact model: %q", cfg.FunFact.Model)
	}
}

func TestLoadConfig_BadPath(t *testing.T) {
	if _, err := config.LoadConfig("/path/that/does/not/exist.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent path, got nil")
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("::: not yaml :::"), 0o600); err != nil {
		t.Fatalf("failed to write bad yaml: %v", err)
	}

	if _, err := config.LoadConfig(path); err == nil {
		t.Fatalf("expected YAML decode error, got nil")
	}
}
