package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinConfidence is the classification confidence below which a result is
// discarded. It is fixed; configuration may only restate it.
const MinConfidence = 0.4

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Addr           string        `yaml:"addr"`
	JWTSecret      string        `yaml:"jwt_secret"`
	APITimeout     time.Duration `yaml:"timeout"`
	DatabasePath   string        `yaml:"database_path"`
	TokenDuration  time.Duration `yaml:"token_duration"`
	MigrateOnStart bool          `yaml:"migrate_on_start"`
	LogLevel       string        `yaml:"log_level"`

	Uploads    UploadsConfig    `yaml:"uploads"`
	Classifier ClassifierConfig `yaml:"classifier"`
	FunFact    FunFactConfig    `yaml:"fun_fact"`
}

type UploadsConfig struct {
	Dir           string `yaml:"dir"`
	MaxImageBytes int64  `yaml:"max_image_bytes"`
	MaxImages     int    `yaml:"max_images"`
}

type ClassifierConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	APIKey                  string        `yaml:"api_key"`
	Timeout                 time.Duration `yaml:"timeout"`
	Concurrency             int           `yaml:"concurrency"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
	MinConfidence           float64       `yaml:"min_confidence"`
}

// Fun fact providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

type FunFactConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	Prompt   string        `yaml:"prompt"`
	OpenAI   OpenAIConfig  `yaml:"openai"`
	Ollama   OllamaConfig  `yaml:"ollama"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	DefaultModelNames       []string      `yaml:"models"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

// DefaultFunFactPrompt is rendered with the species' scientific name.
const DefaultFunFactPrompt = "Write a random fun fact about {{.ScientificName}}. Answer with one or two sentences."

func LoadConfig(path string) (*Config, error) {
	apiTimeout := 15 * time.Second
	tokenDuration := 1 * time.Hour

	cfg := &Config{
		Addr:          getEnv("FLYAWAY_ADDR", ":8080"),
		JWTSecret:     getEnv("FLYAWAY_JWT_SECRET", insecureJWTSecret),
		APITimeout:    apiTimeout,
		DatabasePath:  getEnv("FLYAWAY_DATABASE_PATH", "flyaway.db"),
		TokenDuration: tokenDuration,
		LogLevel:      getEnv("FLYAWAY_LOG_LEVEL", "info"),
		Uploads: UploadsConfig{
			Dir: getEnv("FLYAWAY_UPLOAD_DIR", "storage"),
		},
		Classifier: ClassifierConfig{
			BaseURL: getEnv("FLYAWAY_CLASSIFIER_URL", "http://localhost:5000/predict"),
			APIKey:  os.Getenv("FLYAWAY_CLASSIFIER_API_KEY"),
		},
		FunFact: FunFactConfig{
			Provider: getEnv("FLYAWAY_FUNFACT_PROVIDER", ProviderNone),
			OpenAI: OpenAIConfig{
				BaseURL: os.Getenv("FLYAWAY_OPENAI_BASE_URL"),
				APIKey:  os.Getenv("FLYAWAY_OPENAI_API_KEY"),
			},
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate fills unset values with defaults and rejects unusable settings.
// The default JWT secret is only accepted when FLYAWAY_ENV=development.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = time.Hour
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	} else if c.JWTSecret == insecureJWTSecret && os.Getenv("FLYAWAY_ENV") != "development" {
		errs = append(errs, errors.New("jwt_secret uses the insecure default; set FLYAWAY_JWT_SECRET or FLYAWAY_ENV=development"))
	}

	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "storage"
	}
	if c.Uploads.MaxImageBytes <= 0 {
		c.Uploads.MaxImageBytes = 5 << 20
	}
	if c.Uploads.MaxImages <= 0 {
		c.Uploads.MaxImages = 10
	}

	errs = append(errs, c.Classifier.validate()...)
	errs = append(errs, c.FunFact.validate()...)

	return errors.Join(errs...)
}

func (c *ClassifierConfig) validate() []error {
	var errs []error

	if c.BaseURL == "" {
		errs = append(errs, errors.New("classifier.base_url is required"))
	} else if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("classifier.base_url: %w", err))
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.CircuitFailureThreshold <= 0 {
		c.CircuitFailureThreshold = 5
	}
	if c.CircuitReset <= 0 {
		c.CircuitReset = 30 * time.Second
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = MinConfidence
	} else if c.MinConfidence != MinConfidence {
		errs = append(errs, fmt.Errorf("classifier.min_confidence is fixed at %.1f", MinConfidence))
	}

	return errs
}

func (c *FunFactConfig) validate() []error {
	var errs []error

	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderNone
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Prompt == "" {
		c.Prompt = DefaultFunFactPrompt
	}

	switch c.Provider {
	case ProviderNone:
	case ProviderOpenAI:
		if c.Model == "" {
			c.Model = "gpt-4o-mini"
		}
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("fun_fact.openai.api_key is required for the openai provider"))
		}
	case ProviderOllama:
		c.Ollama.fillDefaults()
		if c.Model == "" && len(c.Ollama.DefaultModelNames) > 0 {
			c.Model = c.Ollama.DefaultModelNames[0]
		}
	default:
		errs = append(errs, fmt.Errorf("fun_fact.provider %q: use openai, ollama or none", c.Provider))
	}

	return errs
}

func (o *OllamaConfig) fillDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = "http://localhost:11434"
	}
	if len(o.DefaultModelNames) == 0 {
		o.DefaultModelNames = []string{"llama3"}
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Retries <= 0 {
		o.Retries = 2
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.CircuitFailureThreshold <= 0 {
		o.CircuitFailureThreshold = 5
	}
	if o.CircuitReset <= 0 {
		o.CircuitReset = 30 * time.Second
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
