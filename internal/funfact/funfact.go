// Package funfact produces a short fun fact about a species. Generation is
// best effort: callers always get text back, falling back to a fixed sentence
// when no provider is configured or the provider fails.
package funfact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/flyaway/internal/config"
	"github.com/garnizeh/flyaway/internal/metrics"
	"github.com/garnizeh/flyaway/pkg/ollama"
)

// Generator writes a fun fact for a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// maxFactLen caps the text returned to clients.
const maxFactLen = 500

// Fallback is the text used when no fact could be generated.
func Fallback(scientificName string) string {
	return fmt.Sprintf("No fun facts available for %s yet.", scientificName)
}

type Service struct {
	gen      Generator
	provider string
	prompt   string
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewService wraps gen. A nil gen always yields the fallback.
func NewService(gen Generator, provider string, cfg config.FunFactConfig, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = config.DefaultFunFactPrompt
	}
	return &Service{gen: gen, provider: provider, prompt: prompt, timeout: cfg.Timeout, logger: logger, metrics: m}
}

// FunFact returns a fact about scientificName. Failures are logged and
// replaced by Fallback; they are never returned.
func (s *Service) FunFact(ctx context.Context, scientificName string) string {
	if s == nil || s.gen == nil {
		return Fallback(scientificName)
	}

	prompt, err := ollama.RenderTemplate(s.prompt, map[string]string{"ScientificName": scientificName})
	if err != nil {
		s.logger.Warn("funfact: render prompt failed", slog.Any("err", err))
		s.metrics.FunFact(s.provider, "error")
		return Fallback(scientificName)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("funfact: generation failed",
			slog.String("provider", s.provider),
			slog.String("scientific_name", scientificName),
			slog.Any("err", err))
		s.metrics.FunFact(s.provider, "error")
		return Fallback(scientificName)
	}

	text = clean(text)
	if text == "" {
		s.logger.Warn("funfact: empty answer", slog.String("provider", s.provider), slog.String("scientific_name", scientificName))
		s.metrics.FunFact(s.provider, "empty")
		return Fallback(scientificName)
	}

	s.metrics.FunFact(s.provider, "ok")
	return text
}

// clean trims model chatter around the fact and caps its length.
func clean(s string) string {
	s = strings.TrimSpace(s)
	// reasoning models wrap their thoughts in <think> tags
	if i := strings.LastIndex(s, "</think>"); i >= 0 {
		s = strings.TrimSpace(s[i+len("</think>"):])
	}
	s = strings.Trim(s, "\"")
	if r := []rune(s); len(r) > maxFactLen {
		s = strings.TrimSpace(string(r[:maxFactLen])) + "..."
	}
	return s
}
