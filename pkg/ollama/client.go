package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/garnizeh/flyaway/internal/config"
	"github.com/ollama/ollama/api"
)

var ErrCircuitOpen = errors.New("ollama circuit open")

// ErrNoModel means the instance is up but does not serve a usable model.
var ErrNoModel = errors.New("ollama has no usable model")

// Client generates fun facts through a local Ollama instance, with per-call
// timeouts, retries and a circuit breaker.
type Client struct {
	api    *api.Client
	cfg    config.OllamaConfig
	client *http.Client

	// simple circuit breaker state
	failures  int32
	openUntil int64 // unix nano
	closed    int32 // atomic flag for Close()
}

// GenerateResult is one completed generation.
type GenerateResult struct {
	Text       string        `json:"text"`
	Model      string        `json:"model"`
	DoneReason string        `json:"done_reason,omitempty"`
	Latency    time.Duration `json:"latency"`
}

func NewClient(cfg config.OllamaConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		api:    api.NewClient(u, httpClient),
		cfg:    cfg,
		client: httpClient,
	}
	logger.Info("ollama: client created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

func NewDefaultClient(cfg config.OllamaConfig) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient)
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}

	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}

	// half-open: let one request through
	atomic.StoreInt32(&c.failures, 0)
	return false
}

// Close drops idle connections of the transport. It is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
			logger.Debug("ollama: idle connections closed")
		}
	}
	return nil
}

// package-level logger for pkg/ollama; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/ollama. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

// Health reports whether the instance is reachable and serves one of the
// configured models. With no configured models any installed model will do.
func (c *Client) Health(ctx context.Context) error {
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	models, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if len(models) == 0 {
		c.recordFailure()
		return fmt.Errorf("health check failed: %w", ErrNoModel)
	}
	if len(c.cfg.DefaultModelNames) == 0 {
		return nil
	}
	for _, want := range c.cfg.DefaultModelNames {
		if hasModel(models, want) {
			return nil
		}
	}
	return fmt.Errorf("health check failed: %w: want one of %s", ErrNoModel, strings.Join(c.cfg.DefaultModelNames, ", "))
}

// hasModel matches "llama3" against installed tags such as "llama3:latest".
func hasModel(models []ModelInfo, name string) bool {
	for _, m := range models {
		if m.Name == name || strings.TrimSuffix(m.Name, ":latest") == name {
			return true
		}
	}
	return false
}

// ModelInfo is an installed model as reported by GET /api/tags.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if c.isCircuitOpen() {
		return nil, ErrCircuitOpen
	}

	resp, err := c.api.List(ctx)
	if err != nil {
		c.recordFailure()
		return nil, err
	}

	out := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		out = append(out, ModelInfo{Name: m.Name, Size: m.Size})
	}

	atomic.StoreInt32(&c.failures, 0)
	return out, nil
}

// Generate sends a prompt to model and returns the joined, trimmed response.
// Failed attempts are retried up to cfg.Retries times, waiting
// cfg.Backoff * attempt in between unless ctx ends first.
func (c *Client) Generate(ctx context.Context, model string, prompt string) (GenerateResult, error) {
	if c.isCircuitOpen() {
		return GenerateResult{}, ErrCircuitOpen
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, c.cfg.Backoff*time.Duration(attempt)); err != nil {
				return GenerateResult{}, err
			}
			if c.isCircuitOpen() {
				return GenerateResult{}, ErrCircuitOpen
			}
		}

		res, err := c.generateOnce(ctx, model, prompt)
		if err == nil {
			atomic.StoreInt32(&c.failures, 0)
			return res, nil
		}

		lastErr = err
		c.recordFailure()
		if ctx.Err() != nil {
			return GenerateResult{}, ctx.Err()
		}
		logger.Warn("ollama: generate attempt failed", slog.String("model", model), slog.Int("attempt", attempt+1), slog.Any("err", err))
	}

	return GenerateResult{}, fmt.Errorf("generate failed after %d attempts: %w", c.cfg.Retries+1, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, model, prompt string) (GenerateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var (
		text strings.Builder
		last api.GenerateResponse
	)
	start := time.Now()
	err := c.api.Generate(ctx, &api.GenerateRequest{Model: model, Prompt: prompt}, func(r api.GenerateResponse) error {
		text.WriteString(r.Response)
		last = r
		return nil
	})
	if err != nil {
		return GenerateResult{}, err
	}

	return GenerateResult{
		Text:       strings.TrimSpace(text.String()),
		Model:      model,
		DoneReason: last.DoneReason,
		Latency:    time.Since(start),
	}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
