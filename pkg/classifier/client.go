// Package classifier is the client of the image classification service.
// The service takes one image per request and answers with the most likely
// species label for the requested kingdom.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/garnizeh/flyaway/internal/config"
	"github.com/garnizeh/flyaway/pkg/models"
)

// ErrUnavailable means the service answered with a non-success status. The
// whole batch a request belongs to should be abandoned.
var ErrUnavailable = errors.New("classifier unavailable")

// ErrCircuitOpen is returned without calling the service while the circuit is
// open. Only non-success statuses count toward opening it; transport errors
// concern a single image and leave it alone.
var ErrCircuitOpen = fmt.Errorf("classifier circuit open: %w", ErrUnavailable)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Result is one classification.
type Result struct {
	SpeciesName string  `json:"species_name"`
	Confidence  float64 `json:"confidence"`
	Success     *bool   `json:"success,omitempty"`
	Type        string  `json:"type,omitempty"`
	ClassIndex  int     `json:"class_idx"`
}

// Client calls the classification service with a timeout and a simple
// circuit breaker.
type Client struct {
	cfg     config.ClassifierConfig
	client  *http.Client
	baseURL *url.URL

	failures  int32
	openUntil int64 // unix nano
	closed    int32
}

// package-level logger for pkg/classifier; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/classifier. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func NewClient(cfg config.ClassifierConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	logger.Info("classifier: client created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return &Client{cfg: cfg, client: httpClient, baseURL: u}, nil
}

func NewDefaultClient(cfg config.ClassifierConfig) (*Client, error) {
	defaultClient := &http.Client{
		Timeout: cfg.Timeout,
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

// Classify sends one image and returns the service's label for it. Errors
// wrapping ErrUnavailable mean the service refused the request; any other
// error concerns this image only.
func (c *Client) Classify(ctx context.Context, img models.Upload, kingdom models.Kingdom) (*Result, error) {
	if c.isCircuitOpen() {
		return nil, ErrCircuitOpen
	}

	body, contentType, err := multipartBody(img)
	if err != nil {
		return nil, fmt.Errorf("build request body: %w", err)
	}

	u := *c.baseURL
	q := u.Query()
	q.Set("type", string(kingdom))
	u.RawQuery = q.Encode()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", img.Filename, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordFailure()
		logger.Error("classifier: non-success status",
			slog.Int("status", resp.StatusCode),
			slog.String("kingdom", string(kingdom)),
			slog.String("body", truncate(raw, 256)))
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	atomic.StoreInt32(&c.failures, 0)

	if err := validateResponse(ctx, raw); err != nil {
		return nil, err
	}

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if res.Success != nil && !*res.Success {
		return nil, fmt.Errorf("classifier could not label %s", img.Filename)
	}

	return &res, nil
}

// Health calls GET /health next to the predict endpoint.
func (c *Client) Health(ctx context.Context) error {
	u := c.baseURL.ResolveReference(&url.URL{Path: "/health"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections. It is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if c.cfg.CircuitFailureThreshold <= 0 || atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}

	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}

	// half-open: let the next request through
	atomic.StoreInt32(&c.failures, 0)
	return false
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if c.cfg.CircuitFailureThreshold > 0 && v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

func multipartBody(img models.Upload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	name := img.Filename
	if name == "" {
		name = "image"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	ct := img.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func escapeQuotes(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
