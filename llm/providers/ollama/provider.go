// Package ollama implements llm.Invoker against an Ollama-compatible
// generate endpoint (POST {host}/api/generate).
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lumifin/autopilot/internal/tlsutil"
	"github.com/lumifin/autopilot/llm"
	"github.com/lumifin/autopilot/types"
)

// Ensure Provider implements llm.Invoker
var _ llm.Invoker = (*Provider)(nil)

// Config holds the configuration for the Ollama provider.
type Config struct {
	// Host is the base URL of the generate endpoint (e.g. "http://localhost:11434").
	Host string

	// Model is the model name passed on every request.
	Model string

	// Timeout is the HTTP client timeout. Defaults to 2m if zero.
	Timeout time.Duration

	// Sampling shape. Zero values fall back to the fixed defaults
	// temperature 0.7, top_k 40, top_p 0.9.
	Temperature float32
	TopK        int
	TopP        float32

	// RequestsPerSecond enables a client-side rate limit when > 0.
	RequestsPerSecond float64
}

// Provider performs single best-effort generate calls. It carries no
// retry logic and no state beyond its HTTP client and limiter.
type Provider struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a new Ollama provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2:3b"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.TopK == 0 {
		cfg.TopK = 40
	}
	if cfg.TopP == 0 {
		cfg.TopP = 0.9
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Provider{
		cfg:     cfg,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		limiter: limiter,
		logger:  logger.With(zap.String("component", "ollama_provider")),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return "ollama" }

// Model returns the configured model name.
func (p *Provider) Model() string { return p.cfg.Model }

// generateRequest is the wire format of POST /api/generate.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float32 `json:"temperature"`
	TopK        int     `json:"top_k"`
	TopP        float32 `json:"top_p"`
}

// generateResponse is the subset of the response body we consume.
// A missing "response" field decodes to "" and is a valid empty result.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Invoke performs one generate call with role as the system instruction.
func (p *Provider) Invoke(ctx context.Context, role, prompt string) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", types.NewError(types.ErrCancelled, "rate limit wait interrupted").WithCause(err)
		}
	}

	body := generateRequest{
		Model:  p.cfg.Model,
		Prompt: prompt,
		System: role,
		Stream: false,
		Options: generateOptions{
			Temperature: p.cfg.Temperature,
			TopK:        p.cfg.TopK,
			TopP:        p.cfg.TopP,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/api/generate"), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", types.NewError(types.ErrCancelled, "generate call cancelled").WithCause(ctx.Err())
		}
		return "", types.NewConnectionError(
			fmt.Sprintf("generate endpoint unreachable: %s", p.cfg.Host), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", types.NewConnectionError(
			fmt.Sprintf("generate call failed: status=%d", resp.StatusCode), nil).
			WithHTTPStatus(resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", types.NewError(types.ErrProtocol, "malformed generate response").WithCause(err)
	}

	p.logger.Debug("generate call completed",
		zap.String("model", p.cfg.Model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("result_len", len(genResp.Response)),
	)

	// An empty Response on a 2xx is a valid empty result, not an error.
	return genResp.Response, nil
}

// Ping probes the engine host without triggering a generation.
// Used by the readiness endpoint.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/"), nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return types.NewConnectionError(
			fmt.Sprintf("engine unreachable: %s", p.cfg.Host), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewConnectionError(
			fmt.Sprintf("engine ping failed: status=%d", resp.StatusCode), nil).
			WithHTTPStatus(resp.StatusCode)
	}
	return nil
}

// endpoint builds the full URL for a given path.
func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.Host, "/") + path
}
