package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultTemperature = 0.7
	defaultModelsTTL   = 5 * time.Minute
	perMillion         = 1_000_000
)

// Message is one chat turn sent to /chat/completions.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Pricing is USD per million tokens. Nil means the catalog did not say.
type Pricing struct {
	Input  *float64
	Output *float64
}

// Model is one catalog entry.
type Model struct {
	ID      string
	Name    string
	Pricing Pricing
}

// ProviderError reports a failed completion or catalog call.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider http %d", e.Status)
	}
	return fmt.Sprintf("provider http %d: %s", e.Status, e.Body)
}

// Client talks to an OpenAI-compatible API, OpenRouter by default.
type Client struct {
	cfg         apiConfig
	http        *http.Client
	temperature float64
	modelsTTL   time.Duration

	mu        sync.Mutex
	models    []Model
	fetchedAt time.Time
}

// NewClientFromEnv resolves credentials and headers from the environment.
func NewClientFromEnv() (*Client, error) {
	cfg, err := resolveAPIConfig()
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: 120 * time.Second},
		temperature: defaultTemperature,
		modelsTTL:   defaultModelsTTL,
	}
	if v := envWithFallback(cfg.Kind == providerOpenRouter, "OPENAI_TEMPERATURE", "OPENROUTER_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.temperature = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_MODELS_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.modelsTTL = time.Duration(n) * time.Second
		}
	}
	return c, nil
}

// ListModels returns the provider catalog, cached for the models TTL.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	c.mu.Lock()
	if c.models != nil && time.Since(c.fetchedAt) < c.modelsTTL {
		out := c.models
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	body, err := c.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data []struct {
			ID      string                     `json:"id"`
			Name    string                     `json:"name"`
			Pricing map[string]json.RawMessage `json:"pricing"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	out := make([]Model, 0, len(payload.Data))
	for _, m := range payload.Data {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		out = append(out, Model{
			ID:   m.ID,
			Name: coalesce(m.Name, m.ID),
			Pricing: Pricing{
				Input:  maxPrice(m.Pricing, "prompt", "input"),
				Output: maxPrice(m.Pricing, "completion", "output"),
			},
		})
	}

	c.mu.Lock()
	c.models = out
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return out, nil
}

// Complete sends one chat completion and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	payload := map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": c.temperature,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	body, err := c.do(ctx, http.MethodPost, "/chat/completions", b)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &cc); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(cc.Choices) == 0 || cc.Choices[0].Message.Content == nil {
		return "", &ProviderError{Status: http.StatusOK, Body: "no content returned"}
	}
	return *cc.Choices[0].Message.Content, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(c.cfg.HeaderName, c.cfg.HeaderPrefix+c.cfg.APIKey)
	if c.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", c.cfg.Organization)
	}
	for k, v := range c.cfg.ExtraHeaders {
		setHeaderPreserveCase(req.Header, k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Status: resp.StatusCode, Body: truncate(string(body), 800)}
	}
	return body, nil
}

// setHeaderPreserveCase keeps OpenRouter's spelling of HTTP-Referer on the wire.
func setHeaderPreserveCase(h http.Header, key, value string) {
	h.Del(key)
	h[key] = []string{value}
}

// maxPrice converts per-token catalog prices to per-million and keeps the
// highest of the named fields. Prices arrive as numbers or numeric strings;
// negatives mark variable pricing and count as unknown.
func maxPrice(pricing map[string]json.RawMessage, keys ...string) *float64 {
	var best *float64
	for _, k := range keys {
		raw, ok := pricing[k]
		if !ok {
			continue
		}
		v, ok := parsePrice(raw)
		if !ok || v < 0 {
			continue
		}
		v *= perMillion
		if best == nil || v > *best {
			best = &v
		}
	}
	return best
}

func parsePrice(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envWithFallback(preferOpenRouter bool, openAIKey, openRouterKey string) string {
	keys := []string{openAIKey, openRouterKey}
	if preferOpenRouter {
		keys[0], keys[1] = keys[1], keys[0]
	}
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func coalesce(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
