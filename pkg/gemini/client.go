// Package gemini provides a client for the Gemini generateContent API, used
// to turn scraped page markdown into structured records. Requests are
// rate-limited client-side because the free tier enforces a strict
// per-minute quota.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"

	// defaultRequestsPerMinute matches the free-tier quota.
	defaultRequestsPerMinute = 10
)

// Client defines the Gemini operations the pipeline uses.
type Client interface {
	// Generate sends a prompt and returns the model's text response.
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateJSON sends a prompt with JSON response mode enabled and
	// returns the raw JSON text.
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// APIError is returned when Gemini responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRequestsPerMinute adjusts the client-side rate limit.
func WithRequestsPerMinute(rpm int) Option {
	return func(c *httpClient) {
		if rpm > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new Gemini client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/defaultRequestsPerMinute), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// generateContent wire types.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

func (c *httpClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

func (c *httpClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, &generationConfig{ResponseMIMEType: "application/json"})
}

func (c *httpClient) generate(ctx context.Context, prompt string, cfg *generationConfig) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "gemini: rate limiter")
	}

	body := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: cfg,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return "", eris.Wrap(err, "gemini: marshal request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", eris.Wrap(err, "gemini: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "gemini: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "gemini: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", eris.Wrap(err, "gemini: decode response")
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", eris.New("gemini: empty response")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
