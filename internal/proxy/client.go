// Package proxy talks to an OpenAI-compatible chat completion API.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "gpt-4"
	DefaultMaxTokens = 200
	defaultTimeout   = 60 * time.Second
)

// ErrEmptyResponse is returned when the upstream reply has no choices.
var ErrEmptyResponse = errors.New("upstream returned no choices")

// Message is one role/content turn sent upstream.
type Message struct {
	Role    string
	Content string
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	// Referer and Title are sent as HTTP-Referer and X-Title, which
	// OpenRouter uses for attribution.
	Referer string
	Title   string

	HTTPClient *http.Client
}

// Client sends chat completion requests.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewClient creates a client from opts.
func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = DefaultBaseURL
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.Referer != "" || opts.Title != "" {
		h := http.Header{}
		if opts.Referer != "" {
			h.Set("HTTP-Referer", opts.Referer)
		}
		if opts.Title != "" {
			h.Set("X-Title", opts.Title)
		}
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *httpClient
		wrapped.Transport = headerTransport{rt: base, headers: h}
		httpClient = &wrapped
	}
	cfg.HTTPClient = httpClient

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Client{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Model returns the model requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Complete sends messages and returns the first choice's content. The call
// is made once; failures are not retried.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  make([]openai.ChatCompletionMessage, len(messages)),
		MaxTokens: c.maxTokens,
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", describe(err))
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// describe flattens provider errors into a message that names the upstream
// status, keeping the original error wrapped.
func describe(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("upstream status %d: %w", apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("upstream status %d: %w", reqErr.HTTPStatusCode, err)
	}
	return err
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}
