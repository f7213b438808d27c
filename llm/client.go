// Package llm is the model-invocation side of the enrichment pipeline: one
// prompt in, one completion out. Timeouts live here; retries live nowhere.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 30 * time.Second
)

var (
	ErrMissingAPIKey = errors.New("missing model API key")
	ErrNoChoices     = errors.New("model returned no choices")
)

// Request is one model call.
type Request struct {
	Prompt    string
	MaxTokens int
	// Temperature 0 is sent as the smallest positive float32; the API
	// client drops a zero value and the provider default applies.
	Temperature float32
	// Model overrides the client default when set.
	Model string
}

// Response carries the completion text.
type Response struct {
	Content string
}

// Config configures a Client.
type Config struct {
	APIKey string
	// BaseURL points at any OpenAI-compatible endpoint; empty means OpenAI.
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client is safe to share across goroutines.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewClient builds a client from cfg.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		api:     openai.NewClientWithConfig(oc),
		model:   model,
		timeout: timeout,
		log:     log.With().Str("component", "llm").Logger(),
	}, nil
}

// Invoke sends req.Prompt as a single user message.
func (c *Client) Invoke(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("chat completion (%s): %w", model, err)
	}

	c.log.Debug().
		Str("model", model).
		Int("max_tokens", req.MaxTokens).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("took", time.Since(start)).
		Msg("model call")

	if len(resp.Choices) == 0 {
		return Response{}, ErrNoChoices
	}
	return Response{Content: resp.Choices[0].Message.Content}, nil
}
