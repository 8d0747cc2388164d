// Package provider wraps an OpenAI-compatible chat completions endpoint
// behind a rate-limited, retrying client. Everything endpoint-specific
// (base URL, model identifier, pacing, retry ceiling) is configuration, so
// the same client drives DeepSeek, OpenAI, or a local test server.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Message is one turn of conversation context.
type Message struct {
	Role    string // "system" or "user"
	Content string
}

// Request describes a single completion call.
type Request struct {
	Messages    []Message
	MaxTokens   int64
	Temperature float64
	// JSONObject asks the endpoint to constrain output to a JSON object.
	JSONObject bool
}

// ServiceError reports that the endpoint kept failing after the configured
// number of attempts, or failed in a way retrying cannot fix.
type ServiceError struct {
	Attempts int
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("completion failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ProtocolError reports a well-formed HTTP exchange whose payload is
// unusable, such as a response with no choices.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "completion response unusable: " + e.Reason
}

// Config carries endpoint and pacing settings for a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	// MinRequestInterval is the minimum gap between request starts.
	MinRequestInterval time.Duration
	// MaxRetries is the number of re-attempts after the first try.
	MaxRetries     int
	RequestTimeout time.Duration
	// BackoffBase is the sleep before the first retry; it doubles per attempt.
	BackoffBase time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinRequestInterval <= 0 {
		c.MinRequestInterval = time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 2 * time.Minute
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	return c
}

// Client is a pacing and retry layer over the chat completions API.
type Client struct {
	api     openai.Client
	model   string
	limiter *rate.Limiter
	cfg     Config
	log     zerolog.Logger
}

// NewClient builds a Client. The SDK's own retry machinery is disabled so
// the attempt count here is the attempt count on the wire.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	cfg = cfg.withDefaults()
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.RequestTimeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		api:     openai.NewClient(opts...),
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Every(cfg.MinRequestInterval), 1),
		cfg:     cfg,
		log:     log,
	}
}

// Model reports the configured model identifier.
func (c *Client) Model() string { return c.model }

// Complete performs one rate-limited completion call, retrying transient
// failures with exponential backoff. It returns the assistant message text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    toSDKMessages(req.Messages),
		MaxTokens:   openai.Int(req.MaxTokens),
		Temperature: openai.Float(req.Temperature),
	}
	if req.JSONObject {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	attempts := c.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", &ProtocolError{Reason: "no choices in response"}
			}
			content := resp.Choices[0].Message.Content
			if content == "" {
				return "", &ProtocolError{Reason: "empty message content"}
			}
			return content, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) {
			return "", &ServiceError{Attempts: attempt + 1, Err: err}
		}
		if attempt == attempts-1 {
			break
		}

		wait := c.cfg.BackoffBase << attempt
		c.log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("completion call failed, retrying")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", &ServiceError{Attempts: attempts, Err: lastErr}
}

// retryable classifies an error from the SDK. Rate limits, server-side
// failures and transport errors are worth another attempt; client-side API
// errors are not.
func retryable(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 408, 409, 429:
			return true
		}
		return apierr.StatusCode >= 500
	}
	// Non-API errors are transport-level (connection reset, timeout).
	return true
}

func toSDKMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
