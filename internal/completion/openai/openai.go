package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/vbonduro/domeok/internal/completion"
	"github.com/vbonduro/domeok/internal/domain"
	"github.com/vbonduro/domeok/internal/upstream"
)

const (
	connectTimeout = 10 * time.Second
	totalTimeout   = 50 * time.Second

	service = "completion service"
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	apiKey string
	model  string
	api    openai.Client
}

// NewClient creates a chat-completions client. baseURL may be empty to use
// the public OpenAI endpoint.
func NewClient(apiKey, model, baseURL string) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(upstream.NewHTTPClient(connectTimeout, totalTimeout)),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		apiKey: apiKey,
		model:  model,
		api:    openai.NewClient(opts...),
	}
}

var _ completion.Completer = (*Client)(nil)

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", domain.NewError(domain.KindServiceUnavailable, "completion service is not configured")
	}

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		MaxTokens:   openai.Int(completion.MaxTokens),
		Temperature: openai.Float(completion.Temperature),
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewError(domain.KindServiceUnavailable, "completion service returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return domain.WrapError(domain.KindServiceUnavailable, "completion service rate limit exceeded", err)
		case http.StatusUnauthorized:
			return domain.WrapError(domain.KindServiceUnavailable, "completion service authentication failed", err)
		default:
			return domain.WrapError(domain.KindServiceUnavailable,
				fmt.Sprintf("%s returned status %d", service, apiErr.StatusCode), err)
		}
	}
	return upstream.ClassifyTransport(service, err)
}
