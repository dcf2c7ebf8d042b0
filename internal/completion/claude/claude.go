package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/domeok/internal/completion"
	"github.com/vbonduro/domeok/internal/domain"
	"github.com/vbonduro/domeok/internal/upstream"
)

const (
	connectTimeout = 10 * time.Second
	totalTimeout   = 50 * time.Second

	service = "completion service"
)

// Client completes prompts through the Anthropic Messages API.
type Client struct {
	apiKey string
	model  string
	api    *anthropic.Client
}

func NewClient(apiKey, model string) *Client {
	return newClient(apiKey, model)
}

func newClient(apiKey, model string, opts ...anthropic.ClientOption) *Client {
	opts = append([]anthropic.ClientOption{
		anthropic.WithHTTPClient(upstream.NewHTTPClient(connectTimeout, totalTimeout)),
	}, opts...)
	return &Client{
		apiKey: apiKey,
		model:  model,
		api:    anthropic.NewClient(apiKey, opts...),
	}
}

var _ completion.Completer = (*Client)(nil)

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", domain.NewError(domain.KindServiceUnavailable, "completion service is not configured")
	}

	temperature := float32(completion.Temperature)
	resp, err := c.api.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		Messages:    []anthropic.Message{anthropic.NewUserTextMessage(prompt)},
		MaxTokens:   completion.MaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", classify(err)
	}

	var sb strings.Builder
	for _, content := range resp.Content {
		if content.Type == anthropic.MessagesContentTypeText {
			sb.WriteString(content.GetText())
		}
	}
	return sb.String(), nil
}

// classify maps SDK errors onto the same kinds and messages as the HTTP
// chat-completions client.
func classify(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsRateLimitErr():
			return domain.WrapError(domain.KindServiceUnavailable, "completion service rate limit exceeded", err)
		case apiErr.IsAuthenticationErr():
			return domain.WrapError(domain.KindServiceUnavailable, "completion service authentication failed", err)
		default:
			return domain.WrapError(domain.KindServiceUnavailable, fmt.Sprintf("%s returned %s", service, apiErr.Type), err)
		}
	}

	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.StatusCode {
		case http.StatusTooManyRequests:
			return domain.WrapError(domain.KindServiceUnavailable, "completion service rate limit exceeded", err)
		case http.StatusUnauthorized:
			return domain.WrapError(domain.KindServiceUnavailable, "completion service authentication failed", err)
		default:
			return domain.WrapError(domain.KindServiceUnavailable, fmt.Sprintf("%s returned status %d", service, reqErr.StatusCode), err)
		}
	}

	return upstream.ClassifyTransport(service, err)
}
