package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vbonduro/domeok/internal/completion"
	"github.com/vbonduro/domeok/internal/domain"
	"github.com/vbonduro/domeok/internal/upstream"
)

const (
	connectTimeout = 10 * time.Second
	totalTimeout   = 50 * time.Second

	service = "completion service"
)

type options struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
}

type request struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Format  string  `json:"format"`
	Options options `json:"options"`
}

// Client runs prompts against a self-hosted Ollama server.
type Client struct {
	host   string
	model  string
	client *http.Client
}

func NewClient(host, model string) *Client {
	return &Client{
		host:   host,
		model:  model,
		client: upstream.NewHTTPClient(connectTimeout, totalTimeout),
	}
}

var _ completion.Completer = (*Client)(nil)

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.host == "" {
		return "", domain.NewError(domain.KindServiceUnavailable, "completion service is not configured")
	}

	// Ollama's json format constrains the reply to a single JSON value.
	payload, err := json.Marshal(request{
		Model:  c.model,
		Prompt: prompt,
		Format: "json",
		Options: options{
			NumPredict:  completion.MaxTokens,
			Temperature: completion.Temperature,
		},
	})
	if err != nil {
		return "", domain.WrapError(domain.KindServiceUnavailable, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", domain.WrapError(domain.KindServiceUnavailable, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", upstream.ClassifyTransport(service, err)
	}
	defer upstream.CloseBody(resp, service)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", upstream.ClassifyTransport(service, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", upstream.StatusError(service, resp.StatusCode, body)
	}

	var out struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", domain.WrapError(domain.KindServiceUnavailable, "unexpected completion service reply", err)
	}
	if out.Error != "" {
		return "", domain.WrapError(domain.KindServiceUnavailable, "completion service request failed",
			fmt.Errorf("ollama: %s", out.Error))
	}
	return out.Response, nil
}
