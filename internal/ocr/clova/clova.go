// Package clova is a client for the CLOVA OCR general text recognition API.
package clova

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/domeok/internal/domain"
	"github.com/vbonduro/domeok/internal/ocr"
	"github.com/vbonduro/domeok/internal/upstream"
)

const (
	apiVersion = "V2"
	imageName  = "receipt"

	connectTimeout = 10 * time.Second
	totalTimeout   = 30 * time.Second

	service = "ocr service"
)

type image struct {
	Format string `json:"format"`
	Name   string `json:"name"`
	Data   string `json:"data"`
}

type request struct {
	Version   string  `json:"version"`
	RequestID string  `json:"requestId"`
	Timestamp int64   `json:"timestamp"`
	Images    []image `json:"images"`
}

type response struct {
	Images []struct {
		InferResult string `json:"inferResult"`
		Fields      []struct {
			InferText string `json:"inferText"`
		} `json:"fields"`
	} `json:"images"`
}

type Client struct {
	apiURL    string
	secretKey string
	client    *http.Client
	now       func() time.Time
}

func NewClient(apiURL, secretKey string) *Client {
	return &Client{
		apiURL:    apiURL,
		secretKey: secretKey,
		client:    upstream.NewHTTPClient(connectTimeout, totalTimeout),
		now:       time.Now,
	}
}

var _ ocr.TextExtractor = (*Client)(nil)

// ExtractText sends one image and returns all recognized text joined by single
// spaces. Images the service failed to read are skipped.
func (c *Client) ExtractText(ctx context.Context, img []byte, ext string) (string, error) {
	if c.apiURL == "" || c.secretKey == "" {
		return "", domain.NewError(domain.KindServiceUnavailable, "ocr service is not configured")
	}

	payload, err := json.Marshal(request{
		Version:   apiVersion,
		RequestID: uuid.NewString(),
		Timestamp: c.now().UnixMilli(),
		Images: []image{{
			Format: ext,
			Name:   imageName,
			Data:   base64.StdEncoding.EncodeToString(img),
		}},
	})
	if err != nil {
		return "", domain.WrapError(domain.KindServiceUnavailable, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", domain.WrapError(domain.KindServiceUnavailable, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-OCR-SECRET", c.secretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", upstream.ClassifyTransport(service, err)
	}
	defer upstream.CloseBody(resp, service)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", upstream.ClassifyTransport(service, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", domain.WrapError(domain.KindServiceUnavailable, "ocr secret key rejected",
			fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusBadRequest:
		return "", domain.WrapError(domain.KindServiceUnavailable, "ocr image format rejected",
			fmt.Errorf("status %d: %s", resp.StatusCode, body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", upstream.StatusError(service, resp.StatusCode, body)
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", domain.WrapError(domain.KindServiceUnavailable, "unexpected ocr service reply", err)
	}

	var words []string
	for _, im := range out.Images {
		if im.InferResult != "SUCCESS" {
			continue
		}
		for _, f := range im.Fields {
			words = append(words, f.InferText)
		}
	}
	return strings.Join(words, " "), nil
}
