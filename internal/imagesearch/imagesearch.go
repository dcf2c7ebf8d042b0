// Package imagesearch attaches a photo URL to a dish. Lookups never fail:
// every error degrades to one of two fixed fallback URLs.
package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/domeok/internal/upstream"
)

const (
	// NoCredentialImageURL is returned when no access key is configured.
	NoCredentialImageURL = "https://placehold.co/600x400?text=No+Image"
	// FallbackImageURL is returned when a lookup fails for any other reason.
	FallbackImageURL = "https://images.unsplash.com/photo-1546069901-ba9599a7e63c"

	defaultAPIURL = "https://api.unsplash.com"

	connectTimeout = 3 * time.Second
	totalTimeout   = 5 * time.Second
)

type Finder interface {
	FindImage(ctx context.Context, query string) string
}

type searchResponse struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

// UnsplashClient looks up one landscape photo per query on Unsplash.
type UnsplashClient struct {
	accessKey string
	client    *http.Client
	baseURL   string
	logger    *slog.Logger
}

func NewUnsplashClient(accessKey string, logger *slog.Logger) *UnsplashClient {
	return &UnsplashClient{
		accessKey: accessKey,
		client:    upstream.NewHTTPClient(connectTimeout, totalTimeout),
		baseURL:   defaultAPIURL,
		logger:    logger,
	}
}

var _ Finder = (*UnsplashClient)(nil)

func (c *UnsplashClient) FindImage(ctx context.Context, query string) string {
	if c.accessKey == "" {
		return NoCredentialImageURL
	}
	u, err := c.search(ctx, query)
	if err != nil {
		c.logger.Warn("image lookup failed, using fallback", "query", query, "error", err)
		return FallbackImageURL
	}
	return u
}

func (c *UnsplashClient) search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", "1")
	params.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call image service: %w", err)
	}
	defer upstream.CloseBody(resp, "image service")

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image service returned status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Results) == 0 || out.Results[0].URLs.Regular == "" {
		return "", fmt.Errorf("no results for %q", query)
	}
	return out.Results[0].URLs.Regular, nil
}

// FindAll looks up every query concurrently and returns the URLs in query
// order. It returns once the slowest lookup finishes; cancelling ctx cancels
// the lookups still in flight.
func FindAll(ctx context.Context, finder Finder, queries []string) []string {
	urls := make([]string, len(queries))
	grp, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		grp.Go(func() error {
			urls[i] = finder.FindImage(gctx, q)
			return nil
		})
	}
	_ = grp.Wait()
	return urls
}
