// Package upstream holds the pieces shared by every outbound service client:
// HTTP clients with a connect timeout shorter than the total timeout, and the
// translation of transport failures into domain error kinds.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vbonduro/domeok/internal/domain"
)

// NewHTTPClient returns a client whose dial and TLS handshake are bounded by
// connect and whose whole exchange is bounded by total.
func NewHTTPClient(connect, total time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connect
	return &http.Client{Transport: transport, Timeout: total}
}

// ClassifyTransport maps an error returned by http.Client.Do to a domain error.
// service names the upstream in the caller-facing detail.
func ClassifyTransport(service string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.KindTimeout, fmt.Sprintf("%s timed out", service), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.WrapError(domain.KindTimeout, fmt.Sprintf("%s timed out", service), err)
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return domain.WrapError(domain.KindConnectionFailed, fmt.Sprintf("%s unreachable", service), err)
	}
	return domain.WrapError(domain.KindServiceUnavailable, fmt.Sprintf("%s request failed", service), err)
}

// StatusError maps a non-2xx response to ServiceUnavailable. Callers handle
// the statuses that need a dedicated message before falling through here.
func StatusError(service string, status int, body []byte) error {
	return domain.WrapError(domain.KindServiceUnavailable,
		fmt.Sprintf("%s returned status %d", service, status),
		fmt.Errorf("status %d: %s", status, truncate(body, 512)))
}

// CloseBody closes an HTTP response body, logging any failure.
func CloseBody(resp *http.Response, service string) {
	if err := resp.Body.Close(); err != nil {
		slog.Error("failed to close response body", "service", service, "error", err)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
