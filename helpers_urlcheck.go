// includenav/helpers_urlcheck.go
// Contains the HTTP HEAD checker used for URL hovers.
package includenav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// URLChecker reports the HTTP status of a URL without downloading it.
type URLChecker interface {
	Check(ctx context.Context, rawURL string, timeout time.Duration) (URLStatus, error)
}

// httpChecker implements URLChecker with HEAD requests. Redirects are reported, not followed.
type httpChecker struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func newHTTPChecker(logger *slog.Logger) *httpChecker {
	return &httpChecker{
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.With("component", "URLChecker"),
	}
}

// Check sends a HEAD request bounded by timeout.
func (h *httpChecker) Check(ctx context.Context, rawURL string, timeout time.Duration) (URLStatus, error) {
	checkLogger := h.logger.With("url", rawURL)
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		checkLogger.Debug("Failed to create HEAD request", "error", err)
		return URLStatus{}, fmt.Errorf("%w: %w", ErrNetworkUnreachable, err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			checkLogger.Debug("URL check timed out", "timeout", timeout)
		} else {
			checkLogger.Debug("URL check failed", "error", err)
		}
		return URLStatus{}, fmt.Errorf("%w: %w", ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	checkLogger.Debug("URL check completed", "status", resp.StatusCode)
	return URLStatus{StatusCode: resp.StatusCode, StatusMessage: msg}, nil
}
