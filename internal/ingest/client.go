package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

// ErrEmptyURLFile is returned when a URL-pointer file holds no URL.
var ErrEmptyURLFile = errors.New("url file is empty")

// Client fetches raw dataset payloads over HTTP.
// It does not retry: any failure aborts the run that asked for the data.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new fetch client. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// ReadURLFile reads a URL-pointer file. The file holds exactly one URL;
// surrounding whitespace is ignored.
func ReadURLFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading url file %s: %w", path, err)
	}

	u := strings.TrimSpace(string(data))
	if u == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyURLFile)
	}
	return u, nil
}

// Fetch retrieves the body at url.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	c.logger.InfoContext(ctx, "Getting data", slog.String("url", url))

	body, status, err := c.doRequest(ctx, url)
	if err != nil {
		c.logger.ErrorContext(ctx, "Request failed",
			slog.String("url", url),
			slog.Int("status", status),
			slog.String("error", err.Error()))
		return nil, err
	}

	c.logger.InfoContext(ctx, "Request returned",
		slog.String("url", url),
		slog.Int("status", status),
		slog.Int("bytes", len(body)))
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, httpResp.StatusCode, fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, truncate(string(body), 200))
	}

	return body, httpResp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
