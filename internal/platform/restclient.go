package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/metrics"
)

// Request tuning shared by all vendor adapters.
const (
	DefaultRequestTimeout = 10 * time.Second
	maxErrorBodyBytes     = 512
	maxResponseBytes      = 8 << 20 // 8 MB
)

// RESTClient performs bearer-authenticated JSON requests against one platform.
// Every failure is logged here, so adapters only translate results.
type RESTClient struct {
	platform   string
	baseURL    string
	token      string
	httpClient *http.Client
	log        *logger.Logger
}

// NewRESTClient builds a client with the fixed request timeout.
func NewRESTClient(platform, baseURL, token string, log *logger.Logger) *RESTClient {
	return &RESTClient{
		platform:   platform,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
		log:        log.OrNop(),
	}
}

// BaseURL returns the normalized base URL (no trailing slash).
func (c *RESTClient) BaseURL() string { return c.baseURL }

// Do sends body (JSON-encoded when non-nil) and decodes the answer into out when non-nil.
func (c *RESTClient) Do(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.DoRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.fail(method, path, fmt.Errorf("%w: decode %s %s: %w", ErrTransport, method, path, err))
	}
	return nil
}

// DoRaw is Do without decoding; it returns the response body.
func (c *RESTClient) DoRaw(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, c.fail(method, path, fmt.Errorf("%w: build request: %w", ErrTransport, err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(method, path, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, c.fail(method, path, &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		})
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.fail(method, path, fmt.Errorf("%w: read %s %s: %w", ErrTransport, method, path, err))
	}
	metrics.AdapterRequests.WithLabelValues(c.platform, method, metrics.OutcomeOK).Inc()
	return raw, nil
}

func (c *RESTClient) fail(method, path string, err error) error {
	metrics.AdapterRequests.WithLabelValues(c.platform, method, metrics.OutcomeError).Inc()
	c.log.Warnw("adapter_request_failed",
		"platform", c.platform,
		"method", method,
		"path", path,
		"err", err,
	)
	return err
}
