package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// StatusError is a non-2xx answer from an upstream service.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Temporary reports whether repeating the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type jsonClient struct {
	service    string
	retryCount int
	retryDelay time.Duration
	client     *http.Client
	logger     zerolog.Logger
}

func newJSONClient(service string, timeout time.Duration, retryCount int, retryDelay time.Duration, logger zerolog.Logger) jsonClient {
	return jsonClient{
		service:    service,
		retryCount: retryCount,
		retryDelay: retryDelay,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// postJSON sends payload and decodes the answer into out, retrying network errors,
// 429 and 5xx with a linearly growing delay.
func (c *jsonClient) postJSON(ctx context.Context, url string, headers map[string]string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for i := 0; i <= c.retryCount; i++ {
		if i > 0 {
			c.logger.Warn().Err(lastErr).Str("service", c.service).Int("attempt", i).Msg("Retrying request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(i)):
			}
		}

		lastErr = c.do(ctx, url, headers, body, out)
		if lastErr == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && !statusErr.Temporary() {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}

	return fmt.Errorf("%s request failed after %d attempts: %w", c.service, c.retryCount+1, lastErr)
}

func (c *jsonClient) do(ctx context.Context, url string, headers map[string]string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Service: c.service, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.service, err)
	}
	return nil
}
