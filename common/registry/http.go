package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Logger interface for registry client logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// HTTPClient talks to the registry service over HTTP
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  Logger
}

// NewHTTPClient creates a registry client against baseURL
func NewHTTPClient(baseURL string, timeout time.Duration, logger Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// GetRecord reads one registry record by reference
func (c *HTTPClient) GetRecord(ctx context.Context, ref string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/api/v1/records/%s", c.baseURL, url.PathEscape(ref))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry GET %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry GET %s: unexpected status %d", ref, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read registry response: %w", err)
	}

	c.logger.Debug("registry record fetched", "ref", ref)
	return body, nil
}

// MarkCompleted patches the record's status to completed with a merge
// patch containing only the status field, so payment/settlement fields
// on the record are never overwritten.
func (c *HTTPClient) MarkCompleted(ctx context.Context, ref string) error {
	original, err := c.GetRecord(ctx, ref)
	if err != nil {
		return err
	}

	patch, err := buildStatusPatch(original, StatusCompleted)
	if err != nil {
		return err
	}
	if patch == nil {
		c.logger.Debug("registry record already completed", "ref", ref)
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/records/%s", c.baseURL, url.PathEscape(ref))

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(patch))
	if err != nil {
		return fmt.Errorf("build registry patch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/merge-patch+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("registry PATCH %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("registry PATCH %s: unexpected status %d", ref, resp.StatusCode)
	}

	c.logger.Info("registry record marked completed", "ref", ref)
	return nil
}
