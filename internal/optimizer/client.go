package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// Client submits vehicle-routing problems to the external optimization
// service and polls for results.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *logger.Logger
}

// NewClient creates an optimization API client.
func NewClient(baseURL, apiKey string, pollInterval, pollTimeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      baseURL,
		apiKey:       apiKey,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       log.Named("optimizer-cli"),
	}
}

// Submit posts a problem and returns the request ID to poll.
func (c *Client) Submit(ctx context.Context, reqBody any) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode optimization request: %w", err)
	}

	submitURL := fmt.Sprintf("%s?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Submitting optimization request", logger.Int("body_bytes", len(payload)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("optimization submit failed with status %d: %s", resp.StatusCode, truncate(body, 300))
	}

	var submitted submitResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		return "", fmt.Errorf("failed to parse submit response: %w", err)
	}
	requestID := submitted.ID
	if requestID == "" {
		requestID = submitted.RequestID
	}
	if requestID == "" {
		return "", fmt.Errorf("submit response carried no request id: %s", truncate(body, 300))
	}

	c.logger.Debug("Optimization request accepted", logger.String("request_id", requestID))
	return requestID, nil
}

// Poll fetches the result for a request ID every poll interval until the
// service reports it ready, the poll timeout elapses, or ctx is canceled.
func (c *Client) Poll(ctx context.Context, requestID string) (*Result, error) {
	pollCtx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	resultURL := fmt.Sprintf("%s/result?id=%s&key=%s",
		c.baseURL, url.QueryEscape(requestID), url.QueryEscape(c.apiKey))

	for attempt := 1; ; attempt++ {
		result, err := c.fetchResult(pollCtx, resultURL)
		if err != nil {
			return nil, fmt.Errorf("polling optimization result %s: %w", requestID, err)
		}

		status := result.Status
		if status == "" && result.Result != nil {
			status = result.Result.Status
		}
		message := result.Message
		if message == "" && result.Result != nil {
			message = result.Result.Message
		}

		c.logger.Debug("Optimization poll",
			logger.String("request_id", requestID),
			logger.Int("attempt", attempt),
			logger.String("status", status),
			logger.String("message", message))

		if status == "Ok" && message != "Job still processing" {
			return result, nil
		}

		select {
		case <-pollCtx.Done():
			return nil, fmt.Errorf("optimization result %s not ready: %w", requestID, pollCtx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) fetchResult(ctx context.Context, resultURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, truncate(body, 300))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	result.Raw = body
	return &result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
