package vtu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// envelope is the aggregator's response wrapper. status:false is a soft
// failure carrying a user-presentable message.
type envelope struct {
	Status  bool            `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// AggregatorError describes a failed exchange with the aggregator.
type AggregatorError struct {
	StatusCode int
	Message    string
	// Soft is set when the aggregator answered status:false.
	Soft bool
	Err  error
}

func (e *AggregatorError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("vtu: %s: %v", e.Message, e.Err)
	case e.Soft && e.Message == "":
		return fmt.Sprintf("vtu: rejected with status %d", e.StatusCode)
	case e.Soft:
		return fmt.Sprintf("vtu: rejected: %s", e.Message)
	default:
		return fmt.Sprintf("vtu: status %d: %s", e.StatusCode, e.Message)
	}
}

func (e *AggregatorError) Unwrap() error {
	return e.Err
}

// HTTPClient talks to the VTU aggregator over HTTP. It implements both
// CatalogClient and VerificationClient.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &AggregatorError{Message: "failed to build request", Err: err}
	}
	return c.do(req, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &AggregatorError{Message: "failed to marshal request body", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &AggregatorError{Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	if c.baseURL == "" {
		return &AggregatorError{Message: "aggregator base URL is not configured"}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("vtu: request failed", zap.String("path", req.URL.Path), zap.Error(err))
		return &AggregatorError{Message: "aggregator unreachable", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &AggregatorError{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}
	c.logger.Debug("vtu: response",
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &AggregatorError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}
		return &AggregatorError{StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	if !env.Status {
		return &AggregatorError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(env.Message), Soft: true}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &AggregatorError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(env.Message)}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &AggregatorError{StatusCode: resp.StatusCode, Message: "unexpected data shape", Err: err}
	}
	return nil
}
