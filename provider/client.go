package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aperturestack/llmgateway/ratelimit"
)

const anthropicVersion = "2023-06-01"

// Config configures a Client.
type Config struct {
	// Endpoint is the API base URL; Complete POSTs to Endpoint+"/v1/messages".
	Endpoint string

	// APIToken is sent as the x-api-key header on every request.
	APIToken string

	// HTTPClient performs the request. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	return c
}

// Client performs one upstream completion call at a time (§4.6).
type Client struct {
	cfg Config
}

// New creates a Client.
func New(cfg Config) *Client {
	return &Client{cfg: cfg.withDefaults()}
}

// Complete POSTs req to the upstream endpoint and returns the extracted
// response text along with whatever rate-limit header snapshot the
// response carried. On any status other than 200 it returns a *StatusError; on a
// transport failure it returns the underlying error unwrapped, both of
// which the caller (the retry engine) classifies for retry eligibility.
func (c *Client) Complete(ctx context.Context, req Request) (string, ratelimit.HeaderSnapshot, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", ratelimit.HeaderSnapshot{}, fmt.Errorf("provider: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", ratelimit.HeaderSnapshot{}, fmt.Errorf("provider: build request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.cfg.APIToken)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("accept", "application/json")
	httpReq.Header.Set("content-type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", ratelimit.HeaderSnapshot{}, err
	}
	defer resp.Body.Close()

	snap, _ := ratelimit.ParseHeaders(resp.Header)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", snap, fmt.Errorf("provider: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", snap, &StatusError{StatusCode: resp.StatusCode, Body: string(data), ResetHint: snap.Reset}
	}

	var envelope Response
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", snap, fmt.Errorf("provider: decode response: %w", err)
	}

	return extractText(envelope), snap, nil
}

// extractText returns the trimmed text of the response's first content
// fragment, or NoResponseText if there is none (§4.6).
func extractText(r Response) string {
	if len(r.Content) == 0 {
		return NoResponseText
	}
	text := strings.TrimSpace(r.Content[0].Text)
	if text == "" {
		return NoResponseText
	}
	return text
}
