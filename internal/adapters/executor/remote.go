// Package executor is the HTTP client for the remote tool-execution server:
// an external collaborator accepting {tool, parameters} and answering
// {success, result?, error?}.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// response is the remote executor's answer envelope.
type response struct {
	Success bool                   `json:"success"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Client talks to the remote tool-execution server.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		// Per-call deadlines come from the caller's context; the transport
		// timeout is only a safety net.
		client: &http.Client{Timeout: 6 * time.Minute},
	}
}

type executeRequest struct {
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Execute sends one tool request to the remote server and returns its
// result payload. A transport error, non-2xx status or success:false all
// surface as errors so callers can trigger their fallback tier.
func (c *Client) Execute(ctx context.Context, tool string, parameters map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(executeRequest{Tool: tool, Parameters: parameters})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote executor unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("remote executor returned status %d", resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("remote executor failed: %s", out.Error)
	}
	if out.Result == nil {
		out.Result = map[string]interface{}{}
	}
	return out.Result, nil
}
