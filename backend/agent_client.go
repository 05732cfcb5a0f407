package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/webtether/webtether/wallet"
)

const defaultAgentTimeout = 15 * time.Second

type (
	// AgentCaller delegates the HTTP availability check to a remote check
	// agent running close to the end users.
	AgentCaller interface {
		CheckWebsite(ctx context.Context, websiteURL string) (*AgentResult, error)
	}

	// AgentCheckRequest is the wire format of the agent check endpoint.
	AgentCheckRequest struct {
		URL string `json:"url"`
	}

	AgentResult struct {
		IsUp      bool   `json:"is_up"`
		LatencyMs *int64 `json:"latency_ms,omitempty"`
		Region    string `json:"region,omitempty"`
	}

	AgentClient struct {
		AgentURL   string
		HttpClient http.Client
	}
)

func NewAgentClient(agentURL string) *AgentClient {
	return &AgentClient{AgentURL: agentURL, HttpClient: http.Client{Timeout: defaultAgentTimeout}}
}

func (c *AgentClient) CheckWebsite(ctx context.Context, websiteURL string) (*AgentResult, error) {
	body, err := json.Marshal(&AgentCheckRequest{URL: websiteURL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AgentURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build agent request: %w", err)
	}
	req.Header.Set(wallet.ContentType, wallet.ApplicationJson)

	response, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	responseData, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %w", err)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("agent returned status %d", response.StatusCode)
	}
	result := &AgentResult{}
	if err := json.Unmarshal(responseData, result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent response: %w", err)
	}
	return result, nil
}
