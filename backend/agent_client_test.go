package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAgentClient_CheckWebsite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req AgentCheckRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "https://example.com", req.URL)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"is_up": true, "latency_ms": 82, "region": "cloudflare-edge"}`))
	}))
	t.Cleanup(server.Close)

	client := NewAgentClient(server.URL)
	result, err := client.CheckWebsite(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.True(t, result.IsUp)
	require.EqualValues(t, 82, *result.LatencyMs)
	require.Equal(t, "cloudflare-edge", result.Region)
}

func TestAgentClient_AgentError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewAgentClient(server.URL)
	_, err := client.CheckWebsite(context.Background(), "https://example.com")
	require.ErrorContains(t, err, "status 500")
}

func TestAgentClient_AgentUnreachable(t *testing.T) {
	client := NewAgentClient("http://localhost:1")
	_, err := client.CheckWebsite(context.Background(), "https://example.com")
	require.Error(t, err)
}
