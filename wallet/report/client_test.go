package report

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/webtether/webtether/wallet"
	"github.com/webtether/webtether/wallet/session"
)

var testTxHash = common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000001")

func testSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.New("test-token")
	require.NoError(t, err)
	return sess
}

func TestReportPing_OK(t *testing.T) {
	var received PingReport
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+ManualPingPath, r.URL.Path)
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		latency := int64(82)
		w.Header().Set(wallet.ContentType, wallet.ApplicationJson)
		require.NoError(t, json.NewEncoder(w).Encode(&wallet.PingResult{IsReachable: true, LatencyMs: &latency}))
	}))
	defer server.Close()
	serverAddress, _ := url.Parse(server.URL)

	restClient, err := New(serverAddress.Host)
	require.NoError(t, err)

	pingReq := wallet.PingRequest{WebsiteID: "wid-1", URL: "https://example.com", OptionalCode: "CODE7-xyz123"}
	result, err := restClient.ReportPing(context.Background(), testSession(t), pingReq, testTxHash, big.NewInt(200_000_000_000_000))
	require.NoError(t, err)
	require.True(t, result.IsReachable)
	require.NotNil(t, result.LatencyMs)
	require.EqualValues(t, 82, *result.LatencyMs)

	// the optional code travels verbatim and the fee is the wei decimal string
	require.Equal(t, "CODE7-xyz123", received.Code)
	require.Equal(t, "200000000000000", received.FeePaid)
	require.Equal(t, testTxHash.Hex(), received.TxHash)
	require.Equal(t, "Bearer test-token", authHeader)
}

func TestReportPing_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(wallet.ContentType, wallet.ApplicationJson)
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(wallet.ErrorResponse{Message: "transaction hash already used"})
	}))
	defer server.Close()
	serverAddress, _ := url.Parse(server.URL)

	restClient, err := New(serverAddress.Host)
	require.NoError(t, err)

	_, err = restClient.ReportPing(context.Background(), testSession(t), wallet.PingRequest{WebsiteID: "wid-1", URL: "https://example.com"}, testTxHash, big.NewInt(1))
	require.ErrorIs(t, err, ErrReportingFailed)
	require.ErrorContains(t, err, "transaction hash already used")
}

func TestReportPing_BackendUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	serverAddress, _ := url.Parse(server.URL)
	server.Close()

	restClient, err := New(serverAddress.Host)
	require.NoError(t, err)

	_, err = restClient.ReportPing(context.Background(), testSession(t), wallet.PingRequest{WebsiteID: "wid-1", URL: "https://example.com"}, testTxHash, big.NewInt(1))
	require.ErrorIs(t, err, ErrReportingFailed)
}

func TestReportPing_InvalidatedSession(t *testing.T) {
	restClient, err := New("localhost:5000")
	require.NoError(t, err)

	sess := testSession(t)
	sess.Invalidate()
	_, err = restClient.ReportPing(context.Background(), sess, wallet.PingRequest{WebsiteID: "wid-1", URL: "https://example.com"}, testTxHash, big.NewInt(1))
	require.ErrorIs(t, err, ErrReportingFailed)
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
}
