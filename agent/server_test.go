package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webtether/webtether/internal/logger"
	"github.com/webtether/webtether/wallet"
)

func testAPI(t *testing.T, region string) *agentRestAPI {
	t.Helper()
	log, err := logger.New(&logger.LogConfiguration{OutputPath: "discard"})
	require.NoError(t, err)
	return &agentRestAPI{
		checker: NewChecker(region),
		log:     log,
		rw:      &wallet.ResponseWriter{LogErr: log.Error},
	}
}

func postCheck(t *testing.T, api *agentRestAPI, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set(wallet.ContentType, wallet.ApplicationJson)
	recorder := httptest.NewRecorder()
	api.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestCheck_SiteUp(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(target.Close)

	api := testAPI(t, "eu-test")
	body, err := json.Marshal(&CheckRequest{URL: target.URL})
	require.NoError(t, err)
	recorder := postCheck(t, api, body)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result CheckResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	require.True(t, result.IsUp)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, "eu-test", result.Region)
	require.NotNil(t, result.LatencyMs)
}

func TestCheck_SiteDown(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(target.Close)

	api := testAPI(t, "eu-test")
	body, err := json.Marshal(&CheckRequest{URL: target.URL})
	require.NoError(t, err)
	recorder := postCheck(t, api, body)
	require.Equal(t, http.StatusOK, recorder.Code, "a down website is a result, not a request failure")

	var result CheckResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	require.False(t, result.IsUp)
	require.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
}

func TestCheck_NonSuccessStatusIsDown(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	t.Cleanup(target.Close)

	checker := NewChecker("eu-test")
	result := checker.Check(context.Background(), target.URL)
	require.False(t, result.IsUp, "only 2xx counts as up")
	require.Equal(t, http.StatusNotModified, result.StatusCode)
	require.NotNil(t, result.LatencyMs)
}

func TestCheck_SiteUnreachable(t *testing.T) {
	checker := NewChecker("eu-test")
	result := checker.Check(context.Background(), "http://localhost:1")
	require.False(t, result.IsUp)
	require.NotEmpty(t, result.Error)
	require.NotNil(t, result.LatencyMs)
}

func TestCheck_MissingURL(t *testing.T) {
	api := testAPI(t, "eu-test")
	recorder := postCheck(t, api, []byte(`{}`))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCheck_InvalidBody(t *testing.T) {
	api := testAPI(t, "eu-test")
	recorder := postCheck(t, api, []byte(`not json`))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
