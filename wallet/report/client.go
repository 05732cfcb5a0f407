// Package report posts a confirmed payment and the ping parameters to the
// backend and interprets its verdict.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/webtether/webtether/wallet"
	"github.com/webtether/webtether/wallet/session"
)

const (
	ManualPingPath = "api/v1/pings/manual"

	defaultScheme = "http://"
)

// ErrReportingFailed is the tagged variant for a backend rejection or network
// failure. The caller decides how to present it; after a confirmed payment it
// must be surfaced distinctly since only the reporting step failed.
var ErrReportingFailed = errors.New("ping reporting failed")

type (
	Client struct {
		BaseUrl    string
		HttpClient http.Client

		manualPingURL *url.URL
	}

	// PingReport is the wire format of the manual ping endpoint.
	PingReport struct {
		WebsiteID string `json:"websiteId"`
		URL       string `json:"url"`
		TxHash    string `json:"txHash"`
		// FeePaid is the paid amount in wei, as a decimal string.
		FeePaid string `json:"feePaid"`
		Code    string `json:"code,omitempty"`
	}
)

func New(baseUrl string) (*Client, error) {
	if !strings.HasPrefix(baseUrl, "http://") && !strings.HasPrefix(baseUrl, "https://") {
		baseUrl = defaultScheme + baseUrl
	}
	u, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("error parsing backend base URL (%s): %w", baseUrl, err)
	}
	return &Client{
		BaseUrl:       u.String(),
		HttpClient:    http.Client{Timeout: time.Minute},
		manualPingURL: u.JoinPath(ManualPingPath),
	}, nil
}

// ReportPing issues exactly one call to the backend, no retries and no
// idempotency key; duplicate protection is owned by the backend.
func (c *Client) ReportPing(ctx context.Context, sess *session.Session, pingReq wallet.PingRequest, txHash common.Hash, feePaidWei *big.Int) (*wallet.PingResult, error) {
	body, err := json.Marshal(&PingReport{
		WebsiteID: pingReq.WebsiteID,
		URL:       pingReq.URL,
		TxHash:    txHash.Hex(),
		FeePaid:   feePaidWei.String(),
		Code:      pingReq.OptionalCode,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode report: %v", ErrReportingFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.manualPingURL.String(), bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build report request: %v", ErrReportingFailed, err)
	}
	req.Header.Set(wallet.ContentType, wallet.ApplicationJson)
	if sess != nil {
		token, err := sess.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReportingFailed, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportingFailed, err)
	}
	defer response.Body.Close()

	responseData, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrReportingFailed, err)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		var errorResponse wallet.ErrorResponse
		if err := json.Unmarshal(responseData, &errorResponse); err == nil && errorResponse.Message != "" {
			return nil, fmt.Errorf("%w: status %d: %s", ErrReportingFailed, response.StatusCode, errorResponse.Message)
		}
		return nil, fmt.Errorf("%w: unexpected response status code: %d", ErrReportingFailed, response.StatusCode)
	}
	var result wallet.PingResult
	if err := json.Unmarshal(responseData, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal response data: %v", ErrReportingFailed, err)
	}
	return &result, nil
}
