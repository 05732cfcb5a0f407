// Package agent is the remote check worker. It receives a target URL from the
// backend, performs the actual HTTP availability check and reports the
// outcome together with the measured latency and its region label.
package agent

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultCheckTimeout = 10 * time.Second

var checksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webtether_agent_checks_total",
		Help: "Number of website checks by verdict",
	},
	[]string{"verdict"},
)

func init() {
	prometheus.MustRegister(checksTotal)
}

type (
	// CheckResult is the agent's verdict. A down website is a result, not an
	// error: IsUp false with the error text attached.
	CheckResult struct {
		IsUp       bool   `json:"is_up"`
		LatencyMs  *int64 `json:"latency_ms,omitempty"`
		Region     string `json:"region,omitempty"`
		StatusCode int    `json:"status_code,omitempty"`
		Error      string `json:"error,omitempty"`
	}

	Checker struct {
		HttpClient http.Client
		Region     string
	}
)

func NewChecker(region string) *Checker {
	return &Checker{
		HttpClient: http.Client{Timeout: defaultCheckTimeout},
		Region:     region,
	}
}

// Check issues a HEAD request against the target and measures the wall clock
// latency. Only a 2xx response counts as up; redirects are followed by the
// client, so a non-2xx here is the target's final answer.
func (c *Checker) Check(ctx context.Context, targetURL string) *CheckResult {
	result := &CheckResult{Region: c.Region}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, targetURL, nil)
	if err != nil {
		result.Error = err.Error()
		checksTotal.WithLabelValues("invalid").Inc()
		return result
	}
	response, err := c.HttpClient.Do(req)
	latencyMs := time.Since(start).Milliseconds()
	result.LatencyMs = &latencyMs
	if err != nil {
		result.Error = err.Error()
		checksTotal.WithLabelValues("down").Inc()
		return result
	}
	defer response.Body.Close()

	result.StatusCode = response.StatusCode
	result.IsUp = response.StatusCode >= http.StatusOK && response.StatusCode < http.StatusMultipleChoices
	if result.IsUp {
		checksTotal.WithLabelValues("up").Inc()
	} else {
		checksTotal.WithLabelValues("down").Inc()
	}
	return result
}
