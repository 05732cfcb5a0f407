// Package wallet holds the types shared between the ping coordinator, the
// reporting client and the backend service.
package wallet

type (
	// PingRequest is the unit of work submitted by a user: "ping this website".
	// Discarded after the protocol run completes or fails.
	PingRequest struct {
		WebsiteID string `json:"websiteId"`
		URL       string `json:"url"`
		// OptionalCode is a user supplied demonstration/discount code. Forwarded
		// verbatim to the backend, never affects the on-chain fee.
		OptionalCode string `json:"code,omitempty"`
	}

	// PingResult is the backend's verdict, owned and computed entirely by the
	// backend; the coordinator only relays and displays it.
	PingResult struct {
		IsReachable bool   `json:"isReachable"`
		LatencyMs   *int64 `json:"latencyMs,omitempty"`
	}
)
