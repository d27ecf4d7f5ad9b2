package entity

import "time"

// Protocol defines the type for RPC protocols.
type Protocol string

// Constants for known protocols.
const (
	ProtocolHTTP    Protocol = "http"
	ProtocolHTTPS   Protocol = "https"
	ProtocolWS      Protocol = "ws"
	ProtocolWSS     Protocol = "wss"
	ProtocolUnknown Protocol = "unknown"
)

// ProbeResult holds the outcome of a single endpoint health probe.
// The URL is stored with the API key redacted.
type ProbeResult struct {
	Network     string    `json:"network"`
	URL         RPCURL    `json:"url"`
	Protocol    Protocol  `json:"protocol"`
	IsWorking   bool      `json:"isWorking"`
	LatencyMs   *int64    `json:"latencyMs,omitempty"`
	BlockNumber *uint64   `json:"blockNumber,omitempty"`
	Error       string    `json:"error,omitempty"`
	CheckedAt   time.Time `json:"checkedAt"`
}

// Head is the latest block observed on a network.
type Head struct {
	Network     Network `json:"network"`
	BlockNumber uint64  `json:"blockNumber"`
}

// NetworkInfo describes a network served by the gateway.
type NetworkInfo struct {
	Network           Network `json:"network"`
	Host              string  `json:"host"`
	CommunityResource bool    `json:"communityResource"`
}
