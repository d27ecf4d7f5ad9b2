package entity

import (
	"fmt"
	"net/url"
	"strings"

	"chainstack-provider/internal/pkg/apperrors"
)

// RPCURL represents a typed URL for an RPC endpoint.
type RPCURL string

// NewRPCURL creates a new RPCURL instance.
func NewRPCURL(rawURL string) (RPCURL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", fmt.Errorf("%w: rpc url cannot be empty", apperrors.ErrInvalidInput)
	}

	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid rpc url format '%s': %v", apperrors.ErrInvalidInput, rawURL, err)
	}

	switch Protocol(strings.ToLower(u.Scheme)) {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolWS, ProtocolWSS:
	default:
		return "", fmt.Errorf("%w: rpc url '%s' has unsupported scheme: '%s'",
			apperrors.ErrInvalidInput, rawURL, u.Scheme,
		)
	}

	return RPCURL(rawURL), nil
}

// String returns the string representation of the RPCURL.
func (r RPCURL) String() string {
	return string(r)
}

// Protocol returns the protocol derived from the URL scheme.
func (r RPCURL) Protocol() Protocol {
	scheme, _, found := strings.Cut(string(r), "://")
	if !found {
		return ProtocolUnknown
	}
	switch p := Protocol(strings.ToLower(scheme)); p {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolWS, ProtocolWSS:
		return p
	default:
		return ProtocolUnknown
	}
}

// Redacted returns the URL with a non-empty final path segment masked.
// Chainstack carries the API key in that segment, so this form is safe to log.
func (r RPCURL) Redacted() RPCURL {
	u, err := url.Parse(string(r))
	if err != nil {
		return r
	}
	path := strings.TrimSuffix(u.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 || idx == len(path)-1 {
		return r
	}
	return RPCURL(u.Scheme + "://" + u.Host + path[:idx+1] + "***")
}
